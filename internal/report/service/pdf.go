package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lukasai/lukas/internal/providers/pdf"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
)

func toSummaryData(summary reportdomain.Summary, suggestions []reportdomain.Suggestion, now time.Time) pdf.SummaryData {
	data := pdf.SummaryData{
		UserID:        summary.UserID.String(),
		Period:        summary.PeriodStart.Format("2006-01-02") + " to " + summary.PeriodEnd.Format("2006-01-02"),
		GeneratedAt:   now.UTC().Format("2006-01-02 15:04 UTC"),
		TotalCost:     formatCost(summary.TotalCost),
		TotalTokens:   formatCount(summary.TotalTokens),
		TotalRequests: formatCount(summary.TotalRequests),
		SuccessRate:   formatPercent(summary.SuccessRate),
	}
	for _, feature := range summary.Features {
		data.Rows = append(data.Rows, pdf.SummaryRow{
			Feature:     feature.Feature,
			Requests:    formatCount(feature.UsageCount),
			Tokens:      formatCount(feature.TotalTokens),
			Cost:        formatCost(feature.TotalCost),
			SuccessRate: formatPercent(feature.SuccessRate),
		})
	}
	for _, suggestion := range suggestions {
		line := suggestion.Title
		if suggestion.EstimatedSavings > 0 {
			line += " (saves about " + formatCost(suggestion.EstimatedSavings) + ")"
		}
		data.Suggestions = append(data.Suggestions, line)
	}
	return data
}

func formatCost(v float64) string {
	return fmt.Sprintf("$%.4f", v)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// formatCount groups digits by thousands.
func formatCount(v int64) string {
	raw := strconv.FormatInt(v, 10)
	sign := ""
	if v < 0 {
		sign, raw = "-", raw[1:]
	}
	if len(raw) <= 3 {
		return sign + raw
	}
	out := make([]byte, 0, len(raw)+len(raw)/3)
	head := len(raw) % 3
	if head > 0 {
		out = append(out, raw[:head]...)
	}
	for i := head; i < len(raw); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, raw[i:i+3]...)
	}
	return sign + string(out)
}
