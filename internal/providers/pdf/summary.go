package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// SummaryData is pre-formatted; the renderer does no number formatting.
type SummaryData struct {
	Title         string
	UserID        string
	Period        string
	GeneratedAt   string
	TotalCost     string
	TotalTokens   string
	TotalRequests string
	SuccessRate   string
	Rows          []SummaryRow
	Suggestions   []string
}

type SummaryRow struct {
	Feature     string
	Requests    string
	Tokens      string
	Cost        string
	SuccessRate string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateUsageSummary(ctx context.Context, data SummaryData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := data.Title
	if title == "" {
		title = "AI usage summary"
	}
	m.AddRow(20,
		text.NewCol(12, title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(8).Add(
			text.New("Account: "+data.UserID, props.Text{Top: 0, Size: 9}),
			text.New("Period: "+data.Period, props.Text{Top: 5, Size: 9}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 10, Size: 9}),
		),
		col.New(4),
	)

	m.AddRow(10,
		text.NewCol(3, "Total cost", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Tokens", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Requests", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Success rate", props.Text{Style: fontstyle.Bold, Size: 9}),
	)
	m.AddRow(12,
		text.NewCol(3, data.TotalCost, props.Text{Size: 12}),
		text.NewCol(3, data.TotalTokens, props.Text{Size: 12}),
		text.NewCol(3, data.TotalRequests, props.Text{Size: 12}),
		text.NewCol(3, data.SuccessRate, props.Text{Size: 12}),
	)

	// Table Header
	m.AddRow(10,
		text.NewCol(4, "Feature", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(2, "Requests", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
		text.NewCol(2, "Tokens", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
		text.NewCol(2, "Cost", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
		text.NewCol(2, "Success", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
	)

	if len(data.Rows) == 0 {
		m.AddRow(10,
			text.NewCol(12, "No usage in this period.", props.Text{Size: 9, Style: fontstyle.Italic}),
		)
	}
	for _, row := range data.Rows {
		m.AddRow(8,
			text.NewCol(4, row.Feature, props.Text{Size: 9}),
			text.NewCol(2, row.Requests, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, row.Tokens, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, row.Cost, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, row.SuccessRate, props.Text{Size: 9, Align: align.Right}),
		)
	}

	if len(data.Suggestions) > 0 {
		m.AddRow(12,
			text.NewCol(12, "Open optimization suggestions", props.Text{Style: fontstyle.Bold, Size: 11, Top: 4}),
		)
		for i, suggestion := range data.Suggestions {
			m.AddRow(7,
				text.NewCol(12, fmt.Sprintf("%d. %s", i+1, suggestion), props.Text{Size: 9}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
