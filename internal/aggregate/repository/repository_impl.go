package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
)

// Compensation rows carry negative units, tokens and cost, so plain sums net
// out. Latency and success only count usage rows nobody reversed.
const totalsColumns = `
	COALESCE(SUM(e.units), 0) AS usage_count,
	COALESCE(SUM(e.cost), 0) AS total_cost,
	COALESCE(SUM(e.tokens_used), 0) AS total_tokens,
	COALESCE(SUM(CASE WHEN e.kind = 'usage' AND c.id IS NULL THEN 1 ELSE 0 END), 0) AS effective_requests,
	COALESCE(SUM(CASE WHEN e.kind = 'usage' AND c.id IS NULL AND e.success THEN 1 ELSE 0 END), 0) AS successful_requests,
	COALESCE(SUM(CASE WHEN e.kind = 'usage' AND c.id IS NULL THEN e.response_time_ms ELSE 0 END), 0) AS total_response_time_ms`

type repo struct{}

func Provide() aggregatedomain.Repository {
	return &repo{}
}

func (r *repo) Sum(ctx context.Context, db *gorm.DB, filter aggregatedomain.Filter) (aggregatedomain.Totals, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + totalsColumns + `
		FROM usage_events e
		LEFT JOIN usage_events c ON c.compensates_id = e.id
		WHERE ` + where

	var row aggregatedomain.Totals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return aggregatedomain.Totals{}, err
	}
	row.Feature = filter.Feature
	return row, nil
}

func (r *repo) SumByFeature(ctx context.Context, db *gorm.DB, filter aggregatedomain.Filter) ([]aggregatedomain.Totals, error) {
	where, args := buildWhere(filter)
	query := `SELECT e.feature AS feature, ` + totalsColumns + `
		FROM usage_events e
		LEFT JOIN usage_events c ON c.compensates_id = e.id
		WHERE ` + where + `
		GROUP BY e.feature
		ORDER BY e.feature`

	var rows []aggregatedomain.Totals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func buildWhere(filter aggregatedomain.Filter) (string, []any) {
	clauses := []string{"e.user_id = ?", "e.occurred_at >= ?", "e.occurred_at < ?"}
	args := []any{filter.UserID, filter.Period.Start, filter.Period.End}
	if filter.Feature != "" {
		clauses = append(clauses, "e.feature = ?")
		args = append(args, filter.Feature)
	}
	return strings.Join(clauses, " AND "), args
}
