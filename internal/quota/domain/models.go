// Package domain holds quota decisions for the current calendar month.
package domain

import "time"

// Decision is the outcome of a quota check. Limit and Remaining are nil for
// unlimited features.
type Decision struct {
	UserID      string    `json:"user_id"`
	Feature     string    `json:"feature"`
	Plan        string    `json:"plan"`
	Allowed     bool      `json:"allowed"`
	Exceeded    bool      `json:"exceeded"`
	Limit       *int64    `json:"limit"`
	Used        int64     `json:"used"`
	Remaining   *int64    `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	// Advisory is set when an exceeded quota does not block the call.
	Advisory bool `json:"advisory,omitempty"`
}

// Limited reports whether the decision is bounded by a finite limit.
func (d Decision) Limited() bool {
	return d.Limit != nil
}

// Decide applies remaining = max(0, limit-used) and exceeded = used >= limit.
func Decide(limit *int64, used int64) (remaining *int64, exceeded bool) {
	if limit == nil {
		return nil, false
	}
	left := *limit - used
	if left < 0 {
		left = 0
	}
	return &left, used >= *limit
}
