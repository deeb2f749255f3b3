package testsupport

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

// UsageRow overrides the defaults SeedUsage applies to every row.
type UsageRow struct {
	Cost           float64
	InputTokens    int64
	OutputTokens   int64
	ResponseTimeMS int64
	Failed         bool
}

// SeedUsage inserts n successful usage rows at the given time.
func SeedUsage(t *testing.T, db *gorm.DB, node *snowflake.Node, userID uuid.UUID, feature usagedomain.Feature, n int, at time.Time, row UsageRow) []*usagedomain.UsageEvent {
	t.Helper()
	if n <= 0 {
		return nil
	}
	events := make([]*usagedomain.UsageEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, &usagedomain.UsageEvent{
			ID:             node.Generate(),
			UserID:         userID,
			Feature:        feature,
			InputTokens:    row.InputTokens,
			OutputTokens:   row.OutputTokens,
			TokensUsed:     row.InputTokens + row.OutputTokens,
			Cost:           row.Cost,
			ResponseTimeMS: row.ResponseTimeMS,
			Success:        !row.Failed,
			Units:          1,
			Kind:           usagedomain.KindUsage,
			OccurredAt:     at.UTC(),
			CreatedAt:      at.UTC(),
		})
	}
	if err := db.CreateInBatches(events, 500).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}
	return events
}
