package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	planrepository "github.com/lukasai/lukas/internal/plan/repository"
	planservice "github.com/lukasai/lukas/internal/plan/service"
	"github.com/lukasai/lukas/internal/testsupport"
)

func TestPlansSeedsConfiguredPlansIdempotently(t *testing.T) {
	db := testsupport.OpenDB(t)
	plans := planservice.NewService(planservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testsupport.MustNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
		Authz: testsupport.Authz(t),
		Repo:  planrepository.Provide(),
		Plans: config.NewStaticPlanConfigHolder(config.DefaultPlansConfig()),
	})

	require.NoError(t, Plans(context.Background(), plans, zap.NewNop()))
	require.NoError(t, Plans(context.Background(), plans, zap.NewNop()))

	assert.Equal(t, len(config.DefaultPlansConfig().Plans), testsupport.CountRows(t, db, "subscription_plans"))
}

func TestPlansRequiresService(t *testing.T) {
	assert.Error(t, Plans(context.Background(), nil, zap.NewNop()))
}
