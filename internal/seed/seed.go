// Package seed writes reference data the service needs at startup.
package seed

import (
	"context"
	"errors"

	"go.uber.org/zap"

	plandomain "github.com/lukasai/lukas/internal/plan/domain"
)

// Plans upserts every plan declared in plans.yml.
func Plans(ctx context.Context, plans plandomain.Service, log *zap.Logger) error {
	if plans == nil {
		return errors.New("seed plan service is required")
	}
	if err := plans.SyncFromConfig(ctx); err != nil {
		return err
	}
	log.Info("plans seeded from configuration")
	return nil
}
