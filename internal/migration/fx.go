package migration

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	"github.com/lukasai/lukas/internal/seed"
	"github.com/lukasai/lukas/pkg/db"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date and seeds configured plans.
func Apply(conn *gorm.DB, plans plandomain.Service, log *zap.Logger) error {
	if db.IsPostgres(conn) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else {
		log.Warn("non-postgres database, creating tables from models without row level security",
			zap.String("dialect", conn.Dialector.Name()))
		if err := AutoMigrate(conn); err != nil {
			return err
		}
	}
	return seed.Plans(context.Background(), plans, log)
}
