package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

// RunMigrations applies the embedded postgres migrations. It is a no-op when
// the schema is already current.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the tables from the models on dialects without
// embedded migrations. There is no row level security there.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&usagedomain.UsageEvent{},
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&reportdomain.Suggestion{},
		&paymentdomain.EventRecord{},
		&auditdomain.AuditLog{},
	)
}
