// Package testsupport builds in-memory databases for package tests.
package testsupport

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE usage_events (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		feature TEXT NOT NULL,
		model TEXT,
		provider TEXT,
		input_tokens BIGINT NOT NULL DEFAULT 0,
		output_tokens BIGINT NOT NULL DEFAULT 0,
		tokens_used BIGINT NOT NULL DEFAULT 0,
		cost DOUBLE PRECISION NOT NULL DEFAULT 0,
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL DEFAULT 1,
		units BIGINT NOT NULL DEFAULT 1,
		kind TEXT NOT NULL DEFAULT 'usage',
		compensates_id BIGINT UNIQUE,
		idempotency_key TEXT,
		metadata JSON,
		occurred_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX uidx_usage_events_idempotency ON usage_events (user_id, idempotency_key)`,
	`CREATE INDEX idx_usage_events_period ON usage_events (user_id, feature, occurred_at)`,
	`CREATE TABLE subscription_plans (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		billing_cycle TEXT NOT NULL DEFAULT 'monthly',
		features JSON NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE user_subscriptions (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plan_code TEXT NOT NULL,
		status TEXT NOT NULL,
		current_period_start DATETIME NOT NULL,
		current_period_end DATETIME,
		provider TEXT,
		external_customer_id TEXT,
		external_subscription_id TEXT,
		cancelled_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX uidx_user_subscriptions_active ON user_subscriptions (user_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX uidx_user_subscriptions_external ON user_subscriptions (provider, external_subscription_id)`,
	`CREATE TABLE optimization_suggestions (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		impact TEXT NOT NULL,
		estimated_savings DOUBLE PRECISION NOT NULL DEFAULT 0,
		feature TEXT,
		is_applied BOOLEAN NOT NULL DEFAULT 0,
		applied_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payment_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSON,
		received_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX uidx_payment_events_provider ON payment_events (provider, provider_event_id)`,
	`CREATE TABLE audit_logs (
		id BIGINT PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		user_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata JSON,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// OpenDB opens a private in-memory sqlite database with the full schema.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func MustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func CountRows(t *testing.T, db *gorm.DB, table string) int {
	t.Helper()
	var count int
	if err := db.Raw(fmt.Sprintf(`SELECT COUNT(1) FROM %s`, table)).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
