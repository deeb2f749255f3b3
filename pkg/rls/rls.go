// Package rls scopes postgres sessions to a user so row level security
// policies on user-owned tables apply.
package rls

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithUser sets app.current_user_id for the current transaction.
func WithUser(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Exec("SELECT set_config('app.current_user_id', ?, true)", userID.String()).Error
}

// Transaction runs fn in a transaction scoped to userID. Dialects without
// RLS run fn in a plain transaction.
func Transaction(ctx context.Context, db *gorm.DB, userID uuid.UUID, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := WithUser(tx, userID); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}
