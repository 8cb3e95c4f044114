// Package repository implements the store interfaces of the domain packages
// against the Supabase Postgres database, plus a seeded in-memory messaging
// store for demo mode and tests.
package repository

import (
	"context"
	"errors"
	"fmt"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/database"

	"github.com/jackc/pgx/v5"
)

type Postgres struct {
	db *database.Database
}

func NewPostgres(db *database.Database) *Postgres {
	return &Postgres{db: db}
}

// notFound turns pgx.ErrNoRows into a NotFoundError and wraps anything else.
func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	return fmt.Errorf("query %s: %w", resource, err)
}

// Tx runs fn in a transaction, rolling back on error.
func (r *Postgres) Tx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
