// Package postgres provides PostgreSQL implementation of notifications repository.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the notifications storage interfaces
// (ScheduledRepository, Inbox and UserDirectory) using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}
