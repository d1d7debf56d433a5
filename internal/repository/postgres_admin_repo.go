package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAdminRepo reads the administrateurs membership set.
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo creates a PostgresAdminRepo.
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// CountByUserID returns the number of membership rows for the given user id.
func (r *PostgresAdminRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM administrateurs WHERE id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count administrateurs: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ AdminRepository = (*PostgresAdminRepo)(nil)
