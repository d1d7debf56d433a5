package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresObjectRefs lists storage object URLs referenced by content rows.
// Used by the sweeper to detect orphaned uploads.
type PostgresObjectRefs struct {
	db *sql.DB
}

// NewPostgresObjectRefs creates a PostgresObjectRefs.
func NewPostgresObjectRefs(db *sql.DB) *PostgresObjectRefs {
	return &PostgresObjectRefs{db: db}
}

// ListReferencedURLs returns every url_photo, url_image and url_pdf currently
// stored in a content row.
func (r *PostgresObjectRefs) ListReferencedURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT url_photo FROM enseignants WHERE url_photo IS NOT NULL
		 UNION
		 SELECT url_image FROM photos_campus
		 UNION
		 SELECT url_pdf FROM horaires`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced object URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan object URL: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate object URLs: %w", err)
	}

	return urls, nil
}

// compile-time interface check
var _ ObjectRefLister = (*PostgresObjectRefs)(nil)
