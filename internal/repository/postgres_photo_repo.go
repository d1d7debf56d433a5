package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ftsi/facsite/internal/model"
)

// PostgresPhotoRepo is the PostgreSQL-backed campus photo repository.
type PostgresPhotoRepo struct {
	db *sql.DB
}

// NewPostgresPhotoRepo creates a PostgresPhotoRepo.
func NewPostgresPhotoRepo(db *sql.DB) *PostgresPhotoRepo {
	return &PostgresPhotoRepo{db: db}
}

// List returns all photos ordered by date_ajout descending.
func (r *PostgresPhotoRepo) List(ctx context.Context) ([]*model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, titre, description, url_image, date_ajout, ajoute_par
		 FROM photos_campus ORDER BY date_ajout DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var list []*model.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}

	return list, nil
}

// FindByID returns the photo with the given id, or nil when absent.
func (r *PostgresPhotoRepo) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, titre, description, url_image, date_ajout, ajoute_par
		 FROM photos_campus WHERE id = $1`,
		id,
	)

	p, err := scanPhoto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a photo.
func (r *PostgresPhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos_campus (id, titre, description, url_image, date_ajout, ajoute_par)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Titre, nullable(p.Description), p.URLImage, p.DateAjout, nullable(p.AjoutePar),
	)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing photo.
func (r *PostgresPhotoRepo) Update(ctx context.Context, p *model.Photo) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE photos_campus SET titre = $2, description = $3, url_image = $4 WHERE id = $1`,
		p.ID, p.Titre, nullable(p.Description), p.URLImage,
	)
	if err != nil {
		return fmt.Errorf("failed to update photo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("photo not found: %s", p.ID)
	}
	return nil
}

// DeleteByID hard-deletes the photo with the given id.
func (r *PostgresPhotoRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM photos_campus WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("photo not found: %s", id)
	}
	return nil
}

func scanPhoto(row rowScanner) (*model.Photo, error) {
	p := &model.Photo{}
	var description, ajoutePar sql.NullString
	err := row.Scan(&p.ID, &p.Titre, &description, &p.URLImage, &p.DateAjout, &ajoutePar)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan photo: %w", err)
	}

	p.Description = description.String
	p.AjoutePar = ajoutePar.String
	return p, nil
}

// compile-time interface check
var _ PhotoRepository = (*PostgresPhotoRepo)(nil)
