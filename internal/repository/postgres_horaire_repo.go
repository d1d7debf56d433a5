package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ftsi/facsite/internal/model"
)

// PostgresHoraireRepo is the PostgreSQL-backed schedule document repository.
type PostgresHoraireRepo struct {
	db *sql.DB
}

// NewPostgresHoraireRepo creates a PostgresHoraireRepo.
func NewPostgresHoraireRepo(db *sql.DB) *PostgresHoraireRepo {
	return &PostgresHoraireRepo{db: db}
}

// List returns all horaires ordered by date_publication descending.
func (r *PostgresHoraireRepo) List(ctx context.Context) ([]*model.Horaire, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, titre, filiere, annee, url_pdf, date_publication, publie_par
		 FROM horaires ORDER BY date_publication DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list horaires: %w", err)
	}
	defer rows.Close()

	var list []*model.Horaire
	for rows.Next() {
		h, err := scanHoraire(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate horaires: %w", err)
	}

	return list, nil
}

// FindByID returns the horaire with the given id, or nil when absent.
func (r *PostgresHoraireRepo) FindByID(ctx context.Context, id string) (*model.Horaire, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, titre, filiere, annee, url_pdf, date_publication, publie_par
		 FROM horaires WHERE id = $1`,
		id,
	)

	h, err := scanHoraire(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Create inserts an horaire.
func (r *PostgresHoraireRepo) Create(ctx context.Context, h *model.Horaire) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO horaires (id, titre, filiere, annee, url_pdf, date_publication, publie_par)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.Titre, h.Filiere, h.Annee, h.URLPDF, h.DatePublication, nullable(h.PubliePar),
	)
	if err != nil {
		return fmt.Errorf("failed to insert horaire: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing horaire.
func (r *PostgresHoraireRepo) Update(ctx context.Context, h *model.Horaire) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE horaires SET titre = $2, filiere = $3, annee = $4, url_pdf = $5 WHERE id = $1`,
		h.ID, h.Titre, h.Filiere, h.Annee, h.URLPDF,
	)
	if err != nil {
		return fmt.Errorf("failed to update horaire: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("horaire not found: %s", h.ID)
	}
	return nil
}

// DeleteByID hard-deletes the horaire with the given id.
func (r *PostgresHoraireRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM horaires WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete horaire: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("horaire not found: %s", id)
	}
	return nil
}

func scanHoraire(row rowScanner) (*model.Horaire, error) {
	h := &model.Horaire{}
	var publiePar sql.NullString
	err := row.Scan(&h.ID, &h.Titre, &h.Filiere, &h.Annee, &h.URLPDF, &h.DatePublication, &publiePar)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan horaire: %w", err)
	}

	h.PubliePar = publiePar.String
	return h, nil
}

// compile-time interface check
var _ HoraireRepository = (*PostgresHoraireRepo)(nil)
