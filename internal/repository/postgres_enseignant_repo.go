package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ftsi/facsite/internal/model"
)

// PostgresEnseignantRepo is the PostgreSQL-backed enseignant repository.
// Optional text columns are stored as NULL and mapped to empty strings.
type PostgresEnseignantRepo struct {
	db *sql.DB
}

// NewPostgresEnseignantRepo creates a PostgresEnseignantRepo.
func NewPostgresEnseignantRepo(db *sql.DB) *PostgresEnseignantRepo {
	return &PostgresEnseignantRepo{db: db}
}

// List returns all enseignants ordered by nom ascending.
func (r *PostgresEnseignantRepo) List(ctx context.Context) ([]*model.Enseignant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, nom, prenom, titre, domaine, specialite, email, telephone, bio, url_photo, date_ajout
		 FROM enseignants ORDER BY nom ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list enseignants: %w", err)
	}
	defer rows.Close()

	var list []*model.Enseignant
	for rows.Next() {
		e, err := scanEnseignant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enseignants: %w", err)
	}

	return list, nil
}

// FindByID returns the enseignant with the given id, or nil when absent.
func (r *PostgresEnseignantRepo) FindByID(ctx context.Context, id string) (*model.Enseignant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, nom, prenom, titre, domaine, specialite, email, telephone, bio, url_photo, date_ajout
		 FROM enseignants WHERE id = $1`,
		id,
	)

	e, err := scanEnseignant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts an enseignant.
func (r *PostgresEnseignantRepo) Create(ctx context.Context, e *model.Enseignant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO enseignants (id, nom, prenom, titre, domaine, specialite, email, telephone, bio, url_photo, date_ajout)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Nom, e.Prenom, nullable(e.Titre), e.Domaine, nullable(e.Specialite),
		nullable(e.Email), nullable(e.Telephone), nullable(e.Bio), nullable(e.URLPhoto), e.DateAjout,
	)
	if err != nil {
		return fmt.Errorf("failed to insert enseignant: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing enseignant.
func (r *PostgresEnseignantRepo) Update(ctx context.Context, e *model.Enseignant) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE enseignants
		 SET nom = $2, prenom = $3, titre = $4, domaine = $5, specialite = $6,
		     email = $7, telephone = $8, bio = $9, url_photo = $10
		 WHERE id = $1`,
		e.ID, e.Nom, e.Prenom, nullable(e.Titre), e.Domaine, nullable(e.Specialite),
		nullable(e.Email), nullable(e.Telephone), nullable(e.Bio), nullable(e.URLPhoto),
	)
	if err != nil {
		return fmt.Errorf("failed to update enseignant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("enseignant not found: %s", e.ID)
	}
	return nil
}

// DeleteByID hard-deletes the enseignant with the given id.
func (r *PostgresEnseignantRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM enseignants WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete enseignant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("enseignant not found: %s", id)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnseignant(row rowScanner) (*model.Enseignant, error) {
	e := &model.Enseignant{}
	var titre, specialite, email, telephone, bio, urlPhoto sql.NullString
	err := row.Scan(&e.ID, &e.Nom, &e.Prenom, &titre, &e.Domaine, &specialite,
		&email, &telephone, &bio, &urlPhoto, &e.DateAjout)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan enseignant: %w", err)
	}

	e.Titre = titre.String
	e.Specialite = specialite.String
	e.Email = email.String
	e.Telephone = telephone.String
	e.Bio = bio.String
	e.URLPhoto = urlPhoto.String
	return e, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ EnseignantRepository = (*PostgresEnseignantRepo)(nil)
