// Package repository defines the persistence interfaces.
package repository

import (
	"context"

	"github.com/ftsi/facsite/internal/model"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// FindByID returns the user with the given id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail returns the user with the given email, or nil when absent.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create inserts a new user. A duplicate email returns an error.
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	// Create inserts a session.
	Create(ctx context.Context, session *model.Session) error
	// FindByID returns the session with the given id. Expired sessions are
	// treated as absent and return nil.
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID deletes the session with the given id. Deleting an absent
	// session is not an error.
	DeleteByID(ctx context.Context, id string) error
	// ListExpired returns the ids of sessions past their expiry.
	ListExpired(ctx context.Context) ([]string, error)
	// DeleteExpired removes sessions past their expiry and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// AdminRepository reads the administrators membership set.
type AdminRepository interface {
	// CountByUserID returns the number of membership rows for the given
	// user id. The caller treats anything other than exactly one as
	// non-administrator.
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// EnseignantRepository persists faculty member profiles.
type EnseignantRepository interface {
	// List returns all enseignants ordered by nom ascending.
	List(ctx context.Context) ([]*model.Enseignant, error)
	// FindByID returns the enseignant with the given id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.Enseignant, error)
	// Create inserts an enseignant.
	Create(ctx context.Context, e *model.Enseignant) error
	// Update overwrites the mutable fields of an existing enseignant.
	Update(ctx context.Context, e *model.Enseignant) error
	// DeleteByID hard-deletes the enseignant with the given id.
	DeleteByID(ctx context.Context, id string) error
}

// PhotoRepository persists campus photos.
type PhotoRepository interface {
	// List returns all photos ordered by date_ajout descending.
	List(ctx context.Context) ([]*model.Photo, error)
	// FindByID returns the photo with the given id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.Photo, error)
	// Create inserts a photo.
	Create(ctx context.Context, p *model.Photo) error
	// Update overwrites the mutable fields of an existing photo.
	Update(ctx context.Context, p *model.Photo) error
	// DeleteByID hard-deletes the photo with the given id.
	DeleteByID(ctx context.Context, id string) error
}

// HoraireRepository persists schedule documents.
type HoraireRepository interface {
	// List returns all horaires ordered by date_publication descending.
	List(ctx context.Context) ([]*model.Horaire, error)
	// FindByID returns the horaire with the given id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.Horaire, error)
	// Create inserts an horaire.
	Create(ctx context.Context, h *model.Horaire) error
	// Update overwrites the mutable fields of an existing horaire.
	Update(ctx context.Context, h *model.Horaire) error
	// DeleteByID hard-deletes the horaire with the given id.
	DeleteByID(ctx context.Context, id string) error
}

// ObjectRefLister reports which storage object URLs are referenced by
// content rows. The sweeper uses it to find orphaned uploads.
type ObjectRefLister interface {
	// ListReferencedURLs returns every url_photo, url_image and url_pdf
	// currently stored in a content row.
	ListReferencedURLs(ctx context.Context) ([]string, error)
}
