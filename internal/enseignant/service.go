// Package enseignant implements the faculty member content service.
package enseignant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/notify"
	"github.com/ftsi/facsite/internal/repository"
	"github.com/ftsi/facsite/internal/security"
	"github.com/ftsi/facsite/internal/storage"
)

const listCacheKey = "enseignants"

// Upload is a file submitted with a create or update.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// Input carries the writable fields of an enseignant.
type Input struct {
	Nom        string
	Prenom     string
	Titre      string
	Domaine    string
	Specialite string
	Email      string
	Telephone  string
	Bio        string
}

// Service defines the enseignant operations.
type Service interface {
	// List returns all enseignants ordered by nom. Results are served from a
	// short-lived cache that every mutation invalidates.
	List(ctx context.Context) ([]*model.Enseignant, error)

	// Get returns one enseignant.
	Get(ctx context.Context, id string) (*model.Enseignant, error)

	// Create inserts a new enseignant. The photo is optional; when present it
	// is uploaded first and an upload failure aborts the insert.
	Create(ctx context.Context, input Input, photo *Upload) (*model.Enseignant, error)

	// Update overwrites an existing enseignant. A new photo replaces the old
	// reference; the superseded object is left for the orphan sweeper.
	Update(ctx context.Context, id string, input Input, photo *Upload) (*model.Enseignant, error)

	// Delete removes an enseignant and best-effort deletes its photo object.
	Delete(ctx context.Context, id string) error
}

type enseignantService struct {
	repo      repository.EnseignantRepository
	store     storage.ObjectStore
	sanitizer security.ContentSanitizerService
	notifier  notify.Notifier
	cache     *expirable.LRU[string, []*model.Enseignant]
	logger    *slog.Logger
}

// NewService creates the enseignant service.
func NewService(
	repo repository.EnseignantRepository,
	store storage.ObjectStore,
	sanitizer security.ContentSanitizerService,
	notifier notify.Notifier,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Service {
	return &enseignantService{
		repo:      repo,
		store:     store,
		sanitizer: sanitizer,
		notifier:  notifier,
		cache:     expirable.NewLRU[string, []*model.Enseignant](cacheSize, nil, cacheTTL),
		logger:    logger,
	}
}

func (s *enseignantService) List(ctx context.Context) ([]*model.Enseignant, error) {
	if cached, ok := s.cache.Get(listCacheKey); ok {
		return cached, nil
	}

	enseignants, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enseignants: %w", err)
	}

	s.cache.Add(listCacheKey, enseignants)
	return enseignants, nil
}

func (s *enseignantService) Get(ctx context.Context, id string) (*model.Enseignant, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find enseignant: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError("Enseignant")
	}
	return e, nil
}

func (s *enseignantService) Create(ctx context.Context, input Input, photo *Upload) (*model.Enseignant, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	e := &model.Enseignant{
		ID:         uuid.New().String(),
		Nom:        strings.TrimSpace(input.Nom),
		Prenom:     strings.TrimSpace(input.Prenom),
		Titre:      strings.TrimSpace(input.Titre),
		Domaine:    input.Domaine,
		Specialite: strings.TrimSpace(input.Specialite),
		Email:      strings.TrimSpace(input.Email),
		Telephone:  strings.TrimSpace(input.Telephone),
		Bio:        s.sanitizer.Sanitize(input.Bio),
		DateAjout:  time.Now(),
	}

	var uploadedName string
	if photo != nil {
		name := storage.GenerateFilename(time.Now(), photo.Filename)
		url, err := s.store.Upload(ctx, storage.BucketEnseignantsPhotos, name, photo.Reader)
		if err != nil {
			s.logger.ErrorContext(ctx, "photo upload failed, aborting create", slog.String("error", err.Error()))
			s.notifier.Error(ctx, notify.MsgOperationFailed)
			return nil, model.NewUploadFailedError("la photo n'a pas pu être enregistrée")
		}
		e.URLPhoto = url
		uploadedName = name
	}

	if err := s.repo.Create(ctx, e); err != nil {
		if uploadedName != "" {
			s.compensate(ctx, uploadedName)
		}
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to create enseignant: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgEnseignantCreated)
	return e, nil
}

func (s *enseignantService) Update(ctx context.Context, id string, input Input, photo *Upload) (*model.Enseignant, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find enseignant: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError("Enseignant")
	}

	e.Nom = strings.TrimSpace(input.Nom)
	e.Prenom = strings.TrimSpace(input.Prenom)
	e.Titre = strings.TrimSpace(input.Titre)
	e.Domaine = input.Domaine
	e.Specialite = strings.TrimSpace(input.Specialite)
	e.Email = strings.TrimSpace(input.Email)
	e.Telephone = strings.TrimSpace(input.Telephone)
	e.Bio = s.sanitizer.Sanitize(input.Bio)

	var uploadedName string
	if photo != nil {
		name := storage.GenerateFilename(time.Now(), photo.Filename)
		url, err := s.store.Upload(ctx, storage.BucketEnseignantsPhotos, name, photo.Reader)
		if err != nil {
			s.logger.ErrorContext(ctx, "photo upload failed, aborting update", slog.String("error", err.Error()))
			s.notifier.Error(ctx, notify.MsgOperationFailed)
			return nil, model.NewUploadFailedError("la photo n'a pas pu être enregistrée")
		}
		e.URLPhoto = url
		uploadedName = name
	}

	if err := s.repo.Update(ctx, e); err != nil {
		if uploadedName != "" {
			s.compensate(ctx, uploadedName)
		}
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to update enseignant: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgEnseignantUpdated)
	return e, nil
}

func (s *enseignantService) Delete(ctx context.Context, id string) error {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find enseignant: %w", err)
	}
	if e == nil {
		return model.NewNotFoundError("Enseignant")
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return fmt.Errorf("failed to delete enseignant: %w", err)
	}

	// Best effort: the sweeper catches anything left behind.
	if name, ok := storage.ObjectNameFromURL(e.URLPhoto, storage.BucketEnseignantsPhotos); ok {
		if err := s.store.Delete(ctx, storage.BucketEnseignantsPhotos, name); err != nil {
			s.logger.WarnContext(ctx, "failed to delete photo object", slog.String("error", err.Error()))
		}
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgEnseignantDeleted)
	return nil
}

// compensate removes an object whose database reference was never written.
func (s *enseignantService) compensate(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, storage.BucketEnseignantsPhotos, name); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned upload, leaving it for the sweeper",
			slog.String("object", name),
			slog.String("error", err.Error()),
		)
	}
}

func validate(input Input) error {
	if strings.TrimSpace(input.Nom) == "" {
		return model.NewValidationError("le nom est obligatoire")
	}
	if input.Domaine != "" && !model.IsValidDepartement(input.Domaine) {
		return model.NewValidationError("le domaine sélectionné est inconnu")
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return model.NewValidationError("adresse email invalide")
		}
	}
	return nil
}

// compile-time interface check
var _ Service = (*enseignantService)(nil)
