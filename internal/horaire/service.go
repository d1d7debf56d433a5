// Package horaire implements the schedule document content service.
package horaire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/notify"
	"github.com/ftsi/facsite/internal/repository"
	"github.com/ftsi/facsite/internal/storage"
)

const listCacheKey = "horaires"

// Upload is a PDF submitted with a create or update.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// Input carries the writable fields of an horaire.
type Input struct {
	Titre   string
	Filiere string
	Annee   string
}

// Service defines the schedule document operations.
type Service interface {
	// List returns all horaires, newest first. Results are served from a
	// short-lived cache that every mutation invalidates.
	List(ctx context.Context) ([]*model.Horaire, error)

	// Get returns one horaire.
	Get(ctx context.Context, id string) (*model.Horaire, error)

	// Create publishes a new horaire. The PDF is required; it is uploaded
	// first and an upload failure aborts the insert. publishedBy is the user
	// id of the publishing administrator.
	Create(ctx context.Context, input Input, pdf *Upload, publishedBy string) (*model.Horaire, error)

	// Update overwrites an existing horaire. A new PDF replaces the old
	// reference; the superseded object is left for the orphan sweeper.
	Update(ctx context.Context, id string, input Input, pdf *Upload) (*model.Horaire, error)

	// Delete removes an horaire and best-effort deletes its PDF object.
	Delete(ctx context.Context, id string) error
}

type horaireService struct {
	repo     repository.HoraireRepository
	store    storage.ObjectStore
	notifier notify.Notifier
	cache    *expirable.LRU[string, []*model.Horaire]
	logger   *slog.Logger
}

// NewService creates the horaire service.
func NewService(
	repo repository.HoraireRepository,
	store storage.ObjectStore,
	notifier notify.Notifier,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Service {
	return &horaireService{
		repo:     repo,
		store:    store,
		notifier: notifier,
		cache:    expirable.NewLRU[string, []*model.Horaire](cacheSize, nil, cacheTTL),
		logger:   logger,
	}
}

func (s *horaireService) List(ctx context.Context) ([]*model.Horaire, error) {
	if cached, ok := s.cache.Get(listCacheKey); ok {
		return cached, nil
	}

	horaires, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list horaires: %w", err)
	}

	s.cache.Add(listCacheKey, horaires)
	return horaires, nil
}

func (s *horaireService) Get(ctx context.Context, id string) (*model.Horaire, error) {
	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find horaire: %w", err)
	}
	if h == nil {
		return nil, model.NewNotFoundError("Horaire")
	}
	return h, nil
}

func (s *horaireService) Create(ctx context.Context, input Input, pdf *Upload, publishedBy string) (*model.Horaire, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if pdf == nil {
		return nil, model.NewFileRequiredError("un fichier PDF")
	}

	name := storage.GenerateFilename(time.Now(), pdf.Filename)
	url, err := s.store.Upload(ctx, storage.BucketHorairesPDF, name, pdf.Reader)
	if err != nil {
		s.logger.ErrorContext(ctx, "pdf upload failed, aborting create", slog.String("error", err.Error()))
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, model.NewUploadFailedError("le PDF n'a pas pu être enregistré")
	}

	h := &model.Horaire{
		ID:              uuid.New().String(),
		Titre:           strings.TrimSpace(input.Titre),
		Filiere:         input.Filiere,
		Annee:           strings.TrimSpace(input.Annee),
		URLPDF:          url,
		DatePublication: time.Now(),
		PubliePar:       publishedBy,
	}

	if err := s.repo.Create(ctx, h); err != nil {
		s.compensate(ctx, name)
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to create horaire: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgHoraireCreated)
	return h, nil
}

func (s *horaireService) Update(ctx context.Context, id string, input Input, pdf *Upload) (*model.Horaire, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find horaire: %w", err)
	}
	if h == nil {
		return nil, model.NewNotFoundError("Horaire")
	}

	h.Titre = strings.TrimSpace(input.Titre)
	h.Filiere = input.Filiere
	h.Annee = strings.TrimSpace(input.Annee)

	var uploadedName string
	if pdf != nil {
		name := storage.GenerateFilename(time.Now(), pdf.Filename)
		url, err := s.store.Upload(ctx, storage.BucketHorairesPDF, name, pdf.Reader)
		if err != nil {
			s.logger.ErrorContext(ctx, "pdf upload failed, aborting update", slog.String("error", err.Error()))
			s.notifier.Error(ctx, notify.MsgOperationFailed)
			return nil, model.NewUploadFailedError("le PDF n'a pas pu être enregistré")
		}
		h.URLPDF = url
		uploadedName = name
	}

	if err := s.repo.Update(ctx, h); err != nil {
		if uploadedName != "" {
			s.compensate(ctx, uploadedName)
		}
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to update horaire: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgHoraireUpdated)
	return h, nil
}

func (s *horaireService) Delete(ctx context.Context, id string) error {
	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find horaire: %w", err)
	}
	if h == nil {
		return model.NewNotFoundError("Horaire")
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return fmt.Errorf("failed to delete horaire: %w", err)
	}

	// Best effort: the sweeper catches anything left behind.
	if name, ok := storage.ObjectNameFromURL(h.URLPDF, storage.BucketHorairesPDF); ok {
		if err := s.store.Delete(ctx, storage.BucketHorairesPDF, name); err != nil {
			s.logger.WarnContext(ctx, "failed to delete pdf object", slog.String("error", err.Error()))
		}
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgHoraireDeleted)
	return nil
}

// compensate removes an object whose database reference was never written.
func (s *horaireService) compensate(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, storage.BucketHorairesPDF, name); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned upload, leaving it for the sweeper",
			slog.String("object", name),
			slog.String("error", err.Error()),
		)
	}
}

func validate(input Input) error {
	if strings.TrimSpace(input.Titre) == "" {
		return model.NewValidationError("le titre est obligatoire")
	}
	if input.Filiere == "" || !model.IsValidDepartement(input.Filiere) {
		return model.NewValidationError("la filière sélectionnée est inconnue")
	}
	if strings.TrimSpace(input.Annee) == "" {
		return model.NewValidationError("l'année est obligatoire")
	}
	return nil
}

// compile-time interface check
var _ Service = (*horaireService)(nil)
