// Package photo implements the campus photo content service.
package photo

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
	"github.com/ftsi/facsite/internal/security"
	"github.com/ftsi/facsite/internal/storage"
)

const listCacheKey = "photos"

// Upload is an image submitted with a create or update.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// Input carries the writable fields of a photo.
type Input struct {
	Titre       string
	Description string
}

// Service defines the campus photo operations.
type Service interface {
	// List returns all photos, newest first. Results are served from a
	// short-lived cache that every mutation invalidates.
	List(ctx context.Context) ([]*model.Photo, error)

	// Get returns one photo.
	Get(ctx context.Context, id string) (*model.Photo, error)

	// Create inserts a new photo. The image file is required; it is uploaded
	// first and an upload failure aborts the insert. addedBy is the user id
	// of the publishing administrator.
	Create(ctx context.Context, input Input, image *Upload, addedBy string) (*model.Photo, error)

	// Update overwrites an existing photo. A new image replaces the old
	// reference; the superseded object is left for the orphan sweeper.
	Update(ctx context.Context, id string, input Input, image *Upload) (*model.Photo, error)

	// Delete removes a photo and best-effort deletes its image object.
	Delete(ctx context.Context, id string) error
}

type photoService struct {
	repo      repository.PhotoRepository
	store     storage.ObjectStore
	sanitizer security.ContentSanitizerService
	notifier  notify.Notifier
	cache     *expirable.LRU[string, []*model.Photo]
	logger    *slog.Logger
}

// NewService creates the photo service.
func NewService(
	repo repository.PhotoRepository,
	store storage.ObjectStore,
	sanitizer security.ContentSanitizerService,
	notifier notify.Notifier,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Service {
	return &photoService{
		repo:      repo,
		store:     store,
		sanitizer: sanitizer,
		notifier:  notifier,
		cache:     expirable.NewLRU[string, []*model.Photo](cacheSize, nil, cacheTTL),
		logger:    logger,
	}
}

func (s *photoService) List(ctx context.Context) ([]*model.Photo, error) {
	if cached, ok := s.cache.Get(listCacheKey); ok {
		return cached, nil
	}

	photos, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	s.cache.Add(listCacheKey, photos)
	return photos, nil
}

func (s *photoService) Get(ctx context.Context, id string) (*model.Photo, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find photo: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("Photo")
	}
	return p, nil
}

func (s *photoService) Create(ctx context.Context, input Input, image *Upload, addedBy string) (*model.Photo, error) {
	if strings.TrimSpace(input.Titre) == "" {
		return nil, model.NewValidationError("le titre est obligatoire")
	}
	if image == nil {
		return nil, model.NewFileRequiredError("une image")
	}

	name := storage.GenerateFilename(time.Now(), image.Filename)
	url, err := s.store.Upload(ctx, storage.BucketCampusPhotos, name, image.Reader)
	if err != nil {
		s.logger.ErrorContext(ctx, "image upload failed, aborting create", slog.String("error", err.Error()))
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, model.NewUploadFailedError("l'image n'a pas pu être enregistrée")
	}

	p := &model.Photo{
		ID:          uuid.New().String(),
		Titre:       strings.TrimSpace(input.Titre),
		Description: s.sanitizer.Sanitize(input.Description),
		URLImage:    url,
		DateAjout:   time.Now(),
		AjoutePar:   addedBy,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.compensate(ctx, name)
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to create photo: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgPhotoCreated)
	return p, nil
}

func (s *photoService) Update(ctx context.Context, id string, input Input, image *Upload) (*model.Photo, error) {
	if strings.TrimSpace(input.Titre) == "" {
		return nil, model.NewValidationError("le titre est obligatoire")
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find photo: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError("Photo")
	}

	p.Titre = strings.TrimSpace(input.Titre)
	p.Description = s.sanitizer.Sanitize(input.Description)

	var uploadedName string
	if image != nil {
		name := storage.GenerateFilename(time.Now(), image.Filename)
		url, err := s.store.Upload(ctx, storage.BucketCampusPhotos, name, image.Reader)
		if err != nil {
			s.logger.ErrorContext(ctx, "image upload failed, aborting update", slog.String("error", err.Error()))
			s.notifier.Error(ctx, notify.MsgOperationFailed)
			return nil, model.NewUploadFailedError("l'image n'a pas pu être enregistrée")
		}
		p.URLImage = url
		uploadedName = name
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if uploadedName != "" {
			s.compensate(ctx, uploadedName)
		}
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return nil, fmt.Errorf("failed to update photo: %w", err)
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgPhotoUpdated)
	return p, nil
}

func (s *photoService) Delete(ctx context.Context, id string) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find photo: %w", err)
	}
	if p == nil {
		return model.NewNotFoundError("Photo")
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.notifier.Error(ctx, notify.MsgOperationFailed)
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	// Best effort: the sweeper catches anything left behind.
	if name, ok := storage.ObjectNameFromURL(p.URLImage, storage.BucketCampusPhotos); ok {
		if err := s.store.Delete(ctx, storage.BucketCampusPhotos, name); err != nil {
			s.logger.WarnContext(ctx, "failed to delete image object", slog.String("error", err.Error()))
		}
	}

	s.cache.Remove(listCacheKey)
	s.notifier.Success(ctx, notify.MsgPhotoDeleted)
	return nil
}

// compensate removes an object whose database reference was never written.
func (s *photoService) compensate(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, storage.BucketCampusPhotos, name); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned upload, leaving it for the sweeper",
			slog.String("object", name),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ Service = (*photoService)(nil)
