package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/middleware"
	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/photo"
	"github.com/ftsi/facsite/internal/storage"
)

// PhotoHandler implements the campus photo endpoints.
type PhotoHandler struct {
	service        photo.Service
	collector      *metrics.Collector
	uploadMaxBytes int64
	logger         *slog.Logger
}

// NewPhotoHandler creates the PhotoHandler.
func NewPhotoHandler(service photo.Service, collector *metrics.Collector, uploadMaxBytes int64, logger *slog.Logger) *PhotoHandler {
	return &PhotoHandler{
		service:        service,
		collector:      collector,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

type photoResponse struct {
	ID          string    `json:"id"`
	Titre       string    `json:"titre"`
	Description string    `json:"description"`
	URLImage    string    `json:"url_image"`
	DateAjout   time.Time `json:"date_ajout"`
	AjoutePar   string    `json:"ajoute_par"`
}

func toPhotoResponse(p *model.Photo) photoResponse {
	return photoResponse{
		ID:          p.ID,
		Titre:       p.Titre,
		Description: p.Description,
		URLImage:    p.URLImage,
		DateAjout:   p.DateAjout,
		AjoutePar:   p.AjoutePar,
	}
}

// List handles GET /api/photos.
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, toPhotoResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /admin/api/photos. The body is multipart form data
// with a required "image" file part.
func (h *PhotoHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	principal := middleware.PrincipalFromContext(r.Context())
	p, err := h.service.Create(r.Context(), input, upload, principal.User.ID)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusCreated, toPhotoResponse(p))
}

// Update handles PUT /admin/api/photos/{id}.
func (h *PhotoHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input, upload)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusOK, toPhotoResponse(p))
}

// Delete handles DELETE /admin/api/photos/{id}.
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PhotoHandler) parseForm(w http.ResponseWriter, r *http.Request) (photo.Input, *photo.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("formulaire multipart illisible ou fichier trop volumineux"))
		return photo.Input{}, nil, nil, false
	}

	input := photo.Input{
		Titre:       r.FormValue("titre"),
		Description: r.FormValue("description"),
	}

	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil, cleanup, true
		}
		cleanup()
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("fichier image illisible"))
		return photo.Input{}, nil, nil, false
	}

	upload := &photo.Upload{Filename: header.Filename, Reader: file}
	return input, upload, func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, true
}

// recordUpload counts the upload step by its own outcome: a coded error other
// than UPLOAD_FAILED means the upload never ran, and any later failure (a row
// write, for instance) still leaves the upload itself successful.
func (h *PhotoHandler) recordUpload(hadFile bool, err error) {
	if !hadFile {
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == model.ErrCodeUploadFailed {
			h.collector.RecordUpload(storage.BucketCampusPhotos, false)
		}
		return
	}
	h.collector.RecordUpload(storage.BucketCampusPhotos, true)
}
