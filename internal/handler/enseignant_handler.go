package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ftsi/facsite/internal/enseignant"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/storage"
)

// EnseignantHandler implements the enseignant endpoints.
type EnseignantHandler struct {
	service        enseignant.Service
	collector      *metrics.Collector
	uploadMaxBytes int64
	logger         *slog.Logger
}

// NewEnseignantHandler creates the EnseignantHandler.
func NewEnseignantHandler(service enseignant.Service, collector *metrics.Collector, uploadMaxBytes int64, logger *slog.Logger) *EnseignantHandler {
	return &EnseignantHandler{
		service:        service,
		collector:      collector,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

type enseignantResponse struct {
	ID         string    `json:"id"`
	Nom        string    `json:"nom"`
	Prenom     string    `json:"prenom"`
	Titre      string    `json:"titre"`
	Domaine    string    `json:"domaine"`
	Specialite string    `json:"specialite"`
	Email      string    `json:"email"`
	Telephone  string    `json:"telephone"`
	Bio        string    `json:"bio"`
	URLPhoto   string    `json:"url_photo"`
	DateAjout  time.Time `json:"date_ajout"`
}

func toEnseignantResponse(e *model.Enseignant) enseignantResponse {
	return enseignantResponse{
		ID:         e.ID,
		Nom:        e.Nom,
		Prenom:     e.Prenom,
		Titre:      e.Titre,
		Domaine:    e.Domaine,
		Specialite: e.Specialite,
		Email:      e.Email,
		Telephone:  e.Telephone,
		Bio:        e.Bio,
		URLPhoto:   e.URLPhoto,
		DateAjout:  e.DateAjout,
	}
}

// List handles GET /api/enseignants.
func (h *EnseignantHandler) List(w http.ResponseWriter, r *http.Request) {
	enseignants, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	out := make([]enseignantResponse, 0, len(enseignants))
	for _, e := range enseignants {
		out = append(out, toEnseignantResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /admin/api/enseignants. The body is multipart form
// data with an optional "photo" file part.
func (h *EnseignantHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	e, err := h.service.Create(r.Context(), input, upload)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusCreated, toEnseignantResponse(e))
}

// Update handles PUT /admin/api/enseignants/{id}.
func (h *EnseignantHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	e, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input, upload)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusOK, toEnseignantResponse(e))
}

// Delete handles DELETE /admin/api/enseignants/{id}.
func (h *EnseignantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EnseignantHandler) parseForm(w http.ResponseWriter, r *http.Request) (enseignant.Input, *enseignant.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("formulaire multipart illisible ou fichier trop volumineux"))
		return enseignant.Input{}, nil, nil, false
	}

	input := enseignant.Input{
		Nom:        r.FormValue("nom"),
		Prenom:     r.FormValue("prenom"),
		Titre:      r.FormValue("titre"),
		Domaine:    r.FormValue("domaine"),
		Specialite: r.FormValue("specialite"),
		Email:      r.FormValue("email"),
		Telephone:  r.FormValue("telephone"),
		Bio:        r.FormValue("bio"),
	}

	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil, cleanup, true
		}
		cleanup()
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("fichier photo illisible"))
		return enseignant.Input{}, nil, nil, false
	}

	upload := &enseignant.Upload{Filename: header.Filename, Reader: file}
	return input, upload, func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, true
}

// recordUpload counts the upload step by its own outcome: a coded error other
// than UPLOAD_FAILED means the upload never ran, and any later failure (a row
// write, for instance) still leaves the upload itself successful.
func (h *EnseignantHandler) recordUpload(hadFile bool, err error) {
	if !hadFile {
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == model.ErrCodeUploadFailed {
			h.collector.RecordUpload(storage.BucketEnseignantsPhotos, false)
		}
		return
	}
	h.collector.RecordUpload(storage.BucketEnseignantsPhotos, true)
}
