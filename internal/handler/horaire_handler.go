package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ftsi/facsite/internal/horaire"
	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/middleware"
	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/storage"
)

// HoraireHandler implements the schedule document endpoints.
type HoraireHandler struct {
	service        horaire.Service
	collector      *metrics.Collector
	uploadMaxBytes int64
	logger         *slog.Logger
}

// NewHoraireHandler creates the HoraireHandler.
func NewHoraireHandler(service horaire.Service, collector *metrics.Collector, uploadMaxBytes int64, logger *slog.Logger) *HoraireHandler {
	return &HoraireHandler{
		service:        service,
		collector:      collector,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

type horaireResponse struct {
	ID              string    `json:"id"`
	Titre           string    `json:"titre"`
	Filiere         string    `json:"filiere"`
	Annee           string    `json:"annee"`
	URLPDF          string    `json:"url_pdf"`
	DatePublication time.Time `json:"date_publication"`
	PubliePar       string    `json:"publie_par"`
}

func toHoraireResponse(h *model.Horaire) horaireResponse {
	return horaireResponse{
		ID:              h.ID,
		Titre:           h.Titre,
		Filiere:         h.Filiere,
		Annee:           h.Annee,
		URLPDF:          h.URLPDF,
		DatePublication: h.DatePublication,
		PubliePar:       h.PubliePar,
	}
}

// List handles GET /api/horaires.
func (h *HoraireHandler) List(w http.ResponseWriter, r *http.Request) {
	horaires, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	out := make([]horaireResponse, 0, len(horaires))
	for _, item := range horaires {
		out = append(out, toHoraireResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /admin/api/horaires. The body is multipart form data
// with a required "pdf" file part.
func (h *HoraireHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	principal := middleware.PrincipalFromContext(r.Context())
	created, err := h.service.Create(r.Context(), input, upload, principal.User.ID)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusCreated, toHoraireResponse(created))
}

// Update handles PUT /admin/api/horaires/{id}.
func (h *HoraireHandler) Update(w http.ResponseWriter, r *http.Request) {
	input, upload, cleanup, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer cleanup()

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input, upload)
	if err != nil {
		h.recordUpload(upload != nil, err)
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.recordUpload(upload != nil, nil)

	writeJSON(w, http.StatusOK, toHoraireResponse(updated))
}

// Delete handles DELETE /admin/api/horaires/{id}.
func (h *HoraireHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HoraireHandler) parseForm(w http.ResponseWriter, r *http.Request) (horaire.Input, *horaire.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("formulaire multipart illisible ou fichier trop volumineux"))
		return horaire.Input{}, nil, nil, false
	}

	input := horaire.Input{
		Titre:   r.FormValue("titre"),
		Filiere: r.FormValue("filiere"),
		Annee:   r.FormValue("annee"),
	}

	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile("pdf")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil, cleanup, true
		}
		cleanup()
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("fichier PDF illisible"))
		return horaire.Input{}, nil, nil, false
	}

	upload := &horaire.Upload{Filename: header.Filename, Reader: file}
	return input, upload, func() {
		file.Close()
		_ = r.MultipartForm.RemoveAll()
	}, true
}

// recordUpload counts the upload step by its own outcome: a coded error other
// than UPLOAD_FAILED means the upload never ran, and any later failure (a row
// write, for instance) still leaves the upload itself successful.
func (h *HoraireHandler) recordUpload(hadFile bool, err error) {
	if !hadFile {
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == model.ErrCodeUploadFailed {
			h.collector.RecordUpload(storage.BucketHorairesPDF, false)
		}
		return
	}
	h.collector.RecordUpload(storage.BucketHorairesPDF, true)
}
