package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/radmetrics/platform/pkg/normalize"
	"github.com/radmetrics/platform/pkg/store"
)

// Invalidator drops derived views for a user after their record set
// changes. Nil is valid and means nothing is cached.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type HTTPHandler struct {
	service     *Service
	recordStore store.RecordStore
	invalidator Invalidator
	maxBody     int64
}

func NewHTTPHandler(service *Service, recordStore store.RecordStore, invalidator Invalidator, maxBody int64) *HTTPHandler {
	return &HTTPHandler{
		service:     service,
		recordStore: recordStore,
		invalidator: invalidator,
		maxBody:     maxBody,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/records/import", h.handleImport).Methods(http.MethodPost)
	router.HandleFunc("/records/imports", h.handleImportHistory).Methods(http.MethodGet)
	router.HandleFunc("/records/reclassify", h.handleReclassify).Methods(http.MethodPost)
	router.HandleFunc("/records", h.handleDeleteAll).Methods(http.MethodDelete)
}

type importRequest struct {
	Rows []models.RawImportRow `json:"rows"`
}

func (h *HTTPHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid import payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Rows) == 0 {
		http.Error(w, "no rows in import", http.StatusBadRequest)
		return
	}

	summary, err := h.service.Ingest(r.Context(), userID, req.Rows)
	if err != nil {
		var batchErr *normalize.BatchError
		if errors.As(err, &batchErr) {
			// Every row failed normalization; report the first failing
			// sample so the caller can fix the file.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":  batchErr.Error(),
				"sample": batchErr.Sample,
			})
			return
		}
		logger.Log.WithError(err).Error("import failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.invalidate(r.Context(), userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(summary)
}

func (h *HTTPHandler) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}
	if h.service.audit == nil {
		http.Error(w, "import history not enabled", http.StatusNotFound)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	summaries, err := h.service.audit.List(r.Context(), userID, limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list import batches")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"imports": summaries})
}

func (h *HTTPHandler) handleReclassify(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}

	summary, err := h.service.Reclassify(r.Context(), userID)
	if err != nil {
		logger.Log.WithError(err).Error("reclassification failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.invalidate(r.Context(), userID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (h *HTTPHandler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}

	deleted, err := h.recordStore.DeleteAllByUser(r.Context(), userID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to delete records")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.invalidate(r.Context(), userID)
	logger.Log.WithFields(map[string]interface{}{
		"user_id": userID,
		"deleted": deleted,
	}).Info("deleted all records for user")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"deleted": deleted})
}

func (h *HTTPHandler) invalidate(ctx context.Context, userID string) {
	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx, userID)
	}
}
