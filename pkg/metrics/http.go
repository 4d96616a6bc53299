package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/export"
	"github.com/radmetrics/platform/pkg/filter"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/metrics", h.handleSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/records/vocabularies", h.handleVocabularies).Methods(http.MethodGet)
	router.HandleFunc("/records/export", h.handleExport).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}

	f, goal, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), userID, f, goal)
	if err != nil {
		logger.Log.WithError(err).Error("failed to compute metrics snapshot")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if snapshot == nil {
		// Empty active set: an explicit empty body, not a zeroed snapshot.
		w.Write([]byte(`{"snapshot":null}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"snapshot": snapshot})
}

func (h *HTTPHandler) handleVocabularies(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}

	modalities, bodyParts, err := h.service.Vocabularies(r.Context(), userID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load vocabularies")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"modalities": modalities,
		"body_parts": bodyParts,
	})
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
		return
	}

	f, _, err := parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.service.ActiveRecords(r.Context(), userID, f)
	if err != nil {
		logger.Log.WithError(err).Error("failed to load records for export")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="rvu_records.csv"`)
	if err := export.WriteCSV(w, records); err != nil {
		logger.Log.WithError(err).Error("csv export failed mid-stream")
	}
}

// parseQuery decodes the shared filter parameters: start_date/end_date
// (YYYY-MM-DD), start_hour/end_hour (0-23), modalities/body_parts/weekdays
// (comma-separated), goal (float).
func parseQuery(r *http.Request) (filter.Filter, float64, error) {
	var f filter.Filter
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, 0, fmt.Errorf("invalid start_date %q", v)
		}
		f.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, 0, fmt.Errorf("invalid end_date %q", v)
		}
		f.EndDate = &t
	}
	if v := q.Get("start_hour"); v != "" {
		hour, err := parseHour(v)
		if err != nil {
			return f, 0, fmt.Errorf("invalid start_hour %q", v)
		}
		f.StartHour = &hour
	}
	if v := q.Get("end_hour"); v != "" {
		hour, err := parseHour(v)
		if err != nil {
			return f, 0, fmt.Errorf("invalid end_hour %q", v)
		}
		f.EndHour = &hour
	}
	f.Modalities = splitParam(q.Get("modalities"))
	f.BodyParts = splitParam(q.Get("body_parts"))
	for _, v := range splitParam(q.Get("weekdays")) {
		day, err := parseWeekday(v)
		if err != nil {
			return f, 0, err
		}
		f.Weekdays = append(f.Weekdays, day)
	}

	var goal float64
	if v := q.Get("goal"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return f, 0, fmt.Errorf("invalid goal %q", v)
		}
		goal = parsed
	}
	return f, goal, nil
}

func parseHour(v string) (int, error) {
	hour, err := strconv.Atoi(v)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range: %s", v)
	}
	return hour, nil
}

func parseWeekday(v string) (time.Weekday, error) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(day.String(), v) {
			return day, nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", v)
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
