package flashes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"flashfeed/internal/domain/flash"
	"flashfeed/internal/metrics"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Lister serves the latest enriched flashes
type Lister interface {
	ListLatest(ctx context.Context, skip, limit int) ([]*flash.Flash, error)
}

// Handler exposes the read API for flashes
type Handler struct {
	query Lister
	log   *logger.Logger
}

// New creates a new flashes handler
func New(query Lister, log *logger.Logger) *Handler {
	return &Handler{
		query: query,
		log:   log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleLatest serves GET /flashes/latest?skip=N&limit=M
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "skip must be a non-negative integer"})
		return
	}

	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil || limit < 1 || limit > maxLimit {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer between 1 and 100"})
		return
	}

	start := time.Now()
	results, err := h.query.ListLatest(r.Context(), skip, limit)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid pagination parameters"})
			return
		}
		// Internal details stay out of the response body
		h.log.Errorf("Latest flashes query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to retrieve flashes"})
		return
	}

	if results == nil {
		results = []*flash.Flash{}
	}
	writeJSON(w, http.StatusOK, results)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
