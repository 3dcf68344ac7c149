package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/intemass/intemass/internal/assess"
	"github.com/intemass/intemass/internal/audit"
	"github.com/intemass/intemass/internal/grading"
)

// POST /submissions/{submissionID}/regrade
// Synchronous: teachers regrade after fixing a scheme and want the new result
// back. The stored result is replaced, never appended.
func RegradeHandler(svc *assess.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		res, err := svc.Grade(r.Context(), id)
		if err != nil {
			var verr *grading.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
				return
			}
			var uerr *grading.ScorerUnavailableError
			if errors.As(err, &uerr) {
				http.Error(w, uerr.Error(), http.StatusBadGateway)
				return
			}
			writeStoreErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

// GET /submissions/{submissionID}/events — grading audit trail.
func EventsHandler(events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := events.List(r.Context(), chi.URLParam(r, "submissionID"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
