package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/intemass/intemass/internal/assess"
	"github.com/intemass/intemass/internal/grading"
)

// POST /questions
// Body: assess.AuthorInput — question + standard answer (points optional,
// fullText is auto-decomposed when absent) + marking scheme (optional rules).
func CreateQuestionHandler(svc *assess.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in assess.AuthorInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		out, err := svc.CreateQuestion(r.Context(), in)
		if err != nil {
			var verr *grading.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, "create question: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// GET /questions
func ListQuestionsHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		qs, err := store.ListQuestions(r.Context(), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(qs)
	}
}

// GET /questions/{questionID} — student-safe: no standard answer, no scheme.
func GetQuestionHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "questionID")
		q, err := store.GetQuestion(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// GET /questions/{questionID}/scheme — teacher view: standard answer with its
// decomposed points plus the marking scheme.
func GetSchemeHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "questionID")
		a, err := store.GetStandardAnswer(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		m, err := store.GetMarkingScheme(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"standardAnswer": a,
			"markingScheme":  m,
		})
	}
}

// GET /dashboard — per-question submission counts and average percentage.
func DashboardHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := store.Summary(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(sum)
	}
}

func writeStoreErr(w http.ResponseWriter, err error) {
	if assess.IsNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
