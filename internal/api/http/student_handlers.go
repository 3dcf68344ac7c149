package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/intemass/intemass/internal/assess"
	authmw "github.com/intemass/intemass/internal/auth/middleware"
	"github.com/intemass/intemass/internal/grading"
	"github.com/intemass/intemass/internal/rbac"
)

// POST /submissions
// Records the answer in status "pending" and grades it in the background;
// clients poll GET /submissions/{id} for the status transition.
func SubmitAnswerHandler(svc *assess.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID  string `json:"questionId"`
			StudentName string `json:"studentName"`
			AnswerText  string `json:"answerText"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.StudentName == "" {
			req.StudentName = authmw.SubjectFromContext(r.Context())
		}
		sub, err := svc.Submit(r.Context(), assess.StudentAnswer{
			QuestionID:  req.QuestionID,
			StudentName: req.StudentName,
			AnswerText:  req.AnswerText,
		})
		if err != nil {
			var verr *grading.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
				return
			}
			writeStoreErr(w, err)
			return
		}

		// Detached from the request: the engine applies its own submission
		// timeout, the outer bound is a safety net.
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := svc.Grade(ctx, id); err != nil {
				log.Printf("grade submission %s: %v", id, err)
			}
		}(sub.ID)

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(sub)
	}
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		if !mayViewSubmission(r, sub) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(sub)
	}
}

// GET /submissions?question_id=&student=&status=
func ListSubmissionsHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assess.ListOpts{
			QuestionID: q.Get("question_id"),
			Student:    q.Get("student"),
			Status:     q.Get("status"),
		}
		opts.Limit, _ = strconv.Atoi(q.Get("limit"))
		opts.Offset, _ = strconv.Atoi(q.Get("offset"))
		// Students only ever see their own rows.
		if !hasAll(r, "answer:view-all") {
			opts.Student = authmw.SubjectFromContext(r.Context())
		}
		subs, err := store.ListSubmissions(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(subs)
	}
}

// GET /submissions/{submissionID}/result
func GetResultHandler(store assess.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		sub, err := store.GetSubmission(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		if !mayViewSubmission(r, sub) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := store.GetResult(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func mayViewSubmission(r *http.Request, sub assess.StudentAnswer) bool {
	if hasAll(r, "result:view-all") {
		return true
	}
	return sub.StudentName == authmw.SubjectFromContext(r.Context())
}

func hasAll(r *http.Request, perm string) bool {
	role := rbac.RoleFromContext(r.Context())
	return role != "" && rbac.NewChecker(nil).Has(role, perm)
}
