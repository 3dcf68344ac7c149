package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/intemass/intemass/internal/api/http"
	"github.com/intemass/intemass/internal/assess"
	"github.com/intemass/intemass/internal/audit"
	auth "github.com/intemass/intemass/internal/auth/middleware"
	"github.com/intemass/intemass/internal/config"
	"github.com/intemass/intemass/internal/db"
	"github.com/intemass/intemass/internal/grading"
	"github.com/intemass/intemass/internal/grading/llm"
	"github.com/intemass/intemass/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := assess.NewSQLStore(dbh, cfg.DBDriver)
	events := audit.NewEventRepo(dbh)

	// --- Grading engine ---
	var scorer grading.Scorer
	var feedback assess.FeedbackGenerator
	if cfg.LLMModel != "" {
		client := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
		scorer = client
		if cfg.LLMFeedback {
			feedback = client
		}
		log.Printf("similarity scorer: model %s", cfg.LLMModel)
	} else {
		lex := grading.NewLexicalScorer()
		lex.MinSegmentLen = cfg.MinSegmentLen
		scorer = lex
		log.Printf("similarity scorer: lexical")
	}
	engine := grading.New(scorer,
		grading.WithThresholds(cfg.ExactThreshold, cfg.HighThreshold, cfg.PartialThreshold),
		grading.WithRequiredTermCeiling(cfg.RequiredTermCeiling),
		grading.WithConcurrency(cfg.Concurrency),
		grading.WithRetries(cfg.ScorerRetries, 100*time.Millisecond),
		grading.WithSubmissionTimeout(cfg.SubmissionTimeout),
	)

	decomp := grading.DefaultDecomposeConfig()
	decomp.MinSegmentLen = cfg.MinSegmentLen
	svcOpts := []assess.ServiceOption{
		assess.WithEventLog(events),
		assess.WithDecomposeConfig(decomp),
	}
	if feedback != nil {
		svcOpts = append(svcOpts, assess.WithFeedbackGenerator(feedback))
	}
	svc := assess.NewService(store, engine, svcOpts...)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher authoring
		pr.With(rbac.Require("question:create")).
			Post("/questions", api.CreateQuestionHandler(svc))
		pr.With(rbac.Require("question:view")).
			Get("/questions", api.ListQuestionsHandler(store))
		pr.With(rbac.Require("question:view")).
			Get("/questions/{questionID}", api.GetQuestionHandler(store))
		pr.With(rbac.Require("question:view-scheme")).
			Get("/questions/{questionID}/scheme", api.GetSchemeHandler(store))

		// Student flow
		pr.With(rbac.Require("answer:submit")).
			Post("/submissions", api.SubmitAnswerHandler(svc))
		pr.With(rbac.RequireAny("answer:view-own", "answer:view-all")).
			Get("/submissions", api.ListSubmissionsHandler(store))
		pr.With(rbac.RequireAny("answer:view-own", "answer:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(store))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/submissions/{submissionID}/result", api.GetResultHandler(store))

		// Teacher grading surface
		pr.With(rbac.Require("result:regrade")).
			Post("/submissions/{submissionID}/regrade", api.RegradeHandler(svc))
		pr.With(rbac.Require("result:view-all")).
			Get("/submissions/{submissionID}/events", api.EventsHandler(events))
		pr.With(rbac.Require("dashboard:view")).
			Get("/dashboard", api.DashboardHandler(store))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
