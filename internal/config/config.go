package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	CORSOrigins    []string

	// Grading engine tunables. The partial threshold decides matched vs
	// missed and is the knob grading quality is most sensitive to.
	ExactThreshold      float64
	HighThreshold       float64
	PartialThreshold    float64
	RequiredTermCeiling float64
	Concurrency         int
	ScorerRetries       int
	SubmissionTimeout   time.Duration
	MinSegmentLen       int

	// Model-backed similarity scorer. Empty LLMModel keeps the lexical
	// reference scorer.
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMFeedback bool
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr: addr,
		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		CORSOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:9002"),

		ExactThreshold:      envFloat("GRADE_EXACT_THRESHOLD", 0.90),
		HighThreshold:       envFloat("GRADE_HIGH_THRESHOLD", 0.70),
		PartialThreshold:    envFloat("GRADE_PARTIAL_THRESHOLD", 0.40),
		RequiredTermCeiling: envFloat("GRADE_REQUIRED_TERM_CEILING", 0.40),
		Concurrency:         envInt("GRADE_CONCURRENCY", 4),
		ScorerRetries:       envInt("GRADE_SCORER_RETRIES", 3),
		SubmissionTimeout:   envDuration("GRADE_SUBMISSION_TIMEOUT", 30*time.Second),
		MinSegmentLen:       envInt("GRADE_MIN_SEGMENT_LEN", 20),

		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMFeedback: envBool("LLM_FEEDBACK", false),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
