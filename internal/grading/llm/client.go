// Package llm backs the grading engine's similarity capability with an
// OpenAI-compatible chat-completions API. The engine stays agnostic: this
// client is one Scorer implementation, swappable for the lexical one.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/intemass/intemass/internal/grading"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a client. baseURL may point at any compatible endpoint.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

type similarityReply struct {
	Similarity  float64 `json:"similarity"`
	MatchedSpan string  `json:"matched_span"`
}

// Score implements grading.Scorer: the model judges how strongly the
// student's text expresses the standard point and quotes the best-matching
// span. Temperature 0 keeps repeated calls close enough for the engine's
// threshold classification to be stable.
func (c *Client) Score(ctx context.Context, candidateText, pointText string, requiredTerms []string) (float64, string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSimilarityPrompt(pointText, requiredTerms)},
			{Role: openai.ChatMessageRoleUser, Content: candidateText},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return 0, "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return 0, "", &grading.ScorerTransientError{Err: errors.New("model returned no choices")}
	}

	raw := resp.Choices[0].Message.Content
	var reply similarityReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return 0, "", &grading.ScorerFatalError{Err: fmt.Errorf("parse similarity reply: %w (raw: %s)", err, raw)}
	}
	if reply.Similarity < 0 {
		reply.Similarity = 0
	}
	if reply.Similarity > 1 {
		reply.Similarity = 1
	}
	return reply.Similarity, reply.MatchedSpan, nil
}

// GenerateFeedback asks the model for a short strengths/weaknesses narrative
// to append to the deterministic overall feedback. Scores never depend on
// this text; failures are the caller's to ignore.
func (c *Client) GenerateFeedback(ctx context.Context, answerText string, res grading.Result) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildFeedbackPrompt(res)},
			{Role: openai.ChatMessageRoleUser, Content: answerText},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildSimilarityPrompt(pointText string, requiredTerms []string) string {
	var sb strings.Builder
	sb.WriteString("You judge how strongly a student's essay expresses one expected point.\n\n")
	sb.WriteString("EXPECTED POINT: " + pointText + "\n\n")
	if len(requiredTerms) > 0 {
		sb.WriteString("TERMS THAT SHOULD APPEAR: " + strings.Join(requiredTerms, ", ") + "\n\n")
	}
	sb.WriteString("The user message is the student's full answer. ")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"similarity": <number 0 to 1>, "matched_span": "<the sentence(s) of the answer closest to the point, or empty string>"}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildFeedbackPrompt(res grading.Result) string {
	var sb strings.Builder
	sb.WriteString("You are an essay grading assistant writing feedback for a student.\n")
	fmt.Fprintf(&sb, "The student scored %.1f of %.1f (%.1f%%).\n", res.TotalScore, res.MaxScore, res.Percentage)
	if len(res.MatchedPoints) > 0 {
		sb.WriteString("Points covered:\n")
		for _, mp := range res.MatchedPoints {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", mp.PointNumber, mp.MatchType, mp.StandardText)
		}
	}
	if len(res.MissedPoints) > 0 {
		sb.WriteString("Points missed: " + strings.Join(res.MissedPoints, ", ") + "\n")
	}
	sb.WriteString("\nThe user message is the student's answer. ")
	sb.WriteString("Write 2-4 sentences of constructive feedback: what was done well, what is missing, and one concrete suggestion. Plain text only.")
	return sb.String()
}

// classify maps API failures onto the engine's retry taxonomy: rate limits,
// 5xx and transport errors are worth retrying; everything else is not.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return &grading.ScorerTransientError{Err: err}
		}
		return &grading.ScorerFatalError{Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &grading.ScorerTransientError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &grading.ScorerTransientError{Err: err}
	}
	// Network-level failures arrive as plain errors from the HTTP client.
	return &grading.ScorerTransientError{Err: err}
}
