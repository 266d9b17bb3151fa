// services/ai_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"quest-economy-system/models"
)

// ChatTurn is one entry of the conversation context sent to the
// character model.
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ScoreResult is the scorer's verdict on one user message.
type ScoreResult struct {
	Score     int64              `json:"score"` // 0..100
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Feedback  string             `json:"feedback,omitempty"`
}

// AIClient is the external generative scorer/responder. The core
// treats it as a black box and never calls it while holding a database
// transaction.
type AIClient interface {
	Respond(ctx context.Context, quest *models.Quest, userMessage string, history []ChatTurn) (string, error)
	Score(ctx context.Context, quest *models.Quest, userMessage string) (*ScoreResult, error)
}

// HTTPAIClient talks to the AI gateway service over HTTP.
type HTTPAIClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHTTPAIClient reads AI_SERVICE_URL and AI_SERVICE_TOKEN from the
// environment. Constructed once in main and injected.
func NewHTTPAIClient() (*HTTPAIClient, error) {
	baseURL := os.Getenv("AI_SERVICE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("AI_SERVICE_URL environment variable is required")
	}
	return &HTTPAIClient{
		BaseURL: baseURL,
		Token:   os.Getenv("AI_SERVICE_TOKEN"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (c *HTTPAIClient) Respond(ctx context.Context, quest *models.Quest, userMessage string, history []ChatTurn) (string, error) {
	payload := map[string]interface{}{
		"character":     quest.Character,
		"quest_title":   quest.Title,
		"quest_context": quest.Context,
		"user_message":  userMessage,
		"history":       history,
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/v1/respond", payload, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *HTTPAIClient) Score(ctx context.Context, quest *models.Quest, userMessage string) (*ScoreResult, error) {
	payload := map[string]interface{}{
		"quest_context":    quest.Context,
		"user_message":     userMessage,
		"scoring_criteria": quest.Character.ScoringCriteria,
	}
	var out ScoreResult
	if err := c.post(ctx, "/v1/score", payload, &out); err != nil {
		return nil, err
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 100 {
		out.Score = 100
	}
	return &out, nil
}

func (c *HTTPAIClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: AI service returned status %d: %s", ErrExternalService, resp.StatusCode, string(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode AI response: %v", ErrExternalService, err)
	}
	return nil
}
