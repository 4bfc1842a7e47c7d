// Package assistant is the AI support channel: it proxies user messages to
// an external conversational-response provider and hands sessions off to
// human agents.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Reply is one provider response.
type Reply struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Handoff signals that the provider wants a human agent to take over.
	Handoff bool `json:"handoff,omitempty"`
}

// Provider produces a conversational response to one user message.
type Provider interface {
	Respond(ctx context.Context, userID uuid.UUID, sessionID, message string, context map[string]string) (*Reply, error)
}

// HTTPProvider calls a remote response service over JSON/HTTP.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider client. The timeout bounds one respond
// call end to end.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type respondRequest struct {
	UserID    uuid.UUID         `json:"user_id"`
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// Respond implements Provider.
func (p *HTTPProvider) Respond(ctx context.Context, userID uuid.UUID, sessionID, message string, rctx map[string]string) (*Reply, error) {
	body, err := json.Marshal(respondRequest{UserID: userID, SessionID: sessionID, Message: message, Context: rctx})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/respond", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assistant status: %d", resp.StatusCode)
	}
	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}
