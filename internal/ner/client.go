// Package ner calls the external named-entity recognition service.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Client is an HTTP client for the NER sidecar. It implements
// ingest.NERClient.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a client for the given endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []nerEntity `json:"entities"`
}

type nerEntity struct {
	Span       string  `json:"span"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Candidates returns the person spans the service found in the text.
// Non-person labels are dropped here so callers only see what they can use.
func (c *Client) Candidates(ctx context.Context, text string) ([]ingest.PersonCandidate, error) {
	payload, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode ner request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}

	candidates := make([]ingest.PersonCandidate, 0, len(decoded.Entities))
	for _, entity := range decoded.Entities {
		if entity.Label != "PER" && entity.Label != "PERSON" {
			continue
		}
		candidates = append(candidates, ingest.PersonCandidate{
			Span:       entity.Span,
			Confidence: entity.Confidence,
		})
	}
	return candidates, nil
}
