// Package classifier is the boundary to the external relation
// classification service. It converts the raw answer into a validated
// relation label or "none": any transport failure, non-success response,
// or malformed payload degrades to "no relation" so a flaky classifier can
// never fail a note-creation request.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/gebo/internal/models"
)

// None is the result for "no relation".
const None = ""

// Client answers whether two text bodies are related.
type Client interface {
	// Classify returns a label from the fixed relation vocabulary, or None.
	Classify(ctx context.Context, textA, textB string) string
}

// HTTP implements Client against the detect-relation JSON endpoint.
type HTTP struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
}

// NewHTTP creates a classifier client with a fixed per-call transport timeout.
func NewHTTP(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type classifyRequest struct {
	Text1 string `json:"text1"`
	Text2 string `json:"text2"`
}

type classifyResponse struct {
	Relation string `json:"relation"`
}

// Classify issues a single best-effort call. Failures are logged and
// reported as None, never propagated.
func (c *HTTP) Classify(ctx context.Context, textA, textB string) string {
	payload, err := json.Marshal(classifyRequest{Text1: textA, Text2: textB})
	if err != nil {
		c.logger.Warn("classifier: marshal request failed", slog.String("error", err.Error()))
		return None
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect-relation", bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("classifier: build request failed", slog.String("error", err.Error()))
		return None
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Warn("classifier: request failed", slog.String("error", err.Error()))
		return None
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("classifier: non-success response",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return None
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("classifier: malformed payload", slog.String("error", err.Error()))
		return None
	}
	if out.Relation == "" {
		return None
	}
	if !models.ValidRelation(out.Relation) {
		c.logger.Debug("classifier: label outside vocabulary", slog.String("relation", out.Relation))
		return None
	}
	return out.Relation
}

var _ Client = (*HTTP)(nil)
