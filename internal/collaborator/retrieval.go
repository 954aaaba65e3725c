package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/config"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Passage is a ranked knowledge-base excerpt.
type Passage struct {
	DocID string  `json:"doc_id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// RetrievalClient queries the knowledge-base retrieval service. An empty
// result list is a valid, expected outcome, not a failure.
type RetrievalClient struct {
	baseURL    string
	collection string
	topK       int
	httpClient *http.Client
}

// NewRetrievalClient builds a client from config.
func NewRetrievalClient(cfg config.RetrievalConfig) *RetrievalClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &RetrievalClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		topK:       topK,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type retrievalRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type retrievalResponse struct {
	Results []Passage `json:"results"`
}

// Retrieve returns ranked passages for the free-text query.
func (c *RetrievalClient) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	body, err := json.Marshal(retrievalRequest{Query: query, TopK: c.topK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/search", c.baseURL, c.collection)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("retrieval", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewCollaboratorError("retrieval", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewCollaboratorError("retrieval",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var out retrievalResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.NewCollaboratorError("retrieval", fmt.Errorf("unmarshal response: %w", err))
	}
	return out.Results, nil
}
