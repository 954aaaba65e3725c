// Package collaborator contains the HTTP clients for the external systems
// the pipeline consumes through narrow call contracts: the LLM classifier
// and solution generator, the knowledge-base retrieval service, and the
// ticket-management sink.
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

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// classificationSchemaJSON is the strict response schema the model is held
// to. It is both sent as the response_format constraint and compiled locally
// so a malformed model reply never reaches the store.
const classificationSchemaJSON = `{
  "type": "object",
  "properties": {
    "category": {"type": "string"},
    "subcategory": {"type": "string"},
    "service": {"type": "string"},
    "intent": {"type": "string"},
    "impact": {"type": "string", "enum": ["low", "medium", "high"]},
    "urgency": {"type": "string", "enum": ["low", "medium", "high"]},
    "priority": {"type": "string", "enum": ["P1", "P2", "P3", "P4"]},
    "confidence": {"type": "number"},
    "routing_hints": {"type": "array", "items": {"type": "string"}},
    "suggested_actions": {"type": "array", "items": {"type": "string"}}
  },
  "required": [
    "category", "subcategory", "service", "intent",
    "impact", "urgency", "priority", "confidence",
    "routing_hints", "suggested_actions"
  ],
  "additionalProperties": false
}`

// LLMClient calls an OpenAI-compatible chat-completions endpoint for both
// ticket classification and solution generation.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	schema     *jsonschema.Schema
	rawSchema  json.RawMessage
}

// NewLLMClient builds a client from config. The classification schema is
// compiled once at construction.
func NewLLMClient(cfg config.ClassifierConfig) (*LLMClient, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("classification.json", strings.NewReader(classificationSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add classification schema: %w", err)
	}
	schema, err := compiler.Compile("classification.json")
	if err != nil {
		return nil, fmt.Errorf("compile classification schema: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		schema:     schema,
		rawSchema:  json.RawMessage(classificationSchemaJSON),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
	Temperature         float64         `json:"temperature"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

type responseFormat struct {
	Type       string       `json:"type"`
	JSONSchema *namedSchema `json:"json_schema,omitempty"`
}

type namedSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify asks the model for a structured verdict on the ticket and
// validates the reply against the classification schema.
func (c *LLMClient) Classify(ctx context.Context, ticket *domain.Ticket) (*domain.Classification, error) {
	prompt := fmt.Sprintf(`Classify this IT helpdesk ticket:

Subject: %s
Body: %s
From: %s

Provide:
- category (Hardware/Software/Network/Account/Mobile/General)
- subcategory (specific type, use "General" if none)
- service (VPN/Outlook/Samsung/etc, use "Unknown" if none)
- intent (ConnectivityIssue/PasswordReset/Installation/etc)
- impact (low/medium/high)
- urgency (low/medium/high)
- priority (P1/P2/P3/P4)
- confidence (0.0 to 1.0)
- routing_hints (array like ["Team:Mobility", "Skill:Android"])
- suggested_actions (array of actions, empty [] if none)`,
		ticket.Subject, ticket.Body, ticket.SenderEmail)

	req := &chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an IT ticket classifier. Return only valid JSON."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &namedSchema{
				Name:   "classification",
				Strict: true,
				Schema: c.rawSchema,
			},
		},
		Temperature:         0.3,
		MaxCompletionTokens: 512,
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.parseClassification(ticket.TicketID, content)
}

// GenerateSolution asks the model for an agent-ready reply built from the
// ticket, its classification, and retrieved knowledge-base context.
func (c *LLMClient) GenerateSolution(ctx context.Context, ticket *domain.Ticket, classification *domain.Classification, kbContext string) (string, error) {
	prompt := fmt.Sprintf(`Ticket: %s
Description: %s
Category: %s

Context from knowledge base:
%s

Provide a helpful solution:`,
		ticket.Subject, ticket.Body, classification.Category, kbContext)

	req := &chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an IT helpdesk assistant. Provide clear, actionable solutions."},
			{Role: "user", Content: prompt},
		},
		Temperature:         0.3,
		MaxCompletionTokens: 500,
	}
	return c.complete(ctx, req)
}

func (c *LLMClient) complete(ctx context.Context, req *chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperrors.NewCollaboratorError("classifier", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewCollaboratorError("classifier", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewCollaboratorError("classifier",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", apperrors.NewCollaboratorError("classifier", fmt.Errorf("unmarshal response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", apperrors.NewCollaboratorError("classifier", fmt.Errorf("empty choices"))
	}
	return out.Choices[0].Message.Content, nil
}

func (c *LLMClient) parseClassification(ticketID, content string) (*domain.Classification, error) {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return nil, apperrors.NewCollaboratorError("classifier", fmt.Errorf("reply is not JSON: %w", err))
	}
	if err := c.schema.Validate(value); err != nil {
		return nil, apperrors.NewCollaboratorError("classifier", fmt.Errorf("reply fails schema: %w", err))
	}

	var classification domain.Classification
	if err := json.Unmarshal([]byte(content), &classification); err != nil {
		return nil, apperrors.NewCollaboratorError("classifier", fmt.Errorf("decode reply: %w", err))
	}
	classification.TicketID = ticketID

	// The taxonomy treats these markers as "no value".
	switch classification.Subcategory {
	case "General", "Unknown", "None":
		classification.Subcategory = ""
	}
	switch classification.Service {
	case "Unknown", "None":
		classification.Service = ""
	}
	if classification.Confidence < 0 {
		classification.Confidence = 0
	}
	if classification.Confidence > 1 {
		classification.Confidence = 1
	}
	if classification.RoutingHints == nil {
		classification.RoutingHints = []string{}
	}
	if classification.SuggestedActions == nil {
		classification.SuggestedActions = []string{}
	}
	return &classification, nil
}
