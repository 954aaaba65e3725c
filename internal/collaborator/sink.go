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
	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// SinkClient publishes ticket updates to the external ticket-management
// system: field upserts after classification and AI reply messages after
// enrichment. Any non-2xx response is a CollaboratorError; whether that
// blocks pipeline progression is the caller's policy.
type SinkClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSinkClient builds a client from config. Returns nil when no base URL
// is configured; callers treat a nil client as "no sink deployed".
func NewSinkClient(cfg config.SinkConfig) *SinkClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SinkClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sinkTicketUpsert struct {
	TicketID    string `json:"ticketId"`
	Department  string `json:"department"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	UserEmail   string `json:"useremail"`
}

type sinkMessageAppend struct {
	Content    string `json:"content"`
	Attachment string `json:"attachment"`
}

// UpsertTicket pushes the classified ticket fields to the sink.
func (c *SinkClient) UpsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	payload := sinkTicketUpsert{
		TicketID:    ticket.TicketID,
		Department:  ticket.Department,
		Type:        ticket.TicketType,
		Description: ticket.Body,
		Title:       ticket.Subject,
		Priority:    string(ticket.Priority),
		Status:      strings.ToLower(string(ticket.Status)),
		UserEmail:   ticket.SenderEmail,
	}
	return c.post(ctx, c.baseURL+"/api/ticket", payload)
}

// AppendAIMessage appends a generated reply to the ticket's message thread.
func (c *SinkClient) AppendAIMessage(ctx context.Context, ticketID, content string) error {
	url := fmt.Sprintf("%s/api/messages/%s/messagesAI", c.baseURL, ticketID)
	return c.post(ctx, url, sinkMessageAppend{Content: content})
}

func (c *SinkClient) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.NewCollaboratorError("sink", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return apperrors.NewCollaboratorError("sink",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}
	return nil
}
