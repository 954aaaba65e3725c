package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/queue"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
)

type apiFixture struct {
	app    *fiber.App
	store  *memory.Store
	queue  *queue.MemoryQueue
	tokens *auth.TokenManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	q := queue.NewMemoryQueue()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler(nil, nil, metrics),
		Tickets: handlers.NewTicketsHandler(handlers.TicketsHandlerDependencies{
			TicketRepo:         store.Tickets(),
			ClassificationRepo: store.Classifications(),
			EnrichedRepo:       store.EnrichedOutputs(),
			Queue:              q,
			IngestQueue:        "tickets",
			Logger:             logger,
		}),
		AuthMiddleware: auth.NewMiddleware(tokens),
	})
	return &apiFixture{app: app, store: store, queue: q, tokens: tokens}
}

func (fx *apiFixture) request(t *testing.T, method, path string, body []byte, authed bool) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, _, err := fx.tokens.GenerateToken("test-client")
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := fx.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSubmit_Accepted(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	body, _ := json.Marshal(domain.TicketPayload{
		SenderEmail: "user@example.com",
		Subject:     "printer jam",
		Body:        "tray 2 is stuck",
	})

	resp := fx.request(t, http.MethodPost, "/tickets", body, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	var out dto.SubmitTicketResponse
	decodeBody(t, resp, &out)
	if out.TicketID == "" || out.Status != "queued" {
		t.Errorf("response = %+v", out)
	}

	// The gateway only enqueues; ingestion owns the store write.
	if fx.queue.Len("tickets") != 1 {
		t.Errorf("ingest queue length = %d, want 1", fx.queue.Len("tickets"))
	}
	if _, err := fx.store.Tickets().GetByID(context.Background(), out.TicketID); err == nil {
		t.Error("submission must not write the store directly")
	}
}

func TestSubmit_ValidationError(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	body, _ := json.Marshal(domain.TicketPayload{SenderEmail: "user@example.com"})

	resp := fx.request(t, http.MethodPost, "/tickets", body, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var out struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	decodeBody(t, resp, &out)
	if out.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %q", out.Error.Code)
	}
	if _, ok := out.Error.Details["body"]; !ok {
		t.Errorf("details = %v, want body listed", out.Error.Details)
	}
	if fx.queue.Len("tickets") != 0 {
		t.Error("invalid payload must not be enqueued")
	}
}

func TestSubmit_RequiresAuth(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	resp := fx.request(t, http.MethodPost, "/tickets", []byte(`{}`), false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetTicket_MergedView(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	ctx := context.Background()
	if _, err := fx.store.Tickets().InsertIfAbsent(ctx, &domain.Ticket{
		TicketID:    "t-1",
		Source:      domain.TicketSourceEmail,
		SenderEmail: "user@example.com",
		Subject:     "VPN down",
		Body:        "cannot connect",
	}); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}

	resp := fx.request(t, http.MethodGet, "/tickets/t-1", nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var out dto.TicketDetailResponse
	decodeBody(t, resp, &out)
	if out.Ticket.TicketID != "t-1" {
		t.Errorf("ticket id = %q", out.Ticket.TicketID)
	}
	if out.ClassificationState != dto.StagePending || out.EnrichmentState != dto.StagePending {
		t.Errorf("states = %q/%q, want pending/pending", out.ClassificationState, out.EnrichmentState)
	}

	if err := fx.store.Classifications().Insert(ctx, &domain.Classification{
		TicketID: "t-1",
		Category: "Network",
		Priority: domain.PriorityP2,
	}); err != nil {
		t.Fatalf("Insert classification: %v", err)
	}

	resp = fx.request(t, http.MethodGet, "/tickets/t-1", nil, true)
	decodeBody(t, resp, &out)
	if out.ClassificationState != dto.StageComplete {
		t.Errorf("classification state = %q, want complete", out.ClassificationState)
	}
	if out.Classification == nil || out.Classification.Category != "Network" {
		t.Errorf("classification = %+v", out.Classification)
	}
	if out.EnrichmentState != dto.StagePending {
		t.Errorf("enrichment state = %q, want pending", out.EnrichmentState)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	resp := fx.request(t, http.MethodGet, "/tickets/ghost", nil, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &out)
	if out.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q", out.Error.Code)
	}
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	resp := fx.request(t, http.MethodGet, "/health/live", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
