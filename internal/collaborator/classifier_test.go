package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func chatCompletion(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func testTicket() *domain.Ticket {
	return &domain.Ticket{
		TicketID:    "t-1",
		SenderEmail: "user@example.com",
		Subject:     "VPN down",
		Body:        "cannot connect",
	}
}

func newTestLLM(t *testing.T, handler http.HandlerFunc) (*LLMClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewLLMClient(config.ClassifierConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewLLMClient: %v", err)
	}
	return client, srv
}

func TestClassify_ParsesVerdict(t *testing.T) {
	t.Parallel()

	verdict := `{
		"category": "Network", "subcategory": "VPN", "service": "Corporate VPN",
		"intent": "ConnectivityIssue", "impact": "high", "urgency": "high",
		"priority": "P1", "confidence": 0.93,
		"routing_hints": ["Team:Network"], "suggested_actions": []
	}`
	var gotPath, gotAuth string
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["response_format"] == nil {
			t.Error("expected response_format in request")
		}
		fmt.Fprint(w, chatCompletion(verdict))
	})

	classification, err := client.Classify(context.Background(), testTicket())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if classification.TicketID != "t-1" {
		t.Errorf("ticket id = %q", classification.TicketID)
	}
	if classification.Priority != domain.PriorityP1 || classification.Impact != domain.SeverityHigh {
		t.Errorf("verdict = %+v", classification)
	}
	if classification.SuggestedActions == nil {
		t.Error("suggested_actions must be non-nil")
	}
}

func TestClassify_NormalizesPlaceholders(t *testing.T) {
	t.Parallel()

	verdict := `{
		"category": "General", "subcategory": "General", "service": "Unknown",
		"intent": "Other", "impact": "low", "urgency": "low",
		"priority": "P4", "confidence": 1.7,
		"routing_hints": [], "suggested_actions": []
	}`
	client, _ := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatCompletion(verdict))
	})

	classification, err := client.Classify(context.Background(), testTicket())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if classification.Subcategory != "" {
		t.Errorf("subcategory = %q, want empty", classification.Subcategory)
	}
	if classification.Service != "" {
		t.Errorf("service = %q, want empty", classification.Service)
	}
	if classification.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", classification.Confidence)
	}
}

func TestClassify_RejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "here is your classification: {}"},
		{"missing fields", `{"category": "Network"}`},
		{"bad enum", `{
			"category": "Network", "subcategory": "x", "service": "y",
			"intent": "z", "impact": "catastrophic", "urgency": "low",
			"priority": "P4", "confidence": 0.5,
			"routing_hints": [], "suggested_actions": []
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, chatCompletion(tt.content))
			})
			_, err := client.Classify(context.Background(), testTicket())
			if apperrors.CodeOf(err) != apperrors.CodeCollaboratorFailed {
				t.Fatalf("err = %v, want COLLABORATOR_FAILED", err)
			}
		})
	}
}

func TestClassify_ServerError(t *testing.T) {
	t.Parallel()

	client, _ := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	_, err := client.Classify(context.Background(), testTicket())
	if !apperrors.IsRetryable(err) {
		t.Fatalf("err = %v, want a retryable collaborator error", err)
	}
}

func TestGenerateSolution(t *testing.T) {
	t.Parallel()

	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["response_format"] != nil {
			t.Error("solution generation must not constrain the response format")
		}
		fmt.Fprint(w, chatCompletion("Try reinstalling the VPN profile."))
	})

	reply, err := client.GenerateSolution(context.Background(), testTicket(),
		&domain.Classification{Category: "Network"}, "No specific documentation found.")
	if err != nil {
		t.Fatalf("GenerateSolution: %v", err)
	}
	if reply != "Try reinstalling the VPN profile." {
		t.Errorf("reply = %q", reply)
	}
}
