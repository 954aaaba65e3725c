package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainError_Passthrough(t *testing.T) {
	t.Parallel()

	orig := NewValidationError("bad payload", map[string]any{"body": "required"})
	converted := ToDomainError(orig)
	if converted.Code != CodeValidationFailed {
		t.Errorf("code = %q, want %q", converted.Code, CodeValidationFailed)
	}
	if converted.HTTPStatus != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", converted.HTTPStatus, http.StatusBadRequest)
	}
}

func TestToDomainError_WrapsForeign(t *testing.T) {
	t.Parallel()

	converted := ToDomainError(errors.New("boom"))
	if converted.Code != CodeInternal {
		t.Errorf("code = %q, want %q", converted.Code, CodeInternal)
	}
	if converted.Err == nil {
		t.Error("expected wrapped cause")
	}
}

func TestToDomainError_Nil(t *testing.T) {
	t.Parallel()

	if got := ToDomainError(nil); got != nil {
		t.Errorf("ToDomainError(nil) = %v, want nil", got)
	}
}

func TestToDomainError_Wrapped(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("stage failed: %w", NewStoreError(errors.New("conn refused")))
	if !IsStoreUnavailable(wrapped) {
		t.Error("expected wrapped store error to keep its code")
	}
	if got := CodeOf(wrapped); got != CodeStoreUnavailable {
		t.Errorf("CodeOf = %q, want %q", got, CodeStoreUnavailable)
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		notFound  bool
		duplicate bool
		retryable bool
	}{
		{"not found", NewNotFound("ticket", nil), true, false, false},
		{"duplicate", NewDuplicate("classification", nil), false, true, false},
		{"collaborator", NewCollaboratorError("classifier", errors.New("503")), false, false, true},
		{"store", NewStoreError(errors.New("down")), false, false, true},
		{"validation", NewValidationError("bad", nil), false, false, false},
		{"foreign", errors.New("plain"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsDuplicate(tt.err); got != tt.duplicate {
				t.Errorf("IsDuplicate = %v, want %v", got, tt.duplicate)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}
