package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataCoversEveryCode(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	if len(tests) != len(metadataByCode) {
		t.Fatalf("metadata table has %d codes, test covers %d", len(metadataByCode), len(tests))
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s: want status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s: want public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s: want retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s: want details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("NO_SUCH_CODE")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown code should map to internal, got status %d", meta.HTTPStatus)
	}
	if meta.DetailsAllowed {
		t.Fatal("unknown code must not allow details")
	}
}

func TestNewAndWithDetails(t *testing.T) {
	err := New(CodeConflict, "insufficient stock for part")
	if err.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Message() != "insufficient stock for part" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.Details() != nil {
		t.Fatal("details should start nil")
	}

	err.WithDetails(map[string]any{"part_id": "a1"})
	if err.Details() == nil {
		t.Fatal("details were not attached")
	}
}

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "aggregate vendor payments")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("wrapped error lost its cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}

	nilWrapped := Wrap(CodeStateConflict, nil, "payout already approved")
	if nilWrapped.Unwrap() != nil {
		t.Fatal("wrapping nil must not fabricate a cause")
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	typed := New(CodeStateConflict, "payment is terminal")
	if got := As(typed); got == nil || got.Code() != CodeStateConflict {
		t.Fatal("As failed on a direct typed error")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("As must return nil for untyped errors")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) must return nil")
	}
}
