package httpkit

import (
	"errors"
	"net/http"
	"testing"

	perrs "hermes-agent/internal/platform/errors"
)

func TestPort_Check_MissingHeader(t *testing.T) {
	t.Parallel()

	p := NewPortFunc("top-secret")

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	err := p.Check(req)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	var pe *perrs.Error
	if !errors.As(err, &pe) || pe.Code() != perrs.ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized perrs error, got %#v", err)
	}
}

func TestPort_Check_WrongSecret(t *testing.T) {
	t.Parallel()

	p := NewPortFunc("top-secret")

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SecretHeader, "wrong")

	if err := p.Check(req); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestPort_Check_ValidSecret(t *testing.T) {
	t.Parallel()

	p := NewPortFunc("top-secret")

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SecretHeader, "top-secret")

	if err := p.Check(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPort_Check_NotConfigured(t *testing.T) {
	t.Parallel()

	var p Port

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SecretHeader, "anything")

	if err := p.Check(req); err == nil {
		t.Fatalf("expected error when secret is not configured")
	}
}
