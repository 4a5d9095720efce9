package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithMessageKeepsCodeAndStatus(t *testing.T) {
	err := ErrConflict.WithMessage("Message has already been answered")

	if err.Code != "CONFLICT" || err.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected code/status: %s %d", err.Code, err.StatusCode)
	}
	if ErrConflict.Message == err.Message {
		t.Fatal("expected shared error to remain unchanged")
	}
}

func TestFromError(t *testing.T) {
	if out := FromError(ErrLinkExpired); out != ErrLinkExpired {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	wrapped := fmt.Errorf("handler: %w", ErrLinkAlreadyUsed)
	if out := FromError(wrapped); out.StatusCode != http.StatusGone {
		t.Fatalf("expected wrapped AppError to be unwrapped, got %d", out.StatusCode)
	}

	out := FromError(stdErrors.New("raw"))
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
