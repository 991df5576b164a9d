package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := InvalidParameter("minArea", "must be positive (got %v)", -1.0)
	want := "invalid_parameter: minArea must be positive (got -1)"
	if err.Error() != want {
		t.Errorf("Error(): got %q, want %q", err.Error(), want)
	}
}

func TestError_UnwrapAndIsKind(t *testing.T) {
	cause := os.ErrNotExist
	err := fmt.Errorf("loading set: %w", ImageNotFound("/tmp/x.png", cause))

	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected wrapped cause to be reachable through errors.Is")
	}
	if !IsKind(err, KindImageNotFound) {
		t.Error("expected IsKind to find image_not_found in chain")
	}
	if IsKind(err, KindEmptyImage) {
		t.Error("IsKind matched the wrong kind")
	}
	if KindOf(err) != KindImageNotFound {
		t.Errorf("KindOf: got %q", KindOf(err))
	}
}

func TestIsKind_PlainError(t *testing.T) {
	if IsKind(errors.New("boom"), KindTaskFailure) {
		t.Error("plain errors have no kind")
	}
	if KindOf(nil) != "" {
		t.Error("nil error has no kind")
	}
}

func TestSessionNotFound(t *testing.T) {
	err := SessionNotFound("abc")
	if KindOf(err) != KindSessionNotFound {
		t.Errorf("expected session_not_found, got %q", KindOf(err))
	}
	if err.Error() == "" {
		t.Error("expected a message")
	}
}
