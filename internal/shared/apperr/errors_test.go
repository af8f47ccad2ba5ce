package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSentinelsMatchWrappedKinds(t *testing.T) {
	base := Storage("object.save", errors.New("disk full"))
	wrapped := fmt.Errorf("create document: %w", base)

	if !errors.Is(wrapped, ErrStorage) {
		t.Fatalf("expected wrapped storage error to match ErrStorage")
	}
	if errors.Is(wrapped, ErrValidation) {
		t.Fatalf("storage error must not match ErrValidation")
	}
	if got := KindOf(wrapped); got != KindStorage {
		t.Fatalf("KindOf = %q, want %q", got, KindStorage)
	}
}

func TestErrorStringIncludesOpAndCause(t *testing.T) {
	err := Extraction("extract.pdf", errors.New("bad xref"))
	want := "extract.pdf: text extraction failed: bad xref"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf = %q, want internal", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Validation("op", "bad mime"), want: http.StatusBadRequest},
		{name: "not found", err: NotFound("op", "missing"), want: http.StatusNotFound},
		{name: "conflict", err: Conflict("op", "no source"), want: http.StatusConflict},
		{name: "storage", err: Storage("op", errors.New("x")), want: http.StatusInternalServerError},
		{name: "extraction", err: Extraction("op", errors.New("x")), want: http.StatusInternalServerError},
		{name: "analysis", err: Analysis("op", errors.New("x")), want: http.StatusBadGateway},
		{name: "configuration", err: Configuration("op", "missing key"), want: http.StatusInternalServerError},
		{name: "unavailable", err: Unavailable("op", "db down", nil), want: http.StatusServiceUnavailable},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(Conflict("op", "file not available")); got != "file not available" {
		t.Fatalf("MessageOf = %q", got)
	}
	if got := MessageOf(errors.New("raw")); got != "Something went wrong" {
		t.Fatalf("MessageOf plain = %q", got)
	}
}
