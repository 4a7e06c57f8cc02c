package httputil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "shebacred/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("not found includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error_description"] != "document not found" {
			t.Fatalf("expected error_description to be returned for not found")
		}
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, io.ErrUnexpectedEOF)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

type pingRequest struct {
	Text string `json:"text"`
}

func (p *pingRequest) Validate() error {
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("decodes and validates", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"  hi "}`))

		req, ok := DecodeAndPrepare[pingRequest](w, r, logger, context.Background(), "req-1")
		if !ok {
			t.Fatalf("expected decode to succeed, got status %d", w.Code)
		}
		if req.Text != "hi" {
			t.Fatalf("expected sanitized text, got %q", req.Text)
		}
	})

	t.Run("malformed json is bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

		_, ok := DecodeAndPrepare[pingRequest](w, r, logger, context.Background(), "req-2")
		if ok || w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got ok=%v status=%d", ok, w.Code)
		}
	})

	t.Run("validation failure is bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"   "}`))

		_, ok := DecodeAndPrepare[pingRequest](w, r, logger, context.Background(), "req-3")
		if ok || w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got ok=%v status=%d", ok, w.Code)
		}
	})
}
