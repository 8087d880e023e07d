package httpapi

import (
	"net/http"
	"testing"

	"litertd/internal/bridge"
)

const chatBody = `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`

func TestChat_ModelNotFoundMaps404(t *testing.T) {
	svc := &mockService{chatErr: bridge.ErrNotFound("m-missing")}
	r := NewMux(svc)
	if w := postJSON(t, r, "/v1/chat", chatBody); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestChat_TooBusyMaps429(t *testing.T) {
	svc := &mockService{chatErr: bridge.ErrTooBusy("sess-1")}
	r := NewMux(svc)
	if w := postJSON(t, r, "/v1/chat", chatBody); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestStructured_UnsupportedMaps501(t *testing.T) {
	svc := &mockService{structuredErr: bridge.ErrUnsupported("structured output")}
	r := NewMux(svc)
	body := `{"messages":[{"role":"user","content":[{"text":"hi"}]}],"schema":{"type":"object"}}`
	if w := postJSON(t, r, "/v1/chat/structured", body); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestChat_UnknownErrorMaps500(t *testing.T) {
	svc := &mockService{chatErr: errFake("boom")}
	r := NewMux(svc)
	if w := postJSON(t, r, "/v1/chat", chatBody); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
