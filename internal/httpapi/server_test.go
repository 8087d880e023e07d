package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"litertd/pkg/types"
)

// mockStream replays scripted fragments and then a terminal condition.
type mockStream struct {
	frags []string
	err   error // nil means clean EOF
}

func (m *mockStream) Next(ctx context.Context) (string, error) {
	if len(m.frags) == 0 {
		if m.err != nil {
			return "", m.err
		}
		return "", io.EOF
	}
	f := m.frags[0]
	m.frags = m.frags[1:]
	return f, nil
}

func (m *mockStream) FinishReason(ctx context.Context) (string, error) {
	if m.err != nil {
		return types.FinishError, nil
	}
	return types.FinishStop, nil
}

func (m *mockStream) RequestID() int32 { return 1 }

type mockService struct {
	chatRes       types.GenerateResult
	chatErr       error
	stream        *mockStream
	openErr       error
	structuredRes types.StructuredResult
	structuredErr error
	models        []types.Model
	downloads     []types.ModelInfo
	startErr      error
	deleteErr     error
	notReady      bool

	registered map[string]string
}

func (m *mockService) Chat(ctx context.Context, req types.ChatRequest) (types.GenerateResult, error) {
	return m.chatRes, m.chatErr
}

func (m *mockService) OpenStream(ctx context.Context, req types.ChatRequest) (Stream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

func (m *mockService) ChatStructured(ctx context.Context, req types.StructuredRequest) (types.StructuredResult, error) {
	return m.structuredRes, m.structuredErr
}

func (m *mockService) ListModels() []types.Model                            { return m.models }
func (m *mockService) Downloads() []types.ModelInfo                         { return m.downloads }
func (m *mockService) Status() types.StatusResponse                         { return types.StatusResponse{} }
func (m *mockService) Ready() bool                                          { return !m.notReady }
func (m *mockService) StartDownload(ctx context.Context, name string) error { return m.startErr }
func (m *mockService) DeleteModel(name string) error                        { return m.deleteErr }

func (m *mockService) RegisterModel(name, url string) types.ModelInfo {
	if m.registered == nil {
		m.registered = map[string]string{}
	}
	m.registered[name] = url
	return types.ModelInfo{Name: name, URL: url, Status: types.DownloadNotStarted}
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	svc := &mockService{chatRes: types.GenerateResult{Text: "hello there", FinishReason: types.FinishStop}}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat", `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res types.GenerateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Text != "hello there" || res.FinishReason != types.FinishStop {
		t.Fatalf("result = %+v", res)
	}
}

func TestChatEndpoint_Validation(t *testing.T) {
	r := NewMux(&mockService{})

	// wrong content type
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("x"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: status = %d", w.Code)
	}

	// malformed body
	if w := postJSON(t, r, "/v1/chat", `{`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d", w.Code)
	}

	// empty transcript
	if w := postJSON(t, r, "/v1/chat", `{"messages":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty messages: status = %d", w.Code)
	}
}

func TestChatStreamEndpoint_NDJSON(t *testing.T) {
	svc := &mockService{stream: &mockStream{frags: []string{"Hel", "lo"}}}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat/stream", `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 NDJSON lines, got %d: %q", len(lines), lines)
	}
	var first, last streamLine
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.Text != "Hel" {
		t.Fatalf("first line = %q err=%v", lines[0], err)
	}
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil || last.FinishReason != types.FinishStop {
		t.Fatalf("terminal line = %q err=%v", lines[2], err)
	}
}

func TestChatStreamEndpoint_ErrorTerminalLine(t *testing.T) {
	svc := &mockService{stream: &mockStream{frags: []string{"so far"}, err: errFake("out of tokens")}}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat/stream", `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	var last streamLine
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("terminal line: %v", err)
	}
	if last.FinishReason != types.FinishError || !strings.Contains(last.Error, "out of tokens") {
		t.Fatalf("terminal line = %+v", last)
	}
}

func TestChatStreamEndpoint_ClientGoneWritesNoTerminalLine(t *testing.T) {
	svc := &mockService{stream: &mockStream{frags: []string{"part"}, err: context.Canceled}}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat/stream", `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d (%q), want only the fragment", len(lines), w.Body.String())
	}
	var frag streamLine
	if err := json.Unmarshal([]byte(lines[0]), &frag); err != nil {
		t.Fatalf("fragment line: %v", err)
	}
	if frag.Text != "part" || frag.FinishReason != "" || frag.Error != "" {
		t.Fatalf("fragment line = %+v, want plain fragment", frag)
	}
}

func TestChatStreamEndpoint_DeadlineTerminalLine(t *testing.T) {
	svc := &mockService{stream: &mockStream{err: context.DeadlineExceeded}}
	r := NewMux(svc)
	w := postJSON(t, r, "/v1/chat/stream", `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	var last streamLine
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("terminal line: %v", err)
	}
	if last.FinishReason != types.FinishError || !strings.Contains(last.Error, "deadline") {
		t.Fatalf("terminal line = %+v", last)
	}
}

func TestStructuredEndpoint(t *testing.T) {
	svc := &mockService{structuredRes: types.StructuredResult{
		Data:         map[string]any{"name": "Ada"},
		Attempts:     2,
		FinishReason: types.FinishStop,
	}}
	r := NewMux(svc)
	body := `{"messages":[{"role":"user","content":[{"text":"hi"}]}],"schema":{"type":"object"}}`
	w := postJSON(t, r, "/v1/chat/structured", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var res types.StructuredResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Attempts != 2 || res.Data["name"] != "Ada" {
		t.Fatalf("result = %+v", res)
	}
}

func TestStructuredEndpoint_SchemaRequired(t *testing.T) {
	r := NewMux(&mockService{})
	body := `{"messages":[{"role":"user","content":[{"text":"hi"}]}]}`
	if w := postJSON(t, r, "/v1/chat/structured", body); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestModelsEndpoint(t *testing.T) {
	svc := &mockService{
		models:    []types.Model{{ID: "gemma", Path: "/m/gemma.task", Format: "task"}},
		downloads: []types.ModelInfo{{Name: "hammer", Status: types.DownloadInProgress, Progress: 0.5}},
	}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Models) != 1 || res.Models[0].ID != "gemma" {
		t.Fatalf("models = %+v", res.Models)
	}
	if len(res.Downloads) != 1 || res.Downloads[0].Status != types.DownloadInProgress {
		t.Fatalf("downloads = %+v", res.Downloads)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := postJSON(t, r, "/models/gemma/download", `{"url":"http://example.test/gemma.task"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if svc.registered["gemma"] != "http://example.test/gemma.task" {
		t.Fatalf("registered = %+v", svc.registered)
	}
}

func TestDeleteModelEndpoint(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/models/gemma", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}

	down := NewMux(&mockService{notReady: true})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while draining = %d", w.Code)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
