package downloads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"litertd/pkg/types"
)

func waitStatus(t *testing.T, m *Manager, name string, want types.DownloadStatus) types.ModelInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := m.Get(name); ok && rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := m.Get(name)
	t.Fatalf("model %q never reached %q, last record: %+v", name, want, rec)
	return types.ModelInfo{}
}

func TestDownloadLifecycle(t *testing.T) {
	payload := strings.Repeat("w", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	var lastFraction atomic.Value
	m, err := NewManager(dir, WithProgress(func(name string, f float64) {
		lastFraction.Store(f)
	}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	rec := m.Register("gemma", srv.URL)
	if rec.Status != types.DownloadNotStarted {
		t.Fatalf("status after register = %q", rec.Status)
	}
	if err := m.Start(context.Background(), "gemma"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec = waitStatus(t, m, "gemma", types.DownloadDone)
	if rec.Progress != 1 || rec.Path == "" {
		t.Fatalf("completed record = %+v", rec)
	}
	b, err := os.ReadFile(rec.Path)
	if err != nil || len(b) != 4096 {
		t.Fatalf("bundle on disk: len=%d err=%v", len(b), err)
	}
	if f, ok := lastFraction.Load().(float64); !ok || f != 1 {
		t.Fatalf("final progress fraction = %v", lastFraction.Load())
	}
	// no .part leftover
	if _, err := os.Stat(rec.Path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind: %v", err)
	}
}

func TestDownloadFailureKeepsRecord(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	m.Register("bad", srv.URL)
	if err := m.Start(context.Background(), "bad"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec := waitStatus(t, m, "bad", types.DownloadError)
	if rec.Error == "" {
		t.Fatal("error record carries no message")
	}
	// initial attempt plus two retries
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hits = %d, want 3", got)
	}
}

func TestStartUnregisteredIsError(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	if err := m.Start(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unregistered model")
	}
}

func TestStartCompletedIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pre.task"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	rec := m.Register("pre", "http://unused.invalid/")
	if rec.Status != types.DownloadDone {
		t.Fatalf("pre-existing bundle not detected: %+v", rec)
	}
	if err := m.Start(context.Background(), "pre"); err != nil {
		t.Fatalf("Start on completed: %v", err)
	}
	rec, _ = m.Get("pre")
	if rec.Status != types.DownloadDone {
		t.Fatalf("status changed by redundant Start: %+v", rec)
	}
}

func TestDeleteRemovesBundleAndRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bundle-bytes"))
	}))
	defer srv.Close()

	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	m.Register("tmp", srv.URL)
	if err := m.Start(context.Background(), "tmp"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec := waitStatus(t, m, "tmp", types.DownloadDone)
	if err := m.Delete("tmp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := m.Get("tmp"); ok {
		t.Fatal("record survived delete")
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Fatalf("bundle survived delete: %v", err)
	}
	if err := m.Delete("tmp"); err == nil {
		t.Fatal("second delete must fail")
	}
}
