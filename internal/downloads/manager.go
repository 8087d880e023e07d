// Package downloads manages the lifecycle of downloadable model bundles:
// registration, background fetch with progress, and explicit deletion.
package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"litertd/internal/common/fsutil"
	"litertd/pkg/types"
)

// ProgressFunc observes download progress for one model. fraction is in
// [0,1]; it is -1 when the server did not send a Content-Length.
type ProgressFunc func(name string, fraction float64)

// Manager tracks registered downloadable models. Records are created by
// Register, advanced by Start, and removed only by Delete; a failed download
// keeps its record (with status "error") so the failure is inspectable.
type Manager struct {
	dir      string
	client   *http.Client
	log      zerolog.Logger
	onChange ProgressFunc

	mu      sync.Mutex
	records map[string]*types.ModelInfo
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithLogger sets the progress/error logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithProgress installs a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager returns a manager that stores bundles under dir.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	expanded, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(expanded); err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	m := &Manager{
		dir:     expanded,
		client:  &http.Client{Timeout: 0},
		log:     zerolog.Nop(),
		records: make(map[string]*types.ModelInfo),
		cancels: make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Register creates a record for name fetched from url. Registering an
// existing name updates its URL but never resets a completed download.
func (m *Manager) Register(name, url string) types.ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		rec = &types.ModelInfo{Name: name, URL: url, Status: types.DownloadNotStarted}
		// A bundle already on disk counts as downloaded.
		if p := m.bundlePath(name); fsutil.PathExists(p) {
			rec.Status = types.DownloadDone
			rec.Path = p
			rec.Progress = 1
		}
		m.records[name] = rec
	} else {
		rec.URL = url
	}
	return *rec
}

// Start begins a background download for a registered model. It returns
// immediately; progress is observable through Get/List and the progress
// callback. Starting an in-progress or completed download is a no-op.
func (m *Manager) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("model %q not registered", name)
	}
	if rec.Status == types.DownloadInProgress || rec.Status == types.DownloadDone {
		m.mu.Unlock()
		return nil
	}
	rec.Status = types.DownloadInProgress
	rec.Progress = 0
	rec.Error = ""
	dctx, cancel := context.WithCancel(ctx)
	m.cancels[name] = cancel
	url := rec.URL
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		err := m.fetchWithRetry(dctx, name, url)
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.cancels, name)
		rec, ok := m.records[name]
		if !ok {
			// deleted mid-download
			return
		}
		if err != nil {
			rec.Status = types.DownloadError
			rec.Error = err.Error()
			m.log.Warn().Err(err).Str("model", name).Msg("download failed")
			return
		}
		rec.Status = types.DownloadDone
		rec.Progress = 1
		rec.Path = m.bundlePath(name)
		m.log.Info().Str("model", name).Str("path", rec.Path).Msg("download complete")
	}()
	return nil
}

// fetchWithRetry downloads with two retries on transient failures. A partial
// file is written to a .part sibling and renamed only on success.
func (m *Manager) fetchWithRetry(ctx context.Context, name, url string) error {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := m.fetchOnce(ctx, name, url)
		if err == nil || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (m *Manager) fetchOnce(ctx context.Context, name, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	part := m.bundlePath(name) + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	total := resp.ContentLength
	_, err = io.Copy(f, &progressReader{
		r: resp.Body,
		report: func(read int64) {
			fraction := -1.0
			if total > 0 {
				fraction = float64(read) / float64(total)
			}
			m.setProgress(name, fraction)
		},
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return err
	}
	return os.Rename(part, m.bundlePath(name))
}

func (m *Manager) setProgress(name string, fraction float64) {
	m.mu.Lock()
	if rec, ok := m.records[name]; ok && rec.Status == types.DownloadInProgress {
		rec.Progress = fraction
	}
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(name, fraction)
	}
}

// Get returns the record for name.
func (m *Manager) Get(name string) (types.ModelInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return types.ModelInfo{}, false
	}
	return *rec, true
}

// List returns a snapshot of all records.
func (m *Manager) List() []types.ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ModelInfo, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out
}

// Delete cancels any in-flight fetch, removes the bundle from disk, and
// drops the record. Deleting an unknown name is an error.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("model %q not registered", name)
	}
	if cancel, live := m.cancels[name]; live {
		cancel()
		delete(m.cancels, name)
	}
	delete(m.records, name)
	path := rec.Path
	m.mu.Unlock()

	if path == "" {
		path = m.bundlePath(name)
	}
	_ = os.Remove(path + ".part")
	if fsutil.PathExists(path) {
		return os.Remove(path)
	}
	return nil
}

// Close waits for in-flight downloads to settle.
func (m *Manager) Close() {
	m.mu.Lock()
	for name, cancel := range m.cancels {
		cancel()
		delete(m.cancels, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) bundlePath(name string) string {
	return filepath.Join(m.dir, name+".task")
}

// progressReader reports cumulative bytes read through report.
type progressReader struct {
	r      io.Reader
	read   int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read)
	}
	return n, err
}
