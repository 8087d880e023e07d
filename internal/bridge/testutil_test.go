package bridge

import (
	"testing"
	"time"

	"litertd/internal/engine/enginetest"
	"litertd/pkg/types"
)

// newTestBridge builds a bridge over a fake engine with one catalog model.
func newTestBridge(t *testing.T) (*Bridge, *enginetest.Fake) {
	t.Helper()
	fake := enginetest.New()
	b := New(fake, Config{
		Catalog:      []types.Model{{ID: "m", Name: "m", Path: "m.task"}},
		DefaultModel: "m",
		EnableVision: true,
		EnableAudio:  true,
		MaxWait:      200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = b.Close() })
	return b, fake
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
