package bridge

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot
// for a session. Returns a release func to be deferred. The engine does not
// support concurrent generations on one handle; a second concurrent call
// waits up to maxWait and then fails TooBusy instead of corrupting both
// streams through event cross-talk.
func (b *Bridge) beginGeneration(ctx context.Context, entry *sessionEntry) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(b.cfg.maxWait())
	defer timer.Stop()
	select {
	case entry.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{id: entry.id}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-entry.queueCh
		}
	}()
	// Check for cancellation again before blocking on the in-flight slot
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(b.cfg.maxWait())
	defer timer2.Stop()
	select {
	case entry.genCh <- struct{}{}:
		acquired = true
		return func() {
			entry.touch(0)
			<-entry.genCh
			<-entry.queueCh
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{id: entry.id}
	}
}
