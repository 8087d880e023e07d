package bridge

import (
	"time"

	"litertd/pkg/types"
)

// Status returns a read-only projection of the bridge for /status.
func (b *Bridge) Status() types.StatusResponse {
	entries := b.registry.snapshot()
	sessions := make([]types.SessionStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := types.SessionStatus{
			SessionID:       e.id,
			ModelID:         e.modelID,
			InflightRequest: e.inflightReq,
			QueueLen:        len(e.queueCh),
			LastUsed:        e.lastUsed.Unix(),
		}
		e.mu.Unlock()
		sessions = append(sessions, st)
	}
	b.mu.Lock()
	lastErr := b.lastErr
	b.mu.Unlock()
	now := time.Now()
	return types.StatusResponse{
		Sessions:         sessions,
		GenerationsTotal: b.genTotal.Load(),
		AbortsTotal:      b.abortTotal.Load(),
		UptimeSeconds:    int64(now.Sub(b.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
		LastError:        lastErr,
	}
}
