package bridge

import (
	"context"

	"litertd/pkg/types"
)

// Chat runs a single blocking generation over the session. The abort
// context is wrapped so native cancellation fires if it triggers mid-call.
// Engine failures come back as a degraded result with finish reason
// "error", not as a raised error; callers wanting hard failure must check
// FinishReason.
func (b *Bridge) ChatSession(ctx context.Context, sessionID string, messages []types.Message) (types.GenerateResult, error) {
	var zero types.GenerateResult
	entry, err := b.registry.entry(sessionID)
	if err != nil {
		return zero, err
	}
	if ctx.Err() != nil {
		return zero, ErrAlreadyAborted()
	}
	if err := b.attachMedia(entry, messages); err != nil {
		return zero, err
	}
	prompt := flattenMessages(messages)

	release, err := b.beginGeneration(ctx, entry)
	if err != nil {
		if canceled(err) {
			return zero, ErrAlreadyAborted()
		}
		return zero, err
	}
	defer release()

	requestID := b.alloc.Next()
	entry.touch(requestID)
	generationsStarted.Inc()

	// Watch the caller context for the duration of the native call and
	// translate cancellation into the engine's stop-generation.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = b.eng.StopGeneration(entry.handle)
		case <-watchDone:
		}
	}()
	text, genErr := b.eng.GenerateResponse(ctx, entry.handle, requestID, prompt)
	close(watchDone)

	if ctx.Err() != nil {
		abortsTotal.Inc()
		return zero, ErrAborted()
	}
	if genErr != nil {
		b.log.Warn().Err(genErr).Str("session", sessionID).Msg("blocking generation failed")
		b.setLastError(genErr)
		return types.GenerateResult{Text: "", FinishReason: types.FinishError}, nil
	}
	return types.GenerateResult{Text: text, FinishReason: types.FinishStop}, nil
}

// Stream is the incrementally-readable surface over one async generation.
// The fragment sequence, the accumulated-text promise, and the
// finish-reason promise all share one underlying subscription set, and each
// is satisfiable even if the others are never consumed.
type Stream struct {
	g *generation
}

// Next returns the next text fragment in event-arrival order. It blocks
// while the generation is live and the queue is empty, returns io.EOF after
// a clean completion, the engine error after a failure, and Aborted after
// cancellation. Already-queued fragments always drain first.
func (s *Stream) Next(ctx context.Context) (string, error) {
	return s.g.next(ctx)
}

// Text blocks until the generation terminates and returns the accumulated
// text. On error or abort the text gathered so far is returned with the
// terminal error.
func (s *Stream) Text(ctx context.Context) (string, error) {
	text, _, err := s.g.wait(ctx)
	return text, err
}

// FinishReason blocks until the generation terminates and reports "stop",
// "error", or "aborted".
func (s *Stream) FinishReason(ctx context.Context) (string, error) {
	_, reason, err := s.g.wait(ctx)
	if err != nil && reason == "" {
		return "", err
	}
	return reason, nil
}

// RequestID exposes the request id correlating this stream's events.
func (s *Stream) RequestID() int32 { return s.g.requestID }

// ChatStreamSession starts an async generation over the session and
// returns its stream. Unlike the blocking path, stream consumers observe
// engine errors directly.
func (b *Bridge) ChatStreamSession(ctx context.Context, sessionID string, messages []types.Message) (*Stream, error) {
	entry, err := b.registry.entry(sessionID)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrAlreadyAborted()
	}
	if err := b.attachMedia(entry, messages); err != nil {
		return nil, err
	}
	g, err := b.startGeneration(ctx, entry, flattenMessages(messages))
	if err != nil {
		return nil, err
	}
	return &Stream{g: g}, nil
}
