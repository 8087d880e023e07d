package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"litertd/pkg/types"
)

func TestChatBlockingText(t *testing.T) {
	b, fake := newTestBridge(t)
	fake.SetBlockingReply("the capital is Paris", nil)
	res, err := b.Chat(context.Background(), types.ChatRequest{
		Messages: userMessages("capital of France?"),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Text != "the capital is Paris" || res.FinishReason != types.FinishStop {
		t.Fatalf("result = %+v", res)
	}
	calls := fake.GenerateCalls()
	if len(calls) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(calls))
	}
	if calls[0] != "user: capital of France?\nassistant:" {
		t.Fatalf("prompt = %q", calls[0])
	}
}

func TestChatBlockingEngineErrorIsDegradedResult(t *testing.T) {
	b, fake := newTestBridge(t)
	fake.SetBlockingReply("", errors.New("inference backend crashed"))
	res, err := b.Chat(context.Background(), types.ChatRequest{
		Messages: userMessages("hi"),
	})
	if err != nil {
		t.Fatalf("engine failure must not surface as an error, got %v", err)
	}
	if res.Text != "" || res.FinishReason != types.FinishError {
		t.Fatalf("result = %+v, want empty text with finish reason %q", res, types.FinishError)
	}
}

func TestChatBlockingAbortMidCall(t *testing.T) {
	b, fake := newTestBridge(t)
	fake.SetBlockingHang(true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Chat(ctx, types.ChatRequest{Messages: userMessages("hi")})
		errCh <- err
	}()

	// Let the call reach the blocking native generate, then cancel.
	waitFor(t, time.Second, func() bool { return len(fake.GenerateCalls()) == 1 })
	cancel()

	select {
	case err := <-errCh:
		if !IsAborted(err) {
			t.Fatalf("err = %v, want aborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Chat did not return after cancellation")
	}
	waitFor(t, time.Second, func() bool { return fake.StopCalls() >= 1 })
}

func TestChatBlockingSerializedPerHandle(t *testing.T) {
	b, fake := newTestBridge(t)
	fake.SetBlockingHang(true)

	first := make(chan struct{})
	go func() {
		_, _ = b.Chat(context.Background(), types.ChatRequest{Messages: userMessages("a")})
		close(first)
	}()
	waitFor(t, time.Second, func() bool { return len(fake.GenerateCalls()) == 1 })

	// Queue slot is free, so the second call waits for the generation slot
	// and then times out against MaxWait.
	_, err := b.Chat(context.Background(), types.ChatRequest{Messages: userMessages("b")})
	if !IsTooBusy(err) {
		t.Fatalf("err = %v, want too-busy", err)
	}

	sid := mustSessionID(t, b, "m")
	entry, lerr := b.registry.entry(sid)
	if lerr != nil {
		t.Fatalf("entry: %v", lerr)
	}
	_ = fake.StopGeneration(entry.handle)
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first call never finished")
	}
}
