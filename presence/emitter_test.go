package presence

import (
	"sync"
	"testing"
	"time"

	"chatkit/channel"
)

type fakeChannel struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeChannel) Emit(event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeChannel) Join(string) error             { return nil }
func (f *fakeChannel) Leave(string) error            { return nil }
func (f *fakeChannel) OnEvent(func(payload []byte))  {}
func (f *fakeChannel) OnReconnect(func())            {}

func (f *fakeChannel) emitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestKeystrokeBurstEmitsSingleStart(t *testing.T) {
	ch := &fakeChannel{}
	emitter := NewEmitter(ch, "user-self", time.Hour)
	defer emitter.Close()

	emitter.Keystroke("conv-1")
	emitter.Keystroke("conv-1")
	emitter.Keystroke("conv-1")

	events := ch.emitted()
	if len(events) != 1 || events[0] != channel.EventTypingStart {
		t.Fatalf("expected one typing.start for a burst, got %v", events)
	}
}

func TestIdleEmitsStop(t *testing.T) {
	ch := &fakeChannel{}
	emitter := NewEmitter(ch, "user-self", 20*time.Millisecond)
	defer emitter.Close()

	emitter.Keystroke("conv-1")

	waitFor(t, time.Second, func() bool {
		events := ch.emitted()
		return len(events) == 2 && events[1] == channel.EventTypingStop
	})
}

func TestInputClearedStopsImmediately(t *testing.T) {
	ch := &fakeChannel{}
	emitter := NewEmitter(ch, "user-self", time.Hour)
	defer emitter.Close()

	emitter.Keystroke("conv-1")
	emitter.InputCleared("conv-1")

	events := ch.emitted()
	if len(events) != 2 || events[1] != channel.EventTypingStop {
		t.Fatalf("expected immediate typing.stop, got %v", events)
	}

	// A cleared input emits nothing further until the next keystroke.
	emitter.InputCleared("conv-1")
	if got := ch.emitted(); len(got) != 2 {
		t.Fatalf("expected no extra stop, got %v", got)
	}

	emitter.Keystroke("conv-1")
	events = ch.emitted()
	if len(events) != 3 || events[2] != channel.EventTypingStart {
		t.Fatalf("expected a fresh typing.start after clear, got %v", events)
	}
}

func TestRecordingSignalsEmitImmediately(t *testing.T) {
	ch := &fakeChannel{}
	emitter := NewEmitter(ch, "user-1", time.Minute)
	defer emitter.Close()

	emitter.StartRecording("conv-1")
	emitter.StopRecording("conv-1")

	events := ch.emitted()
	if len(events) != 2 || events[0] != channel.EventRecordingStart || events[1] != channel.EventRecordingStop {
		t.Fatalf("expected recording start then stop, got %v", events)
	}
}
