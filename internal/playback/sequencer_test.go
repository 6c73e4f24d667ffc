package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedSpeaker records utterances and optionally blocks until released or
// cancelled, to simulate long-running playback.
type scriptedSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	err     error
	block   bool
	release chan struct{}
}

func newBlockingSpeaker() *scriptedSpeaker {
	return &scriptedSpeaker{block: true, release: make(chan struct{})}
}

func (sp *scriptedSpeaker) Speak(ctx context.Context, text string) error {
	sp.mu.Lock()
	sp.spoken = append(sp.spoken, text)
	block := sp.block
	sp.mu.Unlock()

	if block {
		select {
		case <-sp.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sp.err
}

func (sp *scriptedSpeaker) utterances() []string {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return append([]string(nil), sp.spoken...)
}

func TestSequencer_SpeaksImmediatelyWithoutCorrection(t *testing.T) {
	t.Parallel()

	sp := &scriptedSpeaker{}
	s := NewSequencer(sp, nil)

	if err := s.Deliver("¡Hola! ¿Qué tal?", false); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := sp.utterances(); len(got) != 1 || got[0] != "¡Hola! ¿Qué tal?" {
		t.Errorf("unexpected utterances %v", got)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after playback, got %v", s.State())
	}
}

func TestSequencer_GatesReplyBehindCorrection(t *testing.T) {
	t.Parallel()

	sp := &scriptedSpeaker{}
	s := NewSequencer(sp, nil)

	if err := s.Deliver("¡Muy bien!", true); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := sp.utterances(); len(got) != 0 {
		t.Fatalf("reply must not be spoken before acknowledgment, got %v", got)
	}
	if !s.PendingAcknowledgment() {
		t.Error("expected pending acknowledgment")
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle while gated, got %v", s.State())
	}

	if err := s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if got := sp.utterances(); len(got) != 1 || got[0] != "¡Muy bien!" {
		t.Errorf("acknowledgment must release the queued reply, got %v", got)
	}
	if s.PendingAcknowledgment() {
		t.Error("acknowledgment must clear the pending flag")
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after released playback, got %v", s.State())
	}
}

func TestSequencer_AcknowledgeWithoutPendingIsNoOp(t *testing.T) {
	t.Parallel()

	sp := &scriptedSpeaker{}
	s := NewSequencer(sp, nil)

	if err := s.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if got := sp.utterances(); len(got) != 0 {
		t.Errorf("nothing should be spoken, got %v", got)
	}
}

func TestSequencer_StartListeningCancelsActiveUtterance(t *testing.T) {
	t.Parallel()

	sp := newBlockingSpeaker()
	s := NewSequencer(sp, nil)

	done := make(chan error, 1)
	go func() { done <- s.Deliver("long reply", false) }()

	// Wait for playback to actually start.
	deadline := time.After(2 * time.Second)
	for len(sp.utterances()) == 0 {
		select {
		case <-deadline:
			t.Fatal("playback never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := s.StartListening(); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if s.State() != StateListening {
		t.Errorf("expected listening, got %v", s.State())
	}

	select {
	case err := <-done:
		// Cancellation is an expected outcome, not a playback failure.
		if err != nil {
			t.Errorf("cancelled Deliver should not report an error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not unwind after cancellation")
	}

	s.StopListening()
	if s.State() != StateIdle {
		t.Errorf("expected idle after StopListening, got %v", s.State())
	}
}

func TestSequencer_SpeakFailureLandsInIdle(t *testing.T) {
	t.Parallel()

	sp := &scriptedSpeaker{err: errors.New("audio device gone")}
	s := NewSequencer(sp, nil)

	if err := s.Deliver("hola", false); err == nil {
		t.Error("expected playback error to be reported")
	}
	if s.State() != StateIdle {
		t.Errorf("failure must force idle, got %v", s.State())
	}

	// The sequencer must still be usable afterwards.
	sp.err = nil
	if err := s.Deliver("hola otra vez", false); err != nil {
		t.Errorf("Deliver after failure: %v", err)
	}
}

func TestSequencer_CloseForcesIdleAndRejectsFurtherUse(t *testing.T) {
	t.Parallel()

	sp := newBlockingSpeaker()
	s := NewSequencer(sp, nil)

	done := make(chan error, 1)
	go func() { done <- s.Deliver("long reply", false) }()

	deadline := time.After(2 * time.Second)
	for len(sp.utterances()) == 0 {
		select {
		case <-deadline:
			t.Fatal("playback never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	s.Close()
	if s.State() != StateIdle {
		t.Errorf("Close must force idle, got %v", s.State())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not unwind after Close")
	}

	if err := s.Deliver("more", false); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Deliver, got %v", err)
	}
	if err := s.Acknowledge(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Acknowledge, got %v", err)
	}
	if err := s.StartListening(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from StartListening, got %v", err)
	}
}

func TestSequencer_CloseDropsQueuedReply(t *testing.T) {
	t.Parallel()

	sp := &scriptedSpeaker{}
	s := NewSequencer(sp, nil)

	if err := s.Deliver("queued", true); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	s.Close()

	if s.PendingAcknowledgment() {
		t.Error("Close must clear the pending flag")
	}
	if got := sp.utterances(); len(got) != 0 {
		t.Errorf("queued reply must not play after Close, got %v", got)
	}
}

func TestSequencer_NewDeliveryCancelsActiveUtterance(t *testing.T) {
	t.Parallel()

	sp := newBlockingSpeaker()
	s := NewSequencer(sp, nil)

	first := make(chan error, 1)
	go func() { first <- s.Deliver("first", false) }()

	deadline := time.After(2 * time.Second)
	for len(sp.utterances()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first playback never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Unblock subsequent utterances so the second completes normally.
	sp.mu.Lock()
	sp.block = false
	sp.mu.Unlock()

	if err := s.Deliver("second", false); err != nil {
		t.Fatalf("second Deliver: %v", err)
	}

	select {
	case err := <-first:
		if err != nil {
			t.Errorf("superseded utterance should unwind cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Deliver did not unwind")
	}

	got := sp.utterances()
	if len(got) != 2 || got[1] != "second" {
		t.Errorf("unexpected utterances %v", got)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after second playback, got %v", s.State())
	}
}
