// Package playback sequences spoken output for a practice session.
//
// The [Sequencer] is a per-session state machine (Idle, Speaking, Listening)
// with one job: never speak the assistant's reply over an unacknowledged
// correction card, and never run two utterances at once. Everything else in
// the pipeline exists to feed it correct inputs.
//
// All methods are safe for concurrent use; internally a mutex serializes
// transitions the way a UI event loop would.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// State is the sequencer's current activity.
type State int

const (
	// StateIdle means no audio is active in either direction.
	StateIdle State = iota

	// StateSpeaking means an assistant utterance is being played.
	StateSpeaking

	// StateListening means the microphone is capturing the learner.
	StateListening
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by all operations after [Sequencer.Close].
var ErrClosed = errors.New("playback: sequencer closed")

// Speaker plays one utterance to the learner. Speak blocks until playback
// completes, ctx is cancelled, or the audio backend fails. Implementations
// wrap a platform speech engine or a premium TTS stream.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Sequencer gates assistant speech on correction acknowledgment and
// guarantees at most one active utterance.
type Sequencer struct {
	speaker Speaker
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	pending bool   // an unacknowledged correction card is showing
	queued  string // reply text held back until acknowledgment
	closed  bool
	// cancel aborts the in-flight utterance, nil when nothing is active.
	cancel context.CancelFunc
	// gen identifies the current utterance so a superseded one cannot
	// tear down its successor's state when it unwinds.
	gen uint64
}

// NewSequencer returns an idle sequencer speaking through speaker.
func NewSequencer(speaker Speaker, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{speaker: speaker, logger: logger}
}

// State reports the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingAcknowledgment reports whether a correction card is still waiting
// for the learner.
func (s *Sequencer) PendingAcknowledgment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Deliver hands the sequencer a new assistant reply. When correctionAttached
// is set, a correction card accompanies the preceding user turn: the reply
// is queued and not spoken until [Sequencer.Acknowledge] releases it.
// Otherwise the reply is spoken immediately, cancelling any utterance that
// is still active.
func (s *Sequencer) Deliver(text string, correctionAttached bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if correctionAttached {
		s.pending = true
		s.queued = text
		s.mu.Unlock()
		s.logger.Debug("reply queued behind correction card")
		return nil
	}
	s.mu.Unlock()

	return s.speak(text)
}

// Acknowledge records the learner dismissing the correction card and
// immediately speaks the queued reply, if any.
func (s *Sequencer) Acknowledge() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = false
	text := s.queued
	s.queued = ""
	s.mu.Unlock()

	if text == "" {
		return nil
	}
	return s.speak(text)
}

// StartListening opens the capture state, cancelling any active utterance
// first. The caller runs recognition and reports the result via
// [Sequencer.StopListening].
func (s *Sequencer) StartListening() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if cancel := s.cancel; cancel != nil {
		// At most one utterance: silence the assistant before the mic
		// opens, or recognition transcribes the assistant's own words.
		cancel()
		s.cancel = nil
	}
	s.state = StateListening
	s.mu.Unlock()
	return nil
}

// StopListening returns the sequencer to idle after capture ends.
func (s *Sequencer) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateListening {
		s.state = StateIdle
	}
}

// Close forces the sequencer to idle from any state, releases the active
// audio resource, and rejects all further operations.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateIdle
	s.pending = false
	s.queued = ""
}

// speak runs one utterance start to finish. Playback failures land back in
// idle and are reported to the caller, never escalated to the session.
func (s *Sequencer) speak(text string) error {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.gen++
	myGen := s.gen
	s.state = StateSpeaking
	s.mu.Unlock()

	err := s.speaker.Speak(ctx, text)
	cancel()

	s.mu.Lock()
	// Another utterance or Close may already own the slot.
	if s.gen == myGen && s.state == StateSpeaking {
		s.cancel = nil
		s.state = StateIdle
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("utterance playback failed", "error", err)
		return err
	}
	return nil
}
