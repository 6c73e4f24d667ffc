// Package archive persists finished conversation turns for progress
// tracking.
//
// Archiving is strictly best-effort: the conversation pipeline works
// identically with archiving disabled, and a failed write must never fail
// the turn that produced it. When no database is configured the server runs
// with [Discard].
package archive

import (
	"context"
	"time"

	"github.com/fluentia/fluentia/internal/correction"
)

// Turn is one archived message of a practice session.
type Turn struct {
	// SessionID groups the turns of one practice session.
	SessionID string

	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string

	// Language, Scenario and Level snapshot the session context.
	Language string
	Scenario string
	Level    string

	// Correction is the structured feedback attached to a user turn,
	// nil for assistant turns and uncorrected user turns.
	Correction *correction.Result

	// CreatedAt is when the turn was recorded. Zero means "now".
	CreatedAt time.Time
}

// Store records turns and serves them back for session review.
type Store interface {
	// RecordTurn appends one turn.
	RecordTurn(ctx context.Context, turn Turn) error

	// RecentTurns returns up to limit turns of a session, oldest first.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// Close releases the underlying connections.
	Close()
}

// Discard is a Store that drops everything. It backs deployments without a
// database.
type Discard struct{}

// Compile-time interface assertion.
var _ Store = Discard{}

// RecordTurn implements Store.
func (Discard) RecordTurn(context.Context, Turn) error { return nil }

// RecentTurns implements Store.
func (Discard) RecentTurns(context.Context, string, int) ([]Turn, error) {
	return []Turn{}, nil
}

// Close implements Store.
func (Discard) Close() {}
