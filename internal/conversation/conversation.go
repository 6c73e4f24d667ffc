// Package conversation implements the turn loop of a practice session.
//
// The [Orchestrator] is stateless: each call to [Orchestrator.NextTurn]
// receives the full message history plus the session context, obtains the
// assistant's next reply from the configured chat provider, optionally runs
// the correction extractor against the learner's last message, and returns
// both combined in a single [TurnResponse]. The reply and the correction are
// independent reads against the same utterance, so they run concurrently and
// the turn joins on both before returning.
package conversation

import (
	"github.com/fluentia/fluentia/internal/correction"
)

// FeedbackMode selects how corrections reach the learner.
type FeedbackMode string

const (
	// FeedbackOn surfaces explicit correction cards; the assistant's reply
	// stays natural and correction-free.
	FeedbackOn FeedbackMode = "on"

	// FeedbackOff suppresses cards; the assistant models the correct form
	// inside its reply instead of calling the mistake out.
	FeedbackOff FeedbackMode = "off"
)

// SessionContext carries the per-session settings every turn is shaped by.
type SessionContext struct {
	// Language is the language being practised (e.g., "Spanish").
	Language string

	// Scenario is the roleplay setting. Empty means general conversation.
	Scenario string

	// Level is the learner's proficiency. Empty means intermediate.
	Level string

	// FeedbackMode selects explicit cards versus implicit modeling.
	// Empty defaults to FeedbackOn.
	FeedbackMode FeedbackMode
}

// correctionSession converts the context into the extractor's session shape.
func (c SessionContext) correctionSession() correction.Session {
	return correction.Session{
		Language: c.Language,
		Level:    c.Level,
		Scenario: c.Scenario,
	}
}

// TurnResponse is the unit returned for one user turn.
type TurnResponse struct {
	// Message is the assistant's reply. Always present on success.
	Message string `json:"message"`

	// Corrections is the structured feedback for the learner's last
	// message, or nil when there is nothing to correct (or correction was
	// not requested).
	Corrections *correction.Result `json:"corrections"`
}
