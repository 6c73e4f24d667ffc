package conversation

import (
	"fmt"
	"strings"
)

const (
	defaultLevel    = "Intermediate"
	defaultScenario = "General conversation"
)

// feedback instructions for the two modes. With explicit cards enabled the
// reply must stay natural, otherwise it would duplicate the card; with cards
// off the model weaves the correct form into the reply instead.
const (
	implicitCorrectionLine = "- Gently correct mistakes by naturally incorporating the correct form (indirect correction)"
	naturalReplyLine       = "- Respond naturally without explicit corrections"
)

// fallbackReplies keeps the conversation moving when a provider returns a
// successful but empty completion envelope.
var fallbackReplies = map[string]string{
	"Spanish":  "Perdona, ¿puedes repetirlo?",
	"French":   "Pardon, peux-tu répéter ?",
	"German":   "Entschuldigung, kannst du das wiederholen?",
	"Italian":  "Scusa, puoi ripetere?",
	"Japanese": "すみません、もう一度言ってもらえますか？",
	"Mandarin": "不好意思，可以再说一遍吗？",
	"English":  "Sorry, could you say that again?",
}

// fallbackReply returns the stock reply for a language, defaulting to the
// English one for languages without an entry.
func fallbackReply(language string) string {
	if msg, ok := fallbackReplies[language]; ok {
		return msg
	}
	return fallbackReplies["English"]
}

// buildSystemPrompt synthesizes the conversation persona from the session
// context. The assistant roleplays a native speaker, stays inside the
// scenario, and keeps replies short enough to speak aloud.
func buildSystemPrompt(ctx SessionContext) string {
	level := ctx.Level
	if level == "" {
		level = defaultLevel
	}
	scenario := ctx.Scenario
	if scenario == "" {
		scenario = defaultScenario
	}
	mode := ctx.FeedbackMode
	if mode == "" {
		mode = FeedbackOn
	}

	feedbackLine := naturalReplyLine
	if mode == FeedbackOff {
		feedbackLine = implicitCorrectionLine
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a native %s speaker helping someone practice conversational %s.\n\n",
		ctx.Language, ctx.Language)
	fmt.Fprintf(&sb, "Context:\n- Level: %s\n- Scenario: %s\n- Feedback Mode: %s\n\n",
		level, scenario, mode)
	fmt.Fprintf(&sb, `Instructions:
- Respond ONLY in %s
- Keep responses 2–3 sentences
- Match learner's level
- Stay in scenario
%s
- Ask follow-up questions
- Use normal punctuation`, ctx.Language, feedbackLine)
	return sb.String()
}
