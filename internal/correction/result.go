// Package correction produces structured grammar feedback for learner
// utterances.
//
// The [Extractor] asks an [llm.Provider] to analyse the learner's last
// message and return a JSON object describing what was said, what a native
// speaker would say instead, and an itemised list of fixes. Model output is
// free-form text, so the JSON is scanned out defensively; anything
// unparseable degrades to "no correction" rather than an error, because a
// missing correction must never abort a conversation turn.
//
// [TryLocal] is the deterministic offline substitute used when the extractor
// yields nothing and the feedback UI would otherwise go silent.
package correction

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Item is one localized grammar or usage fix. Multiple items may attach to a
// single utterance.
type Item struct {
	// Wrong is the fragment of the learner's utterance being corrected.
	Wrong string `json:"wrong"`

	// Correct is the suggested replacement.
	Correct string `json:"correct"`

	// Explanation says why the replacement is more natural, in the
	// learner's UI language.
	Explanation string `json:"explanation"`
}

// Result is the structured feedback for one learner utterance. A nil *Result
// means "nothing to correct"; the empty-shaped object is never surfaced.
type Result struct {
	// UserSaid echoes the learner's utterance.
	UserSaid string `json:"userSaid"`

	// ShouldSay is the full rephrased utterance, or nil when the model
	// offers item-level fixes only.
	ShouldSay *string `json:"shouldSay"`

	// Corrections lists the individual fixes.
	Corrections []Item `json:"corrections"`
}

// normalize drops no-op items and collapses an empty result to nil.
//
// Models occasionally emit items whose "wrong" and "correct" sides are the
// same text modulo case, which would render as a confusing card that changes
// nothing. An edit distance of zero over the folded strings identifies those.
func (r *Result) normalize() *Result {
	if r == nil {
		return nil
	}

	kept := r.Corrections[:0]
	for _, item := range r.Corrections {
		if item.Wrong == "" || item.Correct == "" {
			continue
		}
		w := strings.ToLower(strings.TrimSpace(item.Wrong))
		c := strings.ToLower(strings.TrimSpace(item.Correct))
		if matchr.Levenshtein(w, c) == 0 {
			continue
		}
		kept = append(kept, item)
	}
	r.Corrections = kept

	if r.ShouldSay != nil {
		// Some models emit the literal string "null" instead of JSON null.
		if s := strings.TrimSpace(*r.ShouldSay); s == "" || strings.EqualFold(s, "null") {
			r.ShouldSay = nil
		}
	}
	// No rephrasing and no items means there is nothing to show.
	if r.ShouldSay == nil && len(r.Corrections) == 0 {
		return nil
	}
	return r
}
