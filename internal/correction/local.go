package correction

import (
	"regexp"
	"strings"
)

// localRule is one deterministic rewrite. Rules are evaluated in order and
// the first match wins, so place the more specific trigger first within a
// language.
type localRule struct {
	language string
	trigger  *regexp.Regexp
	// guard, when non-nil, must also hold for the rule to fire.
	guard func(lower string) bool
	// rewrite produces the full suggested utterance from the original.
	rewrite func(text string) string
	// item produces the single fix attached to the rewrite.
	item func(text string) Item
}

// localRules covers the high-frequency politeness mistakes beginners make in
// the supported languages. It is intentionally tiny: the table exists to
// keep the feedback card populated when the server-side extractor returns
// nothing, not to be a grammar engine.
var localRules = []localRule{
	{
		language: "Spanish",
		trigger:  regexp.MustCompile(`(?i)yo quiero|quiero`),
		rewrite: func(text string) string {
			return regexp.MustCompile(`(?i)yo quiero|quiero`).ReplaceAllString(text, "Me gustaría")
		},
		item: staticItem("Quiero", "Me gustaría",
			"In polite contexts, 'Me gustaría' (I would like) is more polite than 'Quiero' (I want)"),
	},
	{
		language: "Spanish",
		trigger:  regexp.MustCompile(`(?i)está bien`),
		rewrite: func(text string) string {
			return regexp.MustCompile(`(?i)está bien`).ReplaceAllString(text, "perfecto")
		},
		item: staticItem("Está bien", "Perfecto",
			"Using 'Perfecto' (perfect) sounds more natural and enthusiastic"),
	},
	{
		language: "Mandarin",
		trigger:  regexp.MustCompile(`我要|想要`),
		rewrite: func(text string) string {
			return strings.ReplaceAll(strings.ReplaceAll(text, "我要", "我想点"), "想要", "想点")
		},
		item: func(text string) Item {
			wrong := "想要"
			if strings.Contains(text, "我要") {
				wrong = "我要"
			}
			return Item{
				Wrong:       wrong,
				Correct:     "想点",
				Explanation: "In restaurant context, 点 (diǎn - to order) is more natural than 要 (yào - to want)",
			}
		},
	},
	{
		language: "Mandarin",
		trigger:  regexp.MustCompile(`给我`),
		guard: func(lower string) bool {
			return !strings.Contains(lower, "请")
		},
		rewrite: func(text string) string {
			return "请" + text
		},
		item: staticItem("给我", "请给我",
			"Adding 请 (qǐng - please) makes the request more polite"),
	},
	{
		language: "French",
		trigger:  regexp.MustCompile(`(?i)je veux`),
		rewrite: func(text string) string {
			return regexp.MustCompile(`(?i)je veux`).ReplaceAllString(text, "je voudrais")
		},
		item: staticItem("Je veux", "Je voudrais",
			"Use 'je voudrais' (I would like) for politeness instead of 'je veux' (I want)"),
	},
}

// staticItem builds an item func for rules whose fix does not depend on the
// matched text.
func staticItem(wrong, correct, explanation string) func(string) Item {
	return func(string) Item {
		return Item{Wrong: wrong, Correct: correct, Explanation: explanation}
	}
}

// TryLocal runs the deterministic rewrite table against utterance and
// returns the first matching correction, or nil when no rule fires.
//
// It is pure: the same (utterance, language) pair always yields the same
// result. Callers should only reach for it when the server-side extractor
// returned nothing and explicit feedback is enabled.
func TryLocal(utterance, language string) *Result {
	lower := strings.ToLower(utterance)
	for i := range localRules {
		rule := &localRules[i]
		if rule.language != language {
			continue
		}
		if !rule.trigger.MatchString(utterance) {
			continue
		}
		if rule.guard != nil && !rule.guard(lower) {
			continue
		}
		shouldSay := rule.rewrite(utterance)
		return &Result{
			UserSaid:    utterance,
			ShouldSay:   &shouldSay,
			Corrections: []Item{rule.item(utterance)},
		}
	}
	return nil
}
