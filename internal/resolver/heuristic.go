package resolver

import (
	"strings"

	"drover/internal/dispatch"
)

// Rule pairs an action with the keyword phrases that trigger it and the
// action produced when the utterance carries a negation marker. Rule order
// encodes priority; the first match wins.
type Rule struct {
	Action   dispatch.Action
	Keywords []string
	Negated  dispatch.Action
}

// negationMarkers flip a matched rule to its negated action when present
// anywhere in the normalized text.
var negationMarkers = []string{"don't", "do not", "dont"}

// DefaultRules returns the built-in rule table in priority order:
// STOP, JUMP, FOLLOW, BACKOFF, IDLE.
func DefaultRules() []Rule {
	return []Rule{
		{
			Action:   dispatch.ActionStop,
			Keywords: []string{"stop", "halt", "stay", "freeze", "wait"},
			Negated:  dispatch.ActionFollow,
		},
		{
			Action:   dispatch.ActionJump,
			Keywords: []string{"jump", "hop", "leap"},
			Negated:  dispatch.ActionIdle,
		},
		{
			Action:   dispatch.ActionFollow,
			Keywords: []string{"follow", "come", "with me", "heel"},
			Negated:  dispatch.ActionStop,
		},
		{
			Action:   dispatch.ActionBackoff,
			Keywords: []string{"back off", "back away", "get back", "go away", "leave me"},
			Negated:  dispatch.ActionFollow,
		},
		{
			Action:   dispatch.ActionIdle,
			Keywords: []string{"idle", "relax", "rest", "chill", "stand down", "do nothing"},
			Negated:  dispatch.ActionFollow,
		},
	}
}

// Classify evaluates rules against normalized text in table order. A rule
// matches when the text contains any of its keywords; negation markers flip
// the match to the rule's negated action. Returns false when no rule matches.
func Classify(normalized string, rules []Rule) (dispatch.Action, bool) {
	if normalized == "" {
		return "", false
	}

	negated := false
	for _, marker := range negationMarkers {
		if strings.Contains(normalized, marker) {
			negated = true
			break
		}
	}

	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if !strings.Contains(normalized, keyword) {
				continue
			}
			if negated {
				return rule.Negated, true
			}
			return rule.Action, true
		}
	}
	return "", false
}
