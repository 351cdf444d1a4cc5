package session

import (
	"strings"
	"time"
	"unicode"

	"otto/pkg/protocol"
)

// Relationship keyword sets keyed off the operator's contact naming.
var (
	familyKeywords = []string{"papa", "mama", "dad", "mom", "father", "mother", "brother", "sister"}
	workKeywords   = []string{"boss", "office", "work", "client", "manager"}
)

// needWords flag remembered context that suggests the caller is waiting
// on something. Matched as whole words so "needle" stays quiet.
var needWords = map[string]bool{
	"need":    true,
	"needs":   true,
	"needed":  true,
	"urgent":  true,
	"asap":    true,
	"waiting": true,
}

// Classify derives a relationship from a contact name and the number of
// remembered interactions with the caller.
func Classify(name string, interactions int) protocol.Relationship {
	if name == "" {
		return protocol.RelUnknown
	}

	lower := strings.ToLower(name)
	for _, kw := range familyKeywords {
		if strings.Contains(lower, kw) {
			return protocol.RelFamily
		}
	}
	for _, kw := range workKeywords {
		if strings.Contains(lower, kw) {
			return protocol.RelWork
		}
	}
	if interactions > 5 {
		return protocol.RelFriend
	}
	return protocol.RelAcquaintance
}

// BaseUrgency returns the starting urgency for a relationship.
func BaseUrgency(rel protocol.Relationship) float64 {
	switch rel {
	case protocol.RelFamily:
		return 0.8
	case protocol.RelWork:
		return 0.7
	case protocol.RelFriend:
		return 0.5
	case protocol.RelAcquaintance:
		return 0.4
	default:
		return 0.3
	}
}

// HasNeedIndicator reports whether any remembered content mentions one of
// the need words as a whole case-folded word.
func HasNeedIndicator(contents []string) bool {
	for _, content := range contents {
		words := strings.FieldsFunc(content, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, w := range words {
			if needWords[strings.ToLower(w)] {
				return true
			}
		}
	}
	return false
}

// AnswerInputs gathers everything the answer rule looks at.
type AnswerInputs struct {
	Session   CallSession
	Now       time.Time
	WorkStart int  // first work hour, inclusive
	WorkEnd   int  // last work hour, inclusive
	NeedHint  bool // remembered context carries a need indicator
}

// ShouldAnswer decides whether to pick up a call that rang past the
// auto-answer mark. Pure and deterministic; rules apply in order:
//
//  1. spam is never answered
//  2. family with urgency above 0.7
//  3. work callers during work hours
//  4. remembered context says the caller needs something
//  5. known contacts with urgency above 0.5
//
// The returned reason names the rule that fired, for the decline record
// and the operator note.
func ShouldAnswer(in AnswerInputs) (bool, string) {
	s := in.Session
	switch {
	case s.Spam:
		return false, "caller flagged as spam"
	case s.Relationship == protocol.RelFamily && s.Urgency > 0.7:
		return true, "family calling with high urgency"
	case s.Relationship == protocol.RelWork && hourWithin(in.Now.Hour(), in.WorkStart, in.WorkEnd):
		return true, "work caller during work hours"
	case in.NeedHint:
		return true, "remembered context mentions a pending need"
	case s.Contact && s.Urgency > 0.5:
		return true, "known contact with raised urgency"
	default:
		return false, "no answer rule matched"
	}
}

func hourWithin(hour, start, end int) bool {
	return hour >= start && hour <= end
}
