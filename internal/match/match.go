// Package match holds the tag and text containment checks shared by the
// decision engine and the entity/action inference. Matching is deliberately
// simple: case-insensitive substring over title+body, exact tag equality.
package match

import (
	"strings"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/model"
)

// Subject is the lowercased view of an event that matchers operate on.
type Subject struct {
	Text string
	Tags []string
	set  map[string]struct{}
}

// NewSubject lowercases title, body and tags. Tag order is kept; duplicates
// are tolerated.
func NewSubject(title, body string, tags []string) Subject {
	s := Subject{
		Text: strings.ToLower(title + "\n" + body),
		Tags: make([]string, 0, len(tags)),
		set:  make(map[string]struct{}, len(tags)),
	}
	for _, t := range tags {
		lt := strings.ToLower(t)
		s.Tags = append(s.Tags, lt)
		s.set[lt] = struct{}{}
	}
	return s
}

// FromEvent builds a Subject from an event.
func FromEvent(e model.Event) Subject {
	return NewSubject(e.Title, e.Body, e.Tags)
}

// HasTag reports whether tag (already lowercase) is among the subject tags.
func (s Subject) HasTag(tag string) bool {
	_, ok := s.set[tag]
	return ok
}

// AnyTag reports whether any of tags is among the subject tags.
func (s Subject) AnyTag(tags []string) bool {
	for _, t := range tags {
		if s.HasTag(strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Contains reports whether needle occurs in the subject text. Empty needles
// never match.
func (s Subject) Contains(needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	return needle != "" && strings.Contains(s.Text, needle)
}

// BetMatcher decides whether a tracked bet is concerned by a subject.
type BetMatcher interface {
	MatchBet(s Subject, b config.Bet) bool
}

// SubstringMatcher is the default BetMatcher:
//   - bet id contained in the text or equal to an event tag
//   - bet name contained in the text
//   - any bet tag equal to an event tag
type SubstringMatcher struct{}

// MatchBet implements BetMatcher.
func (SubstringMatcher) MatchBet(s Subject, b config.Bet) bool {
	id := strings.ToLower(strings.TrimSpace(b.ID))
	if id != "" && (s.Contains(id) || s.HasTag(id)) {
		return true
	}
	if s.Contains(b.Name) {
		return true
	}
	return s.AnyTag(b.Tags)
}

// Default is the matcher used when none is injected.
var Default BetMatcher = SubstringMatcher{}

// FirstBet returns the first bet in configured order that m matches.
func FirstBet(m BetMatcher, s Subject, bets []config.Bet) (config.Bet, bool) {
	if m == nil {
		m = Default
	}
	for _, b := range bets {
		if m.MatchBet(s, b) {
			return b, true
		}
	}
	return config.Bet{}, false
}
