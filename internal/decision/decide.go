// Package decision classifies events with the three-question test and labels
// them with an entity and a recommended action.
package decision

import (
	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/match"
	"github.com/ppiankov/signalgate/internal/model"
)

// Engine evaluates events against a bet registry and a rule set.
// The zero value uses the default substring matcher.
type Engine struct {
	Matcher match.BetMatcher
}

// Decide evaluates the three questions for ev using the default matcher.
func Decide(ev model.Event, bets *config.BetsConfig, rules *config.RulesConfig) model.Decision {
	return Engine{}.Decide(ev, bets, rules)
}

// Decide evaluates the three questions for ev. Pure: no I/O.
//
// Evaluation order (must not be changed):
//  1. Q1 candidate: structural or force tag hit
//  2. Q1 gate: tier C floor, then minimum evidence
//  3. Q2: direct bet match, or force hit with a non-empty force list
//  4. Q3: explicit action tag or force hit
//  5. State: interrupt iff Q1∧Q2∧Q3, tentative on any structural signal, else cold
func (e Engine) Decide(ev model.Event, bets *config.BetsConfig, rules *config.RulesConfig) model.Decision {
	subj := match.FromEvent(ev)
	tier := ev.Tier()

	// Step 1
	structuralHit := subj.AnyTag(config.StructuralTags())
	forceHit := subj.AnyTag(rules.ForceTags())
	q1Candidate := structuralHit || forceHit

	// Step 2
	var q1 bool
	if rules.Q1AlwaysNoForTierC() && tier == model.TierC {
		q1 = false
	} else {
		q1 = q1Candidate && rules.EvidenceAtLeast(tier, rules.Q1MinEvidence())
	}

	// Step 3: only direct impact is honoured; indirect and macro are inert.
	q2Direct := false
	if rules.DirectImpactEnabled() {
		_, q2Direct = match.FirstBet(e.Matcher, subj, bets.Direct())
	}
	q2Force := forceHit && bets.HasForce()
	q2 := q2Direct || q2Force

	// Step 4: require_explicit_tag=false still accepts only explicit-or-force.
	// Never relax to "any tag".
	q3 := subj.AnyTag(rules.ExplicitTags()) || forceHit

	// Step 5
	state := model.StateCold
	switch {
	case q1 && q2 && q3:
		state = model.StateInterrupt
	case q1Candidate || q2Force:
		state = model.StateTentative
	}

	return model.Decision{
		Q1Structural:     q1,
		Q2AffectsBets:    q2,
		Q3RequiresAction: q3,
		EvidenceQ1:       tier,
		EvidenceQ2:       coarse(q2),
		EvidenceQ3:       coarse(q3),
		State:            state,
		RuleID:           model.RuleID,
	}
}

// coarse is the binary evidence stand-in used for Q2 and Q3.
func coarse(ok bool) model.Tier {
	if ok {
		return model.TierB
	}
	return model.TierC
}
