package decision

import (
	"strings"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/match"
	"github.com/ppiankov/signalgate/internal/model"
)

// InferEntity returns the subject ev concerns using the default matcher.
func InferEntity(ev model.Event, bets *config.BetsConfig) string {
	return Engine{}.InferEntity(ev, bets)
}

// InferEntity returns the name of the first direct bet that matches ev, the
// uppercased bet id when the bet has no name, or UNKNOWN. Configured order
// is significant.
func (e Engine) InferEntity(ev model.Event, bets *config.BetsConfig) string {
	b, ok := match.FirstBet(e.Matcher, match.FromEvent(ev), bets.Direct())
	if !ok {
		return model.UnknownEntity
	}
	if name := strings.TrimSpace(b.Name); name != "" {
		return name
	}
	if id := strings.TrimSpace(b.ID); id != "" {
		return strings.ToUpper(id)
	}
	return model.UnknownEntity
}

// InferAction maps event tags to an action. SELL beats REDUCE beats BUY, and
// an action outside allowed_actions is never returned.
func InferAction(ev model.Event, rules *config.RulesConfig) model.Action {
	subj := match.FromEvent(ev)
	allowed := make(map[model.Action]bool)
	for _, a := range rules.AllowedActions() {
		allowed[model.Action(a)] = true
	}

	candidates := []struct {
		action model.Action
		tags   []string
	}{
		{model.ActionSell, rules.SellTags()},
		{model.ActionReduce, rules.ReduceTags()},
		{model.ActionBuy, rules.BuyTags()},
	}
	for _, c := range candidates {
		if allowed[c.action] && subj.AnyTag(c.tags) {
			return c.action
		}
	}
	return model.ActionDoNothing
}
