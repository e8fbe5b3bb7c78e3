package decision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/model"
)

func loadConfigs(t *testing.T, betsYAML, rulesYAML string) (*config.BetsConfig, *config.RulesConfig) {
	t.Helper()
	dir := t.TempDir()
	if betsYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bets.yaml"), []byte(betsYAML), 0o600))
	}
	if rulesYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte(rulesYAML), 0o600))
	}
	bets, err := config.LoadBets(dir)
	require.NoError(t, err)
	rules, err := config.LoadRules(dir)
	require.NoError(t, err)
	return bets, rules
}

const testBets = `
bets:
  direct:
    - id: btc
      name: Bitcoin
      tags: [crypto]
    - id: hk_broker
      name: HK Broker Account
      tags: [broker]
  force:
    - account_safety
`

func TestDecideStructuralActionRequiredTierAInterrupts(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	ev := model.Event{
		EventID:    "e1",
		Title:      "Bitcoin custody rule change",
		SourceTier: "A",
		Tags:       []string{"structural", "action_required", "sell"},
	}

	d := Decide(ev, bets, rules)
	assert.True(t, d.Q1Structural)
	assert.True(t, d.Q2AffectsBets)
	assert.True(t, d.Q3RequiresAction)
	assert.Equal(t, model.StateInterrupt, d.State)
	assert.Equal(t, model.TierA, d.EvidenceQ1)
	assert.Equal(t, model.TierB, d.EvidenceQ2)
	assert.Equal(t, model.TierB, d.EvidenceQ3)
	assert.Equal(t, model.RuleID, d.RuleID)
	assert.Equal(t, model.ActionSell, InferAction(ev, rules))
	assert.Equal(t, "Bitcoin", InferEntity(ev, bets))
}

func TestDecideTierCForceBypassIsTentative(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	ev := model.Event{EventID: "e2", Title: "new filing", SourceTier: "C", Tags: []string{"tax"}}

	d := Decide(ev, bets, rules)
	assert.False(t, d.Q1Structural, "tier C floor")
	assert.True(t, d.Q2AffectsBets, "force bypass")
	assert.True(t, d.Q3RequiresAction, "force bypass")
	assert.Equal(t, model.StateTentative, d.State)
	assert.Equal(t, model.TierC, d.EvidenceQ1)
}

func TestDecideForceHitWithoutForceListDoesNotBypassQ2(t *testing.T) {
	bets, rules := loadConfigs(t, "bets:\n  direct: []\n", "")
	ev := model.Event{EventID: "e3", SourceTier: "A", Tags: []string{"kyc"}}

	d := Decide(ev, bets, rules)
	assert.True(t, d.Q1Structural)
	assert.False(t, d.Q2AffectsBets)
	assert.True(t, d.Q3RequiresAction)
	assert.Equal(t, model.StateTentative, d.State, "q1 candidate keeps it tentative")
	assert.Equal(t, model.TierC, d.EvidenceQ2)
}

func TestDecideColdWithoutStructuralSignal(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	ev := model.Event{EventID: "e4", Title: "Bitcoin price up", SourceTier: "A", Tags: []string{"action_required"}}

	d := Decide(ev, bets, rules)
	assert.False(t, d.Q1Structural)
	assert.True(t, d.Q2AffectsBets)
	assert.True(t, d.Q3RequiresAction)
	assert.Equal(t, model.StateCold, d.State)
}

func TestDecideMinEvidenceA(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "decision:\n  q1_min_evidence: A\n")
	ev := model.Event{Title: "bitcoin", SourceTier: "B", Tags: []string{"structural", "action_required"}}

	d := Decide(ev, bets, rules)
	assert.False(t, d.Q1Structural)
	assert.Equal(t, model.StateTentative, d.State)

	ev.SourceTier = "A"
	assert.Equal(t, model.StateInterrupt, Decide(ev, bets, rules).State)
}

func TestDecideTierCFloorDisabled(t *testing.T) {
	rulesYAML := `
decision:
  q1_min_evidence: C
  tier_c_policy:
    q1_always_no: false
`
	bets, rules := loadConfigs(t, testBets, rulesYAML)
	ev := model.Event{Title: "bitcoin", SourceTier: "C", Tags: []string{"structural", "action_required"}}

	d := Decide(ev, bets, rules)
	assert.True(t, d.Q1Structural)
	assert.Equal(t, model.StateInterrupt, d.State)
}

func TestDecideDirectImpactDisabled(t *testing.T) {
	rulesYAML := `
decision:
  impact_radius:
    direct: false
`
	bets, rules := loadConfigs(t, testBets, rulesYAML)
	ev := model.Event{Title: "bitcoin", SourceTier: "A", Tags: []string{"structural", "action_required"}}

	d := Decide(ev, bets, rules)
	assert.False(t, d.Q2AffectsBets)
	assert.Equal(t, model.StateTentative, d.State)
}

func TestDecideRequireExplicitTagFalseDoesNotRelax(t *testing.T) {
	rulesYAML := `
decision:
  q3_policy:
    require_explicit_tag: false
`
	bets, rules := loadConfigs(t, testBets, rulesYAML)
	ev := model.Event{Title: "bitcoin", SourceTier: "A", Tags: []string{"structural", "misc"}}

	d := Decide(ev, bets, rules)
	assert.False(t, d.Q3RequiresAction)
	assert.Equal(t, model.StateTentative, d.State)
}

func TestDecideNilConfigs(t *testing.T) {
	ev := model.Event{SourceTier: "A", Tags: []string{"structural", "action_required"}}
	d := Decide(ev, nil, nil)
	assert.True(t, d.Q1Structural)
	assert.False(t, d.Q2AffectsBets)
	assert.Equal(t, model.StateTentative, d.State)
}

func TestDecideUppercaseTags(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	ev := model.Event{Title: "BITCOIN", SourceTier: "a", Tags: []string{"STRUCTURAL", "Action_Required"}}
	assert.Equal(t, model.StateInterrupt, Decide(ev, bets, rules).State)
}

var tagVocabulary = []string{
	"structural", "rule_change", "regulation", "tax", "account", "kyc",
	"transfer", "identity", "legal", "action_required", "sell", "buy",
	"reduce", "crypto", "broker", "macro", "earnings", "noise",
}

func randomEvent(f *gofakeit.Faker) model.Event {
	n := f.Number(0, 5)
	tags := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, f.RandomString(tagVocabulary))
	}
	return model.Event{
		EventID:    f.UUID(),
		Title:      f.RandomString([]string{"Bitcoin", "HK broker account", f.Sentence(4)}),
		Body:       f.Sentence(8),
		Source:     f.DomainName(),
		SourceTier: f.RandomString([]string{"A", "B", "C", "", "x"}),
		Tags:       tags,
	}
}

func TestPropertyTierCNeverSatisfiesQ1(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	f := gofakeit.New(7)
	for i := 0; i < 500; i++ {
		ev := randomEvent(f)
		ev.SourceTier = f.RandomString([]string{"C", "c", "", "Z"})
		d := Decide(ev, bets, rules)
		require.False(t, d.Q1Structural, "tags=%v tier=%q", ev.Tags, ev.SourceTier)
		require.NotEqual(t, model.StateInterrupt, d.State)
	}
}

func TestPropertyInterruptIffAllThree(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	f := gofakeit.New(11)
	for i := 0; i < 1000; i++ {
		ev := randomEvent(f)
		d := Decide(ev, bets, rules)
		all := d.Q1Structural && d.Q2AffectsBets && d.Q3RequiresAction
		require.Equal(t, all, d.State == model.StateInterrupt, "event=%+v decision=%+v", ev, d)
	}
}

func TestPropertyDeterministic(t *testing.T) {
	bets, rules := loadConfigs(t, testBets, "")
	f := gofakeit.New(23)
	for i := 0; i < 200; i++ {
		ev := randomEvent(f)
		require.Equal(t, Decide(ev, bets, rules), Decide(ev, bets, rules))
	}
}
