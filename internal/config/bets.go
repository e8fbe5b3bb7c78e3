package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BetsFile is the bet registry file name inside the config directory.
const BetsFile = "bets.yaml"

// Bet is one tracked subject used for direct-impact matching.
type Bet struct {
	ID   string   `yaml:"id"`
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// BetLists groups the direct bets and the force override list.
type BetLists struct {
	Direct []Bet `yaml:"direct"`
	// Force entries are opaque: only non-emptiness is consulted.
	Force []any `yaml:"force"`
}

// BetsConfig is the bet registry document.
type BetsConfig struct {
	Bets BetLists `yaml:"bets"`
}

// Direct returns the direct bet list in configured order.
func (b *BetsConfig) Direct() []Bet {
	if b == nil {
		return nil
	}
	return b.Bets.Direct
}

// HasForce reports whether the force list is non-empty.
func (b *BetsConfig) HasForce() bool {
	return b != nil && len(b.Bets.Force) > 0
}

// LoadBets reads bets.yaml from dir. A missing file yields an empty registry.
func LoadBets(dir string) (*BetsConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, BetsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &BetsConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read bets config: %w", err)
	}

	var cfg BetsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bets config: %w", err)
	}
	return &cfg, nil
}

// DefaultBetsYAML returns a commented bets.yaml for init.
func DefaultBetsYAML() string {
	return `# signalgate bet registry
# Generated by: signalgate init
#
# direct: subjects you hold a position in. An event affects a bet when
#   - the bet id appears in the event title/body or equals one of its tags
#   - the bet name appears in the event title/body
#   - any bet tag equals one of the event tags
# The first matching bet (in this order) names the interrupt entity.
#
# force: any non-empty list makes force tags (tax, kyc, identity, ...)
#   count as affecting your bets even when no direct bet matches.
bets:
  direct:
    - id: btc
      name: Bitcoin
      tags: [bitcoin, btc]
  force:
    - account_safety
`
}
