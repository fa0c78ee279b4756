// Package score computes the Exposure Severity Score (ESS) of a source
// from its findings and aggregates scores across sources.
package score

import (
	"strings"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

// Channel is the publication medium of a source.
type Channel string

const (
	ChannelGitHubPublic Channel = "github_public"
	ChannelGitLabPublic Channel = "gitlab_public"
	ChannelPastebin     Channel = "pastebin"
	ChannelUnknown      Channel = "unknown"
)

// ParseChannel normalises a channel name. Any string is accepted; names
// without a multiplier score as ChannelUnknown.
func ParseChannel(name string) Channel {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ChannelUnknown
	}
	return Channel(name)
}

// DefaultWeight is the sensitivity of categories missing from the table.
const DefaultWeight = 2.0

// ToxicRule raises the score when all of its categories appear together.
type ToxicRule struct {
	Categories []scan.Category `json:"categories" yaml:"categories"`
	Multiplier float64         `json:"multiplier" yaml:"multiplier"`
	Label      string          `json:"label" yaml:"label"`
}

// Tables are the scoring constants. They are read-only once a Scorer
// holds them.
type Tables struct {
	Weights       map[scan.Category]float64
	DefaultWeight float64
	ToxicRules    []ToxicRule
	Channels      map[Channel]float64
}

// DefaultTables returns the built-in weights, rules and channel multipliers.
func DefaultTables() Tables {
	return Tables{
		Weights: map[scan.Category]float64{
			scan.CategoryAadhaar:        9.0,
			scan.CategoryPassport:       8.5,
			scan.CategoryPAN:            8.0,
			scan.CategoryGSTIN:          6.5,
			scan.CategoryCreditCard:     9.5,
			scan.CategoryUPI:            5.5,
			scan.CategoryABHA:           8.0,
			scan.CategoryPhone:          4.5,
			scan.CategoryEmail:          3.0,
			scan.CategoryPerson:         2.5,
			scan.CategorySSN:            9.0,
			scan.CategoryVoterID:        7.0,
			scan.CategoryDrivingLicence: 7.0,
			scan.CategoryIFSC:           3.5,
		},
		DefaultWeight: DefaultWeight,
		ToxicRules: []ToxicRule{
			{Categories: []scan.Category{scan.CategoryAadhaar, scan.CategoryPAN, scan.CategoryPhone}, Multiplier: 1.90, Label: "Full KYC triad"},
			{Categories: []scan.Category{scan.CategoryCreditCard, scan.CategoryAadhaar}, Multiplier: 1.85, Label: "Card + Aadhaar"},
			{Categories: []scan.Category{scan.CategoryCreditCard, scan.CategoryPAN}, Multiplier: 1.75, Label: "Card + PAN"},
			{Categories: []scan.Category{scan.CategoryUPI, scan.CategoryPhone}, Multiplier: 1.60, Label: "UPI + Phone"},
			{Categories: []scan.Category{scan.CategoryAadhaar, scan.CategoryPAN}, Multiplier: 1.55, Label: "Aadhaar + PAN"},
			{Categories: []scan.Category{scan.CategoryABHA, scan.CategoryAadhaar}, Multiplier: 1.50, Label: "ABHA + Aadhaar"},
			{Categories: []scan.Category{scan.CategoryEmail, scan.CategoryPhone}, Multiplier: 1.30, Label: "Email + Phone"},
			{Categories: []scan.Category{scan.CategoryPerson, scan.CategoryAadhaar}, Multiplier: 1.25, Label: "Name + Aadhaar"},
			{Categories: []scan.Category{scan.CategoryPerson, scan.CategoryPAN}, Multiplier: 1.20, Label: "Name + PAN"},
		},
		Channels: map[Channel]float64{
			ChannelGitHubPublic: 1.30,
			ChannelGitLabPublic: 1.25,
			ChannelPastebin:     1.15,
			ChannelUnknown:      1.00,
		},
	}
}

// WithChannels returns a copy of t with extra or replaced channel
// multipliers.
func (t Tables) WithChannels(overrides map[string]float64) Tables {
	channels := make(map[Channel]float64, len(t.Channels)+len(overrides))
	for c, m := range t.Channels {
		channels[c] = m
	}
	for name, m := range overrides {
		channels[ParseChannel(name)] = m
	}
	t.Channels = channels
	return t
}

// Weight returns the sensitivity weight of a category.
func (t Tables) Weight(c scan.Category) float64 {
	if w, ok := t.Weights[c]; ok {
		return w
	}
	if t.DefaultWeight > 0 {
		return t.DefaultWeight
	}
	return DefaultWeight
}

// ChannelMultiplier returns the exposure multiplier of a channel, 1.0 when
// unknown.
func (t Tables) ChannelMultiplier(c Channel) float64 {
	if m, ok := t.Channels[ParseChannel(string(c))]; ok {
		return m
	}
	return 1.0
}

// bestToxicRule returns the applicable rule with the highest multiplier.
// Among equal multipliers the earlier rule wins.
func (t Tables) bestToxicRule(found map[scan.Category]bool) (ToxicRule, bool) {
	var (
		best ToxicRule
		ok   bool
	)
	for _, rule := range t.ToxicRules {
		if !rule.appliesTo(found) {
			continue
		}
		if !ok || rule.Multiplier > best.Multiplier {
			best, ok = rule, true
		}
	}
	return best, ok
}

func (r ToxicRule) appliesTo(found map[scan.Category]bool) bool {
	if len(r.Categories) == 0 {
		return false
	}
	for _, c := range r.Categories {
		if !found[c] {
			return false
		}
	}
	return true
}
