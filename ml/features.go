package ml

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	FeatureNumTickets = "num_tickets"
	FeatureTrades     = "trades"
	FeatureReputation = "reputation"

	DefaultLabel = "is_scalper"
)

const (
	PresetBasic      = "basic"
	PresetReputation = "reputation"
)

var presets = map[string][]string{
	PresetBasic:      {FeatureNumTickets, FeatureTrades},
	PresetReputation: {FeatureNumTickets, FeatureTrades, FeatureReputation},
}

// PresetFeatures returns the ordered feature columns of a named preset.
func PresetFeatures(name string) ([]string, error) {
	features, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown feature preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return append([]string(nil), features...), nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the ordered set of feature columns a model is trained on, plus
// the label column. Column order is part of the schema.
type Schema struct {
	Features []string `json:"features"`
	Label    string   `json:"label"`
}

func NewSchema(features []string, label string) Schema {
	if label == "" {
		label = DefaultLabel
	}
	return Schema{
		Features: append([]string(nil), features...),
		Label:    label,
	}
}

func (s Schema) Validate() error {
	if len(s.Features) == 0 {
		return errors.New("at least one feature is required")
	}
	if s.Label == "" {
		return errors.New("label column is required")
	}
	seen := make(map[string]bool, len(s.Features))
	for _, name := range s.Features {
		if strings.TrimSpace(name) == "" {
			return errors.New("feature names must not be blank")
		}
		if seen[name] {
			return fmt.Errorf("duplicate feature %q", name)
		}
		if name == s.Label {
			return fmt.Errorf("feature %q is also the label column", name)
		}
		seen[name] = true
	}
	return nil
}

// Arity is the number of feature values a prediction needs.
func (s Schema) Arity() int {
	return len(s.Features)
}

// SameFeatures reports whether both schemas list the same features in the
// same order. The label column is not compared.
func (s Schema) SameFeatures(other Schema) bool {
	if len(s.Features) != len(other.Features) {
		return false
	}
	for i := range s.Features {
		if s.Features[i] != other.Features[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	return fmt.Sprintf("[%s] -> %s", strings.Join(s.Features, ", "), s.Label)
}
