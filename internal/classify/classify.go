package classify

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"orderdesk/internal"
)

type Class string

const (
	ClassSample       Class = "sample"
	ClassBulk         Class = "bulk"
	ClassUnclassified Class = "unclassified"
)

// Kind maps a classification onto the typed table it routes to. The second
// return is false for unclassified labels, which route nowhere.
func (c Class) Kind() (internal.OrderKind, bool) {
	switch c {
	case ClassSample:
		return internal.KindSample, true
	case ClassBulk:
		return internal.KindBulk, true
	default:
		return "", false
	}
}

//go:embed order_types.yaml
var defaultRulesYAML []byte

// Rules holds the recognized order type labels per class. The sets are
// configuration data, not logic: matching is exact, case sensitive and
// untrimmed.
type Rules struct {
	SampleTypes []string `yaml:"sample_types"`
	BulkTypes   []string `yaml:"bulk_types"`
}

func DefaultRules() Rules {
	rules, err := parseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("classify: embedded rules invalid: %v", err))
	}
	return rules
}

// LoadRules reads a rules file, or returns the embedded defaults when path is
// empty.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read order type rules: %w", err)
	}
	rules, err := parseRules(raw)
	if err != nil {
		return Rules{}, fmt.Errorf("parse order type rules %s: %w", path, err)
	}
	return rules, nil
}

func parseRules(raw []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, err
	}
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) validate() error {
	if len(r.SampleTypes) == 0 {
		return fmt.Errorf("sample_types is empty")
	}
	if len(r.BulkTypes) == 0 {
		return fmt.Errorf("bulk_types is empty")
	}
	sample := make(map[string]bool, len(r.SampleTypes))
	for _, label := range r.SampleTypes {
		if label == "" {
			return fmt.Errorf("sample_types contains an empty label")
		}
		sample[label] = true
	}
	for _, label := range r.BulkTypes {
		if label == "" {
			return fmt.Errorf("bulk_types contains an empty label")
		}
		if sample[label] {
			return fmt.Errorf("label %q appears in both sample_types and bulk_types", label)
		}
	}
	return nil
}

// Classifier routes order type labels to typed tables via a compiled index.
type Classifier struct {
	rules Rules
	index map[string]Class
}

func New(rules Rules) *Classifier {
	index := make(map[string]Class, len(rules.SampleTypes)+len(rules.BulkTypes))
	for _, label := range rules.SampleTypes {
		index[label] = ClassSample
	}
	for _, label := range rules.BulkTypes {
		index[label] = ClassBulk
	}
	return &Classifier{rules: rules, index: index}
}

// Classify is total: every label maps to exactly one class, and anything not
// in a configured set (including the empty string) is unclassified.
func (c *Classifier) Classify(label string) Class {
	if class, ok := c.index[label]; ok {
		return class
	}
	return ClassUnclassified
}

// Labels returns a copy of the configured label set for a typed table.
func (c *Classifier) Labels(kind internal.OrderKind) []string {
	switch kind {
	case internal.KindSample:
		return append([]string(nil), c.rules.SampleTypes...)
	case internal.KindBulk:
		return append([]string(nil), c.rules.BulkTypes...)
	default:
		return nil
	}
}
