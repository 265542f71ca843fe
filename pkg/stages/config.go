package stages

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TableSpec is the serializable form of a transition table.
type TableSpec struct {
	Stages []string   `yaml:"stages"`
	Rules  []RuleSpec `yaml:"rules"`
}

// RuleSpec is the serializable form of a Rule.
type RuleSpec struct {
	Stage  string      `yaml:"stage"`
	When   MatcherSpec `yaml:"when"`
	Action Action      `yaml:"action"`
}

// MatcherSpec is the serializable form of a Matcher. Exactly one field is set.
// Arbitrary predicates cannot be serialized; "not" covers the
// "anything but X" predicate the canonical workflow uses.
type MatcherSpec struct {
	Exact string   `yaml:"exact,omitempty"`
	OneOf []string `yaml:"one_of,omitempty"`
	Not   string   `yaml:"not,omitempty"`
}

func (s MatcherSpec) matcher() (Matcher, error) {
	set := 0
	if s.Exact != "" {
		set++
	}
	if len(s.OneOf) > 0 {
		set++
	}
	if s.Not != "" {
		set++
	}
	if set != 1 {
		return Matcher{}, fmt.Errorf("matcher needs exactly one of exact, one_of, not")
	}
	switch {
	case s.Exact != "":
		return Exact(s.Exact), nil
	case len(s.OneOf) > 0:
		return OneOf(s.OneOf...), nil
	default:
		return Not(s.Not), nil
	}
}

// Spec returns the serializable form of m. It fails for custom predicates.
func (m Matcher) Spec() (MatcherSpec, error) {
	switch m.kind {
	case MatchExact:
		return MatcherSpec{Exact: m.status}, nil
	case MatchOneOf:
		return MatcherSpec{OneOf: m.Statuses()}, nil
	case MatchPredicate:
		if m.except != "" {
			return MatcherSpec{Not: m.except}, nil
		}
		return MatcherSpec{}, fmt.Errorf("predicate %q is not serializable", m.desc)
	}
	return MatcherSpec{}, fmt.Errorf("empty matcher")
}

// Build turns s into a validated table.
func (s TableSpec) Build() (*Table, error) {
	stages := New(s.Stages...)
	rules := make([]Rule, 0, len(s.Rules))
	for i, rs := range s.Rules {
		m, err := rs.When.matcher()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rs.Action.Name, err)
		}
		rules = append(rules, Rule{Stage: rs.Stage, When: m, Action: rs.Action})
	}
	return NewTable(stages, rules...)
}

// Spec returns the serializable form of the table.
func (t *Table) Spec() (TableSpec, error) {
	spec := TableSpec{Stages: t.stages.Names()}
	for _, r := range t.rules {
		ms, err := r.When.Spec()
		if err != nil {
			return TableSpec{}, fmt.Errorf("rule %s: %w", r.Action.Name, err)
		}
		spec.Rules = append(spec.Rules, RuleSpec{Stage: r.Stage, When: ms, Action: r.Action})
	}
	return spec, nil
}

// LoadTable reads a YAML transition table.
func LoadTable(r io.Reader) (*Table, error) {
	var spec TableSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("invalid stage table: %w", err)
	}
	return spec.Build()
}

// LoadTableFile reads a YAML transition table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stage table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// EncodeTable writes t as YAML.
func EncodeTable(w io.Writer, t *Table) error {
	spec, err := t.Spec()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return err
	}
	return enc.Close()
}
