package stages

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// MatchKind tags the variant of a Matcher.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchOneOf     MatchKind = "one_of"
	MatchPredicate MatchKind = "predicate"
)

// Matcher decides whether a status satisfies a transition rule.
// It is one of Exact, OneOf or Predicate.
type Matcher struct {
	kind   MatchKind
	status string
	set    mapset.Set[string]
	pred   func(string) bool
	desc   string
	// except is set for predicates built by Not, which stay serializable.
	except string
}

// Exact matches a single status by string equality.
func Exact(status string) Matcher {
	return Matcher{kind: MatchExact, status: status}
}

// OneOf matches any of the given statuses. Used when a stage is reachable
// through more than one prior outcome.
func OneOf(statuses ...string) Matcher {
	return Matcher{kind: MatchOneOf, set: mapset.NewSet(statuses...)}
}

// Predicate matches whatever fn accepts. desc is shown in String.
func Predicate(desc string, fn func(status string) bool) Matcher {
	return Matcher{kind: MatchPredicate, pred: fn, desc: desc}
}

// Not matches every status except the given one.
func Not(status string) Matcher {
	m := Predicate("not "+status, func(s string) bool { return s != status })
	m.except = status
	return m
}

// Kind returns the variant tag.
func (m Matcher) Kind() MatchKind { return m.kind }

// Matches reports whether status satisfies the matcher.
func (m Matcher) Matches(status string) bool {
	switch m.kind {
	case MatchExact:
		return status == m.status
	case MatchOneOf:
		return m.set != nil && m.set.Contains(status)
	case MatchPredicate:
		return m.pred != nil && m.pred(status)
	}
	return false
}

// Statuses returns the statuses an Exact or OneOf matcher accepts, sorted.
func (m Matcher) Statuses() []string {
	switch m.kind {
	case MatchExact:
		return []string{m.status}
	case MatchOneOf:
		if m.set == nil {
			return nil
		}
		out := m.set.ToSlice()
		sort.Strings(out)
		return out
	}
	return nil
}

func (m Matcher) clone() Matcher {
	if m.set != nil {
		m.set = m.set.Clone()
	}
	return m
}

func (m Matcher) String() string {
	switch m.kind {
	case MatchExact:
		return fmt.Sprintf("%q", m.status)
	case MatchOneOf:
		quoted := make([]string, 0, m.set.Cardinality())
		for _, s := range m.Statuses() {
			quoted = append(quoted, fmt.Sprintf("%q", s))
		}
		return "one of [" + strings.Join(quoted, ", ") + "]"
	case MatchPredicate:
		return m.desc
	}
	return "<none>"
}
