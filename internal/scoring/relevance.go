package scoring

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Predicate is a computed applicability rule. It must be pure: read the
// encounter, never mutate anything.
type Predicate func(e *Encounter) bool

type relevanceKind uint8

const (
	relevanceAlways relevanceKind = iota
	relevanceEquals
	relevanceComputed
)

// Relevance is the applicability rule attached to an item or subgroup. The
// zero value always applies.
type Relevance struct {
	kind     relevanceKind
	variable string
	value    string
	name     string
	fn       Predicate
}

// Always applies unconditionally.
func Always() Relevance { return Relevance{} }

// Equals applies when the answer named variable equals value.
func Equals(variable, value string) Relevance {
	return Relevance{kind: relevanceEquals, variable: variable, value: value}
}

// Computed applies when fn returns true. name identifies the predicate in
// diagnostics and schema outlines.
func Computed(name string, fn Predicate) Relevance {
	return Relevance{kind: relevanceComputed, name: name, fn: fn}
}

// IsAlways reports whether the rule is unconditional.
func (r Relevance) IsAlways() bool { return r.kind == relevanceAlways }

// Variable returns the referenced answer key of an Equals rule.
func (r Relevance) Variable() (string, bool) {
	return r.variable, r.kind == relevanceEquals
}

func (r Relevance) String() string {
	switch r.kind {
	case relevanceEquals:
		return fmt.Sprintf("%s == %q", r.variable, r.value)
	case relevanceComputed:
		return "computed:" + r.name
	}
	return "always"
}

// Encounter is the read-only view a scoring pass works against: the Answer
// Store plus the pass-scoped classification cache. Computed predicates and
// KPI rules receive it.
type Encounter struct {
	answers *Answers
	res     *resolver
	logger  zerolog.Logger
	diags   []Diagnostic
	skipped map[string]struct{}
}

func newEncounter(a *Answers, logger zerolog.Logger) *Encounter {
	if a == nil {
		a = NewBuilder().Build()
	}
	e := &Encounter{
		answers: a,
		res:     newResolver(a),
		logger:  logger,
		skipped: make(map[string]struct{}),
	}
	e.res.report = func(d Diagnostic) { e.report(d, false) }
	return e
}

// Answers returns the underlying store.
func (e *Encounter) Answers() *Answers { return e.answers }

// Effective returns the authoritative classification for d. The value is
// resolved once per pass and shared by every caller.
func (e *Encounter) Effective(d Domain) Classification { return e.res.Effective(d) }

// Worker returns the worker's own classification for d.
func (e *Encounter) Worker(d Domain) Classification { return e.res.Worker(d) }

// Is resolves variable like an Equals rule without raising diagnostics.
func (e *Encounter) Is(variable, value string) bool {
	v, _, ok := e.answers.Resolve(variable)
	return ok && v.Matches(value)
}

func (e *Encounter) report(d Diagnostic, skip bool) {
	e.diags = append(e.diags, d)
	if skip {
		e.skipped[d.Node] = struct{}{}
	}
	e.logger.Warn().
		Str("code", string(d.Code)).
		Str("node", d.Node).
		Msg(d.Message)
}

func (e *Encounter) skippedNodes() []string {
	if len(e.skipped) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.skipped))
	for k := range e.skipped {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// relevant evaluates r for the node named node. It never panics and never
// returns an error: faults degrade the node to not relevant.
func (e *Encounter) relevant(node string, r Relevance) bool {
	switch r.kind {
	case relevanceAlways:
		return true
	case relevanceEquals:
		if r.variable == "" {
			e.report(Diagnostic{
				Code:     CodeMalformedRelevance,
				Severity: SeverityError,
				Node:     node,
				Message:  "equality rule has no variable",
			}, true)
			return false
		}
		v, _, ok := e.answers.Resolve(r.variable)
		if !ok {
			e.report(Diagnostic{
				Code:     CodeUnresolvedVariable,
				Severity: SeverityWarning,
				Node:     node,
				Message:  fmt.Sprintf("variable %q has no recorded answer", r.variable),
			}, false)
			return false
		}
		return v.Matches(r.value)
	case relevanceComputed:
		return e.computed(node, r)
	}
	e.report(Diagnostic{
		Code:     CodeMalformedRelevance,
		Severity: SeverityError,
		Node:     node,
		Message:  fmt.Sprintf("unknown relevance kind %d", r.kind),
	}, true)
	return false
}

func (e *Encounter) computed(node string, r Relevance) (ok bool) {
	if r.fn == nil {
		e.report(Diagnostic{
			Code:     CodeMalformedRelevance,
			Severity: SeverityError,
			Node:     node,
			Message:  fmt.Sprintf("computed rule %q has no predicate", r.name),
		}, true)
		return false
	}
	defer func() {
		if p := recover(); p != nil {
			e.report(Diagnostic{
				Code:     CodePredicateFault,
				Severity: SeverityError,
				Node:     node,
				Message:  fmt.Sprintf("computed rule %q panicked: %v", r.name, p),
			}, true)
			ok = false
		}
	}()
	return r.fn(e)
}

// IsRelevant evaluates a single rule against answers outside a scoring pass.
func IsRelevant(node string, r Relevance, a *Answers) (bool, []Diagnostic) {
	e := newEncounter(a, zerolog.Nop())
	ok := e.relevant(node, r)
	return ok, e.diags
}
