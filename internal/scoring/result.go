package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// OverallKey is the reserved export key for the overall roll-up.
const OverallKey = "overallScore"

// Score is a (score, maxScore) pair. MaxScore 0 means nothing applicable was
// observed and must be shown as not applicable.
type Score struct {
	Score    int `json:"score" bson:"score"`
	MaxScore int `json:"maxScore" bson:"maxScore"`
}

// Add returns the component-wise sum.
func (s Score) Add(o Score) Score {
	return Score{Score: s.Score + o.Score, MaxScore: s.MaxScore + o.MaxScore}
}

// Applicable reports whether anything counted toward the pair.
func (s Score) Applicable() bool { return s.MaxScore > 0 }

func (s Score) String() string {
	return fmt.Sprintf("%d/%d", s.Score, s.MaxScore)
}

// binary returns {1,1} for true and {0,1} for false.
func binary(ok bool) Score {
	if ok {
		return Score{Score: 1, MaxScore: 1}
	}
	return Score{MaxScore: 1}
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticCode identifies the class of problem a diagnostic reports.
type DiagnosticCode string

const (
	CodeUnresolvedVariable DiagnosticCode = "unresolved_variable"
	CodePredicateFault     DiagnosticCode = "predicate_fault"
	CodeInvalidAnswer      DiagnosticCode = "invalid_answer"
	CodeMalformedRelevance DiagnosticCode = "malformed_relevance"
)

// Diagnostic describes a node that was degraded during a scoring pass.
type Diagnostic struct {
	Code     DiagnosticCode `json:"code" bson:"code"`
	Severity Severity       `json:"severity" bson:"severity"`
	Node     string         `json:"node" bson:"node"`
	Message  string         `json:"message" bson:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Node, d.Message)
}

// Result is the output of one scoring pass.
type Result struct {
	// Scores holds every exported node: subgroups, symptoms, groups and the
	// overall roll-up under OverallKey.
	Scores map[string]Score `json:"scores"`
	// KPIs holds the derived indicators.
	KPIs        map[string]Score `json:"kpis"`
	Overall     Score            `json:"overall"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
	// Skipped lists nodes treated as not relevant because evaluating them
	// faulted, sorted and without duplicates.
	Skipped []string `json:"skipped,omitempty"`
}

// Degraded reports whether any node was skipped because of a fault.
func (r *Result) Degraded() bool { return len(r.Skipped) > 0 }

// Payload flattens scores and KPIs into the persisted key shape.
func (r *Result) Payload() Payload {
	p := make(Payload, 2*(len(r.Scores)+len(r.KPIs)))
	for k, s := range r.Scores {
		p.Set(k, s)
	}
	for k, s := range r.KPIs {
		p.Set(k, s)
	}
	return p
}

const (
	scoreSuffix    = "_score"
	maxScoreSuffix = "_maxScore"
)

// Payload is the flat "<key>_score" / "<key>_maxScore" mapping persisted for
// dashboards. Renaming a key is a breaking change for stored payloads.
type Payload map[string]int

// Set writes both halves of a pair.
func (p Payload) Set(key string, s Score) {
	p[key+scoreSuffix] = s.Score
	p[key+maxScoreSuffix] = s.MaxScore
}

// Get reads a pair back. ok is false when either half is missing.
func (p Payload) Get(key string) (Score, bool) {
	s, ok1 := p[key+scoreSuffix]
	m, ok2 := p[key+maxScoreSuffix]
	if !ok1 || !ok2 {
		return Score{}, false
	}
	return Score{Score: s, MaxScore: m}, true
}

// Keys returns the sorted pair keys present in the payload.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p)/2)
	for k := range p {
		if strings.HasSuffix(k, maxScoreSuffix) {
			base := strings.TrimSuffix(k, maxScoreSuffix)
			if _, ok := p[base+scoreSuffix]; ok {
				keys = append(keys, base)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two payloads hold identical entries.
func (p Payload) Equal(o Payload) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
