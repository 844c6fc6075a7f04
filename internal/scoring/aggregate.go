package scoring

import (
	"fmt"

	"github.com/rs/zerolog"
)

type options struct {
	logger zerolog.Logger
}

// Option configures a scoring pass.
type Option func(*options)

// WithLogger logs every diagnostic raised during the pass.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Aggregation is the per-node output of the Score Aggregator.
type Aggregation struct {
	Scores     map[string]Score
	Overall    Score
	Procedures map[string]Score
}

// Pass is a single scoring pass over one encounter. It is not safe for
// concurrent use and must not be reused for another encounter.
type Pass struct {
	schema *Schema
	enc    *Encounter
	agg    *Aggregation
	kpis   map[string]Score
}

// NewPass prepares a pass of schema over answers.
func NewPass(schema *Schema, answers *Answers, opts ...Option) *Pass {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pass{schema: schema, enc: newEncounter(answers, o.logger)}
}

// Evaluate runs the aggregator and the KPI extractor in one pass.
func Evaluate(schema *Schema, answers *Answers, opts ...Option) *Result {
	return NewPass(schema, answers, opts...).Result()
}

// Encounter exposes the pass-scoped view, mainly for tests and reports.
func (p *Pass) Encounter() *Encounter { return p.enc }

// Aggregate walks the schema bottom-up. The walk runs once per pass.
func (p *Pass) Aggregate() Aggregation {
	if p.agg == nil {
		agg := aggregate(p.schema, p.enc)
		p.agg = &agg
	}
	return *p.agg
}

// ExtractKPIs derives the indicators from the same pass.
func (p *Pass) ExtractKPIs() map[string]Score {
	if p.kpis == nil {
		p.kpis = extractKPIs(p.schema, p.enc, p.Aggregate())
	}
	return p.kpis
}

// Result assembles the aggregation, KPIs and diagnostics.
func (p *Pass) Result() *Result {
	agg := p.Aggregate()
	kpis := p.ExtractKPIs()
	scores := make(map[string]Score, len(agg.Scores))
	for k, v := range agg.Scores {
		scores[k] = v
	}
	out := make(map[string]Score, len(kpis))
	for k, v := range kpis {
		out[k] = v
	}
	diags := make([]Diagnostic, len(p.enc.diags))
	copy(diags, p.enc.diags)
	return &Result{
		Scores:      scores,
		KPIs:        out,
		Overall:     agg.Overall,
		Diagnostics: diags,
		Skipped:     p.enc.skippedNodes(),
	}
}

// fold is the value one node contributes to its parent.
type fold struct {
	score Score
	procs map[string]Score
}

func (f *fold) add(o fold) {
	f.score = f.score.Add(o.score)
	for k, v := range o.procs {
		if f.procs == nil {
			f.procs = make(map[string]Score)
		}
		f.procs[k] = f.procs[k].Add(v)
	}
}

func aggregate(s *Schema, e *Encounter) Aggregation {
	agg := Aggregation{Scores: make(map[string]Score)}
	var total fold
	for _, g := range s.groups {
		gf := foldGroup(g, e, agg.Scores)
		agg.Scores[g.ScoreKey] = gf.score
		total.add(gf)
	}
	agg.Overall = total.score
	agg.Scores[OverallKey] = total.score
	agg.Procedures = make(map[string]Score, len(s.procedures))
	for _, proc := range s.procedures {
		agg.Procedures[proc] = total.procs[proc]
	}
	return agg
}

func foldGroup(g Group, e *Encounter, out map[string]Score) fold {
	if g.Kind == GroupDecision {
		return fold{score: binary(readBinary(e, g.Namespace, g.DecisionKey) == Yes)}
	}
	var gf fold
	for _, sg := range g.Subgroups {
		sf := foldSubgroup(sg, g.Namespace, e, out)
		out[sg.ScoreKey] = sf.score
		gf.add(sf)
	}
	return gf
}

func foldSubgroup(sg Subgroup, ns Namespace, e *Encounter, out map[string]Score) fold {
	relevant := e.relevant(sg.ScoreKey, sg.Relevance)
	if sg.Kind == KindSymptomCascade {
		var sf fold
		for _, sym := range sg.Symptoms {
			if !relevant {
				out[sym.ScoreKey] = Score{}
				continue
			}
			yf := foldSymptom(sym, ns, e)
			out[sym.ScoreKey] = yf.score
			sf.add(yf)
		}
		return sf
	}
	if !relevant {
		return fold{}
	}
	var sf fold
	for _, it := range sg.Items {
		sf.add(foldItem(it, ns, e))
	}
	return sf
}

// foldSymptom always scores the ask step; the remaining steps count only
// when the worker asked and the supervisor confirms the symptom is present.
func foldSymptom(sym Symptom, ns Namespace, e *Encounter) fold {
	yf := foldItem(sym.Ask, ns, e)
	asked := yf.score.MaxScore > 0 && yf.score.Score == 1
	if !asked || readBinary(e, ns, sym.ConfirmKey) != Yes {
		return yf
	}
	for _, it := range sym.Steps {
		yf.add(foldItem(it, ns, e))
	}
	return yf
}

func foldItem(it SkillItem, ns Namespace, e *Encounter) fold {
	if !e.relevant(it.Key, it.Relevance) {
		return fold{}
	}
	var s Score
	switch readBinary(e, ns, it.Key) {
	case Yes:
		s = Score{Score: 1, MaxScore: 1}
	case No:
		s = Score{MaxScore: 1}
	default:
		return fold{}
	}
	f := fold{score: s}
	if it.Procedure != "" {
		f.procs = map[string]Score{it.Procedure: s}
	}
	return f
}

// readBinary returns yes, no or na for a recorded binary answer and "" for a
// missing one. Values outside the permitted set are treated as missing and
// reported.
func readBinary(e *Encounter, ns Namespace, key string) string {
	v, ok := e.answers.Lookup(ns, key)
	if !ok {
		return ""
	}
	if v.IsText() {
		switch s := v.String(); s {
		case Yes, No, NA:
			return s
		case "":
			return ""
		}
	}
	e.report(Diagnostic{
		Code:     CodeInvalidAnswer,
		Severity: SeverityWarning,
		Node:     key,
		Message:  fmt.Sprintf("%s.%s holds %v, expected yes, no or na", ns, key, v.Raw()),
	}, false)
	return ""
}
