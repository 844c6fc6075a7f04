package checklist

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"imcitrack/internal/scoring"
)

// Row is one loosely typed encounter as produced by an importer: namespace
// name -> answer key -> raw value.
type Row map[string]map[string]interface{}

// LabelSeparator splits multi-select classifications held in one text cell.
const LabelSeparator = ";"

type classificationKey struct {
	domain     scoring.Domain
	supervisor bool
}

// Normalizer turns imported rows into answer stores. Binary answers are
// trimmed and lowercased, classifications are standardized against the
// closed catalog and the final decision against its value list.
type Normalizer struct {
	binary          map[string]struct{}
	classifications map[string]classificationKey
}

// NewNormalizer prepares a normalizer for the keys of c.
func NewNormalizer(c *Checklist) *Normalizer {
	n := &Normalizer{
		binary:          make(map[string]struct{}),
		classifications: make(map[string]classificationKey),
	}
	add := func(k string) {
		if k != "" {
			n.binary[k] = struct{}{}
		}
	}
	for _, g := range c.Schema.Groups() {
		add(g.DecisionKey)
		for _, sg := range g.Subgroups {
			for _, it := range sg.Items {
				add(it.Key)
			}
			for _, sym := range sg.Symptoms {
				add(sym.Ask.Key)
				add(sym.ConfirmKey)
				for _, it := range sym.Steps {
					add(it.Key)
				}
			}
		}
	}
	for _, d := range scoring.Domains() {
		add(d.ClassifyKey())
		n.classifications[d.WorkerKey()] = classificationKey{domain: d}
		n.classifications[d.SupervisorKey()] = classificationKey{domain: d, supervisor: true}
	}
	return n
}

// Normalize converts row into an answer store. Every problem in the row is
// reported; the store is only returned when the row is acceptable.
func (n *Normalizer) Normalize(row Row) (*scoring.Answers, error) {
	b := scoring.NewBuilder()
	var errs []error

	spaces := make([]string, 0, len(row))
	for ns := range row {
		spaces = append(spaces, ns)
	}
	sort.Strings(spaces)

	for _, nsName := range spaces {
		ns, err := scoring.ParseNamespace(nsName)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values := row[nsName]
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			v, ok, err := n.value(key, values[key])
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", ns, key, err))
				continue
			}
			if ok {
				b.Set(ns, key, v)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.Build(), nil
}

// value normalizes one cell. ok is false for blank cells, which stay
// unanswered.
func (n *Normalizer) value(key string, raw interface{}) (scoring.Value, bool, error) {
	if raw == nil {
		return scoring.Value{}, false, nil
	}
	if ck, isClass := n.classifications[key]; isClass {
		return n.classification(ck, raw)
	}
	if key == KeyFinalDecision {
		s, ok := raw.(string)
		if !ok {
			return scoring.Value{}, false, fmt.Errorf("final decision is %T, not text", raw)
		}
		if strings.TrimSpace(s) == "" {
			return scoring.Value{}, false, nil
		}
		d, err := StandardizeDecision(s)
		if err != nil {
			return scoring.Value{}, false, err
		}
		return scoring.Text(d), true, nil
	}
	if _, isBinary := n.binary[key]; isBinary {
		s, ok := raw.(string)
		if !ok {
			// Left for the engine to report as an invalid answer.
			v, err := scoring.ValueOf(raw)
			return v, err == nil, err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return scoring.Value{}, false, nil
		}
		return scoring.Text(s), true, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return scoring.Value{}, false, nil
	}
	v, err := scoring.ValueOf(raw)
	return v, err == nil, err
}

func (n *Normalizer) classification(ck classificationKey, raw interface{}) (scoring.Value, bool, error) {
	var parts []string
	switch t := raw.(type) {
	case string:
		for _, p := range strings.Split(t, LabelSeparator) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	case []string:
		parts = t
	case []interface{}:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return scoring.Value{}, false, fmt.Errorf("classification element %v is %T, not text", e, e)
			}
			parts = append(parts, s)
		}
	default:
		return scoring.Value{}, false, fmt.Errorf("classification is %T, not text", raw)
	}

	labels := make([]string, 0, len(parts))
	var errs []error
	for _, p := range parts {
		l, err := Standardize(ck.domain, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		labels = append(labels, l)
	}
	if len(errs) > 0 {
		return scoring.Value{}, false, errors.Join(errs...)
	}
	if ck.domain.MultiSelect() {
		return scoring.Labels(labels...), true, nil
	}
	switch len(labels) {
	case 0:
		return scoring.Value{}, false, nil
	case 1:
		return scoring.Text(labels[0]), true, nil
	}
	return scoring.Value{}, false, fmt.Errorf("%s accepts one classification, got %d", ck.domain, len(labels))
}
