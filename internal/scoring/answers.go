package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Namespace partitions the answers recorded for one encounter.
type Namespace string

const (
	NamespaceRoot       Namespace = "root"
	NamespaceAssessment Namespace = "assessment"
	NamespaceTreatment  Namespace = "treatment"
)

// resolutionOrder is the order bare variable names are probed in.
var resolutionOrder = []Namespace{NamespaceRoot, NamespaceAssessment, NamespaceTreatment}

// Namespaces returns every namespace in resolution order.
func Namespaces() []Namespace {
	out := make([]Namespace, len(resolutionOrder))
	copy(out, resolutionOrder)
	return out
}

// ParseNamespace validates a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	switch ns := Namespace(strings.TrimSpace(strings.ToLower(s))); ns {
	case NamespaceRoot, NamespaceAssessment, NamespaceTreatment:
		return ns, nil
	}
	return "", fmt.Errorf("unknown namespace %q", s)
}

// Binary answer values for skill checks.
const (
	Yes = "yes"
	No  = "no"
	NA  = "na"
)

type valueKind uint8

const (
	kindText valueKind = iota + 1
	kindLabels
	kindNumber
)

// Value is one recorded answer: a text value (yes/no/na, a single label or a
// date string), a set of labels, or a number.
type Value struct {
	kind   valueKind
	text   string
	labels []string
	number float64
}

// Text returns a single-valued answer.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Labels returns a multi-select answer. Order and duplicates are discarded.
func Labels(labels ...string) Value {
	set := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		set = append(set, l)
	}
	sort.Strings(set)
	return Value{kind: kindLabels, labels: set}
}

// Number returns a numeric answer.
func Number(f float64) Value { return Value{kind: kindNumber, number: f} }

// IsText reports whether v holds a single text value.
func (v Value) IsText() bool { return v.kind == kindText }

// IsLabels reports whether v holds a label set.
func (v Value) IsLabels() bool { return v.kind == kindLabels }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

// String returns the text value, or "" for other kinds.
func (v Value) String() string {
	if v.kind == kindText {
		return v.text
	}
	return ""
}

// LabelSet returns a copy of the label set. A text value is treated as a set
// of one so single-select answers can be read through the same accessor.
func (v Value) LabelSet() []string {
	switch v.kind {
	case kindLabels:
		out := make([]string, len(v.labels))
		copy(out, v.labels)
		return out
	case kindText:
		if v.text == "" {
			return nil
		}
		return []string{v.text}
	}
	return nil
}

// Float returns the numeric value.
func (v Value) Float() (float64, bool) {
	return v.number, v.kind == kindNumber
}

// Matches compares v against a literal: exact equality for text, membership
// for label sets, numeric equality for numbers.
func (v Value) Matches(literal string) bool {
	switch v.kind {
	case kindText:
		return v.text == literal
	case kindLabels:
		for _, l := range v.labels {
			if l == literal {
				return true
			}
		}
	case kindNumber:
		f, err := strconv.ParseFloat(literal, 64)
		return err == nil && f == v.number
	}
	return false
}

// Raw converts v to a plain Go value suitable for JSON or BSON documents.
func (v Value) Raw() interface{} {
	switch v.kind {
	case kindText:
		return v.text
	case kindLabels:
		return v.LabelSet()
	case kindNumber:
		return v.number
	}
	return nil
}

// ValueOf converts a decoded JSON/BSON value into a Value.
func ValueOf(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return Text(t), nil
	case []string:
		return Labels(t...), nil
	case []interface{}:
		labels := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("label set element %v is %T, not string", e, e)
			}
			labels = append(labels, s)
		}
		return Labels(labels...), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	}
	return Value{}, fmt.Errorf("unsupported answer value of type %T", raw)
}

// Answers is the read-only Answer Store for one encounter.
type Answers struct {
	spaces map[Namespace]map[string]Value
}

// Lookup reads key from a single namespace.
func (a *Answers) Lookup(ns Namespace, key string) (Value, bool) {
	if a == nil {
		return Value{}, false
	}
	v, ok := a.spaces[ns][key]
	return v, ok
}

// Resolve reads a bare variable name, probing root, then assessment, then
// treatment. The first namespace holding the key wins.
func (a *Answers) Resolve(key string) (Value, Namespace, bool) {
	for _, ns := range resolutionOrder {
		if v, ok := a.Lookup(ns, key); ok {
			return v, ns, true
		}
	}
	return Value{}, "", false
}

// Keys returns the sorted keys recorded in ns.
func (a *Answers) Keys(ns Namespace) []string {
	if a == nil {
		return nil
	}
	keys := make([]string, 0, len(a.spaces[ns]))
	for k := range a.spaces[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of answers across all namespaces.
func (a *Answers) Len() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, m := range a.spaces {
		n += len(m)
	}
	return n
}

// Raw flattens the store into nested plain maps keyed by namespace.
func (a *Answers) Raw() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(resolutionOrder))
	for _, ns := range resolutionOrder {
		m := make(map[string]interface{})
		for _, k := range a.Keys(ns) {
			v, _ := a.Lookup(ns, k)
			m[k] = v.Raw()
		}
		out[string(ns)] = m
	}
	return out
}

// AnswersFromRaw builds a store from nested plain maps, the shape persisted
// with observations.
func AnswersFromRaw(raw map[string]map[string]interface{}) (*Answers, error) {
	b := NewBuilder()
	for nsName, values := range raw {
		ns, err := ParseNamespace(nsName)
		if err != nil {
			return nil, err
		}
		for k, rv := range values {
			if rv == nil {
				continue
			}
			v, err := ValueOf(rv)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", ns, k, err)
			}
			b.Set(ns, k, v)
		}
	}
	return b.Build(), nil
}

// Builder accumulates answers before freezing them into an Answers store.
type Builder struct {
	spaces map[Namespace]map[string]Value
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{spaces: make(map[Namespace]map[string]Value)}
}

// Set records an answer, replacing any previous value for the same key.
func (b *Builder) Set(ns Namespace, key string, v Value) *Builder {
	m, ok := b.spaces[ns]
	if !ok {
		m = make(map[string]Value)
		b.spaces[ns] = m
	}
	m[key] = v
	return b
}

// SetText is shorthand for Set(ns, key, Text(s)).
func (b *Builder) SetText(ns Namespace, key, s string) *Builder {
	return b.Set(ns, key, Text(s))
}

// Build freezes the builder. Later calls to Set do not affect the result.
func (b *Builder) Build() *Answers {
	spaces := make(map[Namespace]map[string]Value, len(b.spaces))
	for ns, m := range b.spaces {
		cp := make(map[string]Value, len(m))
		for k, v := range m {
			cp[k] = v
		}
		spaces[ns] = cp
	}
	return &Answers{spaces: spaces}
}
