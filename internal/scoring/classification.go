package scoring

import "fmt"

// Domain is a disease-classification domain.
type Domain string

const (
	DomainCough        Domain = "cough"
	DomainDiarrhea     Domain = "diarrhea"
	DomainFever        Domain = "fever"
	DomainEar          Domain = "ear"
	DomainMalnutrition Domain = "malnutrition"
	DomainAnemia       Domain = "anemia"
)

// Domains lists every classification domain.
func Domains() []Domain {
	return []Domain{DomainCough, DomainDiarrhea, DomainFever, DomainEar, DomainMalnutrition, DomainAnemia}
}

// MultiSelect reports whether the domain allows co-occurring classifications.
func (d Domain) MultiSelect() bool {
	return d == DomainDiarrhea || d == DomainFever
}

// ClassifyKey is the yes/no answer recording whether the worker classified
// the domain correctly.
func (d Domain) ClassifyKey() string { return "skill_classify_" + string(d) }

// WorkerKey is the worker's own classification.
func (d Domain) WorkerKey() string { return "worker_" + string(d) + "_classification" }

// SupervisorKey is the supervisor's corrected classification.
func (d Domain) SupervisorKey() string {
	return "supervisor_correct_" + string(d) + "_classification"
}

// Classification is a resolved classification: a single label (or none) for
// single-select domains, a label set for multi-select ones.
type Classification struct {
	Domain Domain
	labels []string
}

// Defined reports whether any label was recorded.
func (c Classification) Defined() bool { return len(c.labels) > 0 }

// Labels returns a copy of the resolved labels.
func (c Classification) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Label returns the single label of a single-select domain.
func (c Classification) Label() (string, bool) {
	if len(c.labels) == 0 {
		return "", false
	}
	return c.labels[0], true
}

// Has reports whether label is part of the classification.
func (c Classification) Has(label string) bool {
	for _, l := range c.labels {
		if l == label {
			return true
		}
	}
	return false
}

// HasAny reports whether any of labels is part of the classification.
func (c Classification) HasAny(labels ...string) bool {
	for _, l := range labels {
		if c.Has(l) {
			return true
		}
	}
	return false
}

// classificationOf resolves one recorded answer. ok is false when a
// single-select domain holds more than one label; the classification is then
// undefined.
func classificationOf(d Domain, v Value, recorded bool) (c Classification, ok bool) {
	c = Classification{Domain: d}
	if !recorded {
		return c, true
	}
	labels := v.LabelSet()
	if !d.MultiSelect() && len(labels) > 1 {
		return c, false
	}
	c.labels = labels
	return c, true
}

// resolver decides which classification is authoritative per domain and
// caches the answer for the lifetime of one scoring pass.
type resolver struct {
	answers   *Answers
	effective map[Domain]Classification
	byKey     map[string]Classification
	misses    int
	report    func(Diagnostic)
}

func newResolver(a *Answers) *resolver {
	return &resolver{
		answers:   a,
		effective: make(map[Domain]Classification, 6),
		byKey:     make(map[string]Classification, 12),
	}
}

// lookup reads one classification answer. Each key is read, and reported,
// at most once per pass.
func (r *resolver) lookup(d Domain, key string) Classification {
	if c, ok := r.byKey[key]; ok {
		return c
	}
	v, recorded := r.answers.Lookup(NamespaceAssessment, key)
	c, ok := classificationOf(d, v, recorded)
	if !ok && r.report != nil {
		r.report(Diagnostic{
			Code:     CodeInvalidAnswer,
			Severity: SeverityError,
			Node:     key,
			Message:  fmt.Sprintf("%s accepts one classification, got %d", d, len(v.LabelSet())),
		})
	}
	r.byKey[key] = c
	return c
}

// Effective returns the worker classification when the worker classified
// correctly, the supervisor correction otherwise.
func (r *resolver) Effective(d Domain) Classification {
	if c, ok := r.effective[d]; ok {
		return c
	}
	r.misses++
	key := d.SupervisorKey()
	if v, ok := r.answers.Lookup(NamespaceAssessment, d.ClassifyKey()); ok && v.Matches(Yes) {
		key = d.WorkerKey()
	}
	c := r.lookup(d, key)
	r.effective[d] = c
	return c
}

// Worker returns the worker's own classification regardless of correctness.
func (r *resolver) Worker(d Domain) Classification {
	return r.lookup(d, d.WorkerKey())
}

// ResolveEffective runs the resolution for a single domain outside a scoring
// pass. Inside a pass use Encounter.Effective so the cached value is shared.
func ResolveEffective(d Domain, a *Answers) Classification {
	return newResolver(a).Effective(d)
}
