package scoring

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDuplicateScoreKey is returned when two nodes export the same key.
	ErrDuplicateScoreKey = errors.New("duplicate score key")
	// ErrDuplicateItem is returned when an answer key is scored twice in one namespace.
	ErrDuplicateItem = errors.New("duplicate item key")
	// ErrUnknownVariable is returned when an equality rule references an
	// answer key the schema never declares.
	ErrUnknownVariable = errors.New("unknown relevance variable")
	// ErrInvalidNode is returned for structurally incomplete nodes.
	ErrInvalidNode = errors.New("invalid schema node")
)

// HandsOnKey is the export key of the running hands-on procedure KPI.
// Individual procedures export under HandsOnKey + "_" + procedure.
const HandsOnKey = "kpi_handsOn"

// SubgroupKind selects the aggregation rule of a subgroup.
type SubgroupKind string

const (
	KindFlatSkills     SubgroupKind = "flat-skills"
	KindSymptomCascade SubgroupKind = "symptom-cascade"
)

// GroupKind selects the aggregation rule of a top-level group.
type GroupKind string

const (
	GroupDecision  GroupKind = "decision"
	GroupContainer GroupKind = "container"
)

// SkillItem is a leaf scored 0/1 from a yes/no answer.
type SkillItem struct {
	Key       string
	Label     string
	Relevance Relevance
	// Procedure tags hands-on steps counted by the procedure KPIs.
	Procedure string
}

// Symptom is one ask -> confirm -> check -> classify chain inside a
// symptom-cascade subgroup. Steps are scored only when both the ask answer
// and the supervisor confirmation are "yes".
type Symptom struct {
	Name       string
	ScoreKey   string
	Ask        SkillItem
	ConfirmKey string
	Steps      []SkillItem
}

// Subgroup is a scoring unit exported under ScoreKey.
type Subgroup struct {
	Title     string
	ScoreKey  string
	Relevance Relevance
	Kind      SubgroupKind
	Items     []SkillItem
	Symptoms  []Symptom
}

// Group is a top-level section. Items below it read answers from Namespace.
type Group struct {
	Title      string
	SectionKey string
	ScoreKey   string
	Kind       GroupKind
	Namespace  Namespace
	// DecisionKey is the yes/no answer scored by a decision group.
	DecisionKey string
	Subgroups   []Subgroup
}

// Tally is what KPI rules see of the aggregation: every exported node score
// and the hands-on procedure accumulator.
type Tally struct {
	Scores     map[string]Score
	Procedures map[string]Score
}

// KPI is a derived indicator computed in the same pass as the aggregation.
type KPI struct {
	Key     string
	Compute func(e *Encounter, t Tally) Score
}

// Schema is an immutable, validated checklist tree.
type Schema struct {
	groups     []Group
	kpis       []KPI
	procedures []string
	variables  map[string]struct{}
}

// NewSchema validates the tree and freezes it. variables declares answer
// keys that relevance rules may reference besides the scored items
// themselves (decision inputs, confirmations, classifications).
func NewSchema(groups []Group, kpis []KPI, variables ...string) (*Schema, error) {
	s := &Schema{
		groups:    groups,
		kpis:      kpis,
		variables: make(map[string]struct{}),
	}
	for _, v := range variables {
		s.variables[v] = struct{}{}
	}
	for _, d := range Domains() {
		s.variables[d.ClassifyKey()] = struct{}{}
		s.variables[d.WorkerKey()] = struct{}{}
		s.variables[d.SupervisorKey()] = struct{}{}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Groups returns the top-level groups in order.
func (s *Schema) Groups() []Group {
	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// KPIs returns the KPI rules in order.
func (s *Schema) KPIs() []KPI {
	out := make([]KPI, len(s.kpis))
	copy(out, s.kpis)
	return out
}

// Procedures returns the sorted hands-on procedure tags used by items.
func (s *Schema) Procedures() []string {
	out := make([]string, len(s.procedures))
	copy(out, s.procedures)
	return out
}

// ProcedureKey is the export key of a single procedure KPI.
func ProcedureKey(procedure string) string { return HandsOnKey + "_" + procedure }

func (s *Schema) validate() error {
	var errs []error
	keys := map[string]string{OverallKey: "overall"}
	claim := func(key, owner string) {
		if key == "" {
			errs = append(errs, fmt.Errorf("%w: %s has no score key", ErrInvalidNode, owner))
			return
		}
		if prev, ok := keys[key]; ok {
			errs = append(errs, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateScoreKey, key, prev, owner))
			return
		}
		keys[key] = owner
	}

	items := make(map[Namespace]map[string]struct{})
	declareItem := func(ns Namespace, it SkillItem, owner string) {
		if it.Key == "" {
			errs = append(errs, fmt.Errorf("%w: item without key in %s", ErrInvalidNode, owner))
			return
		}
		if items[ns] == nil {
			items[ns] = make(map[string]struct{})
		}
		if _, ok := items[ns][it.Key]; ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrDuplicateItem, ns, it.Key))
			return
		}
		items[ns][it.Key] = struct{}{}
		s.variables[it.Key] = struct{}{}
	}

	var rules []struct {
		node string
		rel  Relevance
	}
	addRule := func(node string, r Relevance) {
		rules = append(rules, struct {
			node string
			rel  Relevance
		}{node, r})
	}

	procs := make(map[string]struct{})
	for gi, g := range s.groups {
		owner := fmt.Sprintf("group %q", g.Title)
		claim(g.ScoreKey, owner)
		switch g.Namespace {
		case NamespaceRoot, NamespaceAssessment, NamespaceTreatment:
		default:
			errs = append(errs, fmt.Errorf("%w: %s has namespace %q", ErrInvalidNode, owner, g.Namespace))
		}
		switch g.Kind {
		case GroupDecision:
			if g.DecisionKey == "" {
				errs = append(errs, fmt.Errorf("%w: decision %s has no decision key", ErrInvalidNode, owner))
			} else {
				declareItem(g.Namespace, SkillItem{Key: g.DecisionKey}, owner)
			}
			if len(g.Subgroups) > 0 {
				errs = append(errs, fmt.Errorf("%w: decision %s cannot hold subgroups", ErrInvalidNode, owner))
			}
		case GroupContainer:
		default:
			errs = append(errs, fmt.Errorf("%w: group %d has kind %q", ErrInvalidNode, gi, g.Kind))
		}
		for _, sg := range g.Subgroups {
			sgOwner := fmt.Sprintf("subgroup %q", sg.Title)
			claim(sg.ScoreKey, sgOwner)
			addRule(sg.ScoreKey, sg.Relevance)
			switch sg.Kind {
			case KindFlatSkills:
				if len(sg.Symptoms) > 0 {
					errs = append(errs, fmt.Errorf("%w: flat %s holds symptoms", ErrInvalidNode, sgOwner))
				}
				for _, it := range sg.Items {
					declareItem(g.Namespace, it, sgOwner)
					addRule(it.Key, it.Relevance)
					if it.Procedure != "" {
						procs[it.Procedure] = struct{}{}
					}
				}
			case KindSymptomCascade:
				if len(sg.Items) > 0 {
					errs = append(errs, fmt.Errorf("%w: cascade %s holds loose items", ErrInvalidNode, sgOwner))
				}
				for _, sym := range sg.Symptoms {
					symOwner := fmt.Sprintf("symptom %q", sym.Name)
					claim(sym.ScoreKey, symOwner)
					declareItem(g.Namespace, sym.Ask, symOwner)
					addRule(sym.Ask.Key, sym.Ask.Relevance)
					if sym.ConfirmKey == "" {
						errs = append(errs, fmt.Errorf("%w: %s has no confirmation key", ErrInvalidNode, symOwner))
					} else {
						s.variables[sym.ConfirmKey] = struct{}{}
					}
					for _, it := range sym.Steps {
						declareItem(g.Namespace, it, symOwner)
						addRule(it.Key, it.Relevance)
						if it.Procedure != "" {
							procs[it.Procedure] = struct{}{}
						}
					}
				}
			default:
				errs = append(errs, fmt.Errorf("%w: %s has kind %q", ErrInvalidNode, sgOwner, sg.Kind))
			}
		}
	}

	for p := range procs {
		s.procedures = append(s.procedures, p)
	}
	sort.Strings(s.procedures)
	if len(s.procedures) > 0 {
		claim(HandsOnKey, "hands-on KPI")
		for _, p := range s.procedures {
			claim(ProcedureKey(p), fmt.Sprintf("procedure %q", p))
		}
	}
	for _, k := range s.kpis {
		claim(k.Key, fmt.Sprintf("kpi %q", k.Key))
		if k.Compute == nil {
			errs = append(errs, fmt.Errorf("%w: kpi %q has no rule", ErrInvalidNode, k.Key))
		}
	}

	for _, r := range rules {
		switch r.rel.kind {
		case relevanceEquals:
			if r.rel.variable == "" {
				errs = append(errs, fmt.Errorf("%w: %s has an empty equality rule", ErrInvalidNode, r.node))
			} else if _, ok := s.variables[r.rel.variable]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s references %q", ErrUnknownVariable, r.node, r.rel.variable))
			}
		case relevanceComputed:
			if r.rel.fn == nil {
				errs = append(errs, fmt.Errorf("%w: %s has computed rule %q without predicate", ErrInvalidNode, r.node, r.rel.name))
			}
		}
	}
	return errors.Join(errs...)
}
