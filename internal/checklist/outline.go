package checklist

import "imcitrack/internal/scoring"

// OutlineItem describes a scored item.
type OutlineItem struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Relevance string `json:"relevance"`
	Procedure string `json:"procedure,omitempty"`
}

// OutlineSymptom describes one symptom cascade.
type OutlineSymptom struct {
	Name       string        `json:"name"`
	ScoreKey   string        `json:"scoreKey"`
	Ask        OutlineItem   `json:"ask"`
	ConfirmKey string        `json:"confirmKey"`
	Steps      []OutlineItem `json:"steps"`
}

// OutlineSubgroup describes a subgroup.
type OutlineSubgroup struct {
	Title     string           `json:"title"`
	ScoreKey  string           `json:"scoreKey"`
	Kind      string           `json:"kind"`
	Relevance string           `json:"relevance"`
	Items     []OutlineItem    `json:"items,omitempty"`
	Symptoms  []OutlineSymptom `json:"symptoms,omitempty"`
}

// OutlineGroup describes a top-level group.
type OutlineGroup struct {
	Title       string            `json:"title"`
	SectionKey  string            `json:"sectionKey"`
	ScoreKey    string            `json:"scoreKey"`
	Kind        string            `json:"kind"`
	Namespace   string            `json:"namespace"`
	DecisionKey string            `json:"decisionKey,omitempty"`
	Subgroups   []OutlineSubgroup `json:"subgroups,omitempty"`
}

// Outline is the JSON-friendly description of a checklist.
type Outline struct {
	Version    int            `json:"version"`
	Groups     []OutlineGroup `json:"groups"`
	KPIs       []string       `json:"kpis"`
	Procedures []string       `json:"procedures"`
}

// Outline describes the checklist for clients rendering it.
func (c *Checklist) Outline() Outline {
	out := Outline{Version: c.Version, Procedures: c.Schema.Procedures()}
	for _, g := range c.Schema.Groups() {
		og := OutlineGroup{
			Title:       g.Title,
			SectionKey:  g.SectionKey,
			ScoreKey:    g.ScoreKey,
			Kind:        string(g.Kind),
			Namespace:   string(g.Namespace),
			DecisionKey: g.DecisionKey,
		}
		for _, sg := range g.Subgroups {
			os := OutlineSubgroup{
				Title:     sg.Title,
				ScoreKey:  sg.ScoreKey,
				Kind:      string(sg.Kind),
				Relevance: sg.Relevance.String(),
			}
			for _, it := range sg.Items {
				os.Items = append(os.Items, outlineItem(it))
			}
			for _, sym := range sg.Symptoms {
				oy := OutlineSymptom{
					Name:       sym.Name,
					ScoreKey:   sym.ScoreKey,
					Ask:        outlineItem(sym.Ask),
					ConfirmKey: sym.ConfirmKey,
				}
				for _, it := range sym.Steps {
					oy.Steps = append(oy.Steps, outlineItem(it))
				}
				os.Symptoms = append(os.Symptoms, oy)
			}
			og.Subgroups = append(og.Subgroups, os)
		}
		out.Groups = append(out.Groups, og)
	}
	if len(out.Procedures) > 0 {
		out.KPIs = append(out.KPIs, scoring.HandsOnKey)
		for _, p := range out.Procedures {
			out.KPIs = append(out.KPIs, scoring.ProcedureKey(p))
		}
	}
	for _, k := range c.Schema.KPIs() {
		out.KPIs = append(out.KPIs, k.Key)
	}
	return out
}

func outlineItem(it scoring.SkillItem) OutlineItem {
	return OutlineItem{
		Key:       it.Key,
		Label:     it.Label,
		Relevance: it.Relevance.String(),
		Procedure: it.Procedure,
	}
}
