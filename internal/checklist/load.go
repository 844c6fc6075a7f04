// Package checklist holds the IMCI observation checklist: the YAML tree, the
// closed classification catalog, the computed relevance rules and KPIs, and
// the normalizer that prepares imported rows for scoring.
package checklist

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"imcitrack/internal/scoring"
)

//go:embed imci.yaml
var imciYAML []byte

// ErrUnknownPredicate is returned when the file names a computed rule that
// is not registered.
var ErrUnknownPredicate = errors.New("unknown computed relevance")

type fileRelevance struct {
	Variable string  `yaml:"variable"`
	Equals   *string `yaml:"equals"`
	Computed string  `yaml:"computed"`
}

type fileItem struct {
	Key       string         `yaml:"key"`
	Label     string         `yaml:"label"`
	Procedure string         `yaml:"procedure"`
	Relevance *fileRelevance `yaml:"relevance"`
}

type fileSymptom struct {
	Name     string     `yaml:"name"`
	ScoreKey string     `yaml:"scoreKey"`
	Ask      fileItem   `yaml:"ask"`
	Confirm  string     `yaml:"confirm"`
	Steps    []fileItem `yaml:"steps"`
}

type fileSubgroup struct {
	Title     string         `yaml:"title"`
	ScoreKey  string         `yaml:"scoreKey"`
	Kind      string         `yaml:"kind"`
	Relevance *fileRelevance `yaml:"relevance"`
	Items     []fileItem     `yaml:"items"`
	Symptoms  []fileSymptom  `yaml:"symptoms"`
}

type fileGroup struct {
	Title      string         `yaml:"title"`
	SectionKey string         `yaml:"sectionKey"`
	ScoreKey   string         `yaml:"scoreKey"`
	Kind       string         `yaml:"kind"`
	Namespace  string         `yaml:"namespace"`
	Decision   string         `yaml:"decision"`
	Subgroups  []fileSubgroup `yaml:"subgroups"`
}

type checklistFile struct {
	Version   int         `yaml:"version"`
	Variables []string    `yaml:"variables"`
	Groups    []fileGroup `yaml:"groups"`
}

// Checklist is a loaded checklist: the validated schema plus the file
// metadata reports need.
type Checklist struct {
	Version int
	Schema  *scoring.Schema
}

var (
	defaultOnce sync.Once
	defaultList *Checklist
	defaultErr  error
)

// Default returns the embedded IMCI checklist. It is parsed once.
func Default() (*Checklist, error) {
	defaultOnce.Do(func() {
		defaultList, defaultErr = Parse(imciYAML)
	})
	return defaultList, defaultErr
}

// LoadFile parses a checklist from disk.
func LoadFile(path string) (*Checklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	return Parse(data)
}

// Load parses a checklist from r.
func Load(r io.Reader) (*Checklist, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	return Parse(data)
}

// Parse builds and validates a checklist from YAML.
func Parse(data []byte) (*Checklist, error) {
	var f checklistFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse checklist: %w", err)
	}

	var errs []error
	groups := make([]scoring.Group, 0, len(f.Groups))
	for _, fg := range f.Groups {
		ns, err := scoring.ParseNamespace(fg.Namespace)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", fg.Title, err))
		}
		g := scoring.Group{
			Title:       fg.Title,
			SectionKey:  fg.SectionKey,
			ScoreKey:    fg.ScoreKey,
			Kind:        scoring.GroupKind(fg.Kind),
			Namespace:   ns,
			DecisionKey: fg.Decision,
		}
		for _, fs := range fg.Subgroups {
			rel, err := relevanceOf(fs.Relevance)
			if err != nil {
				errs = append(errs, fmt.Errorf("subgroup %q: %w", fs.Title, err))
			}
			sg := scoring.Subgroup{
				Title:     fs.Title,
				ScoreKey:  fs.ScoreKey,
				Kind:      scoring.SubgroupKind(fs.Kind),
				Relevance: rel,
			}
			for _, fi := range fs.Items {
				it, err := itemOf(fi)
				if err != nil {
					errs = append(errs, err)
				}
				sg.Items = append(sg.Items, it)
			}
			for _, fy := range fs.Symptoms {
				ask, err := itemOf(fy.Ask)
				if err != nil {
					errs = append(errs, err)
				}
				sym := scoring.Symptom{
					Name:       fy.Name,
					ScoreKey:   fy.ScoreKey,
					Ask:        ask,
					ConfirmKey: fy.Confirm,
				}
				for _, fi := range fy.Steps {
					it, err := itemOf(fi)
					if err != nil {
						errs = append(errs, err)
					}
					sym.Steps = append(sym.Steps, it)
				}
				sg.Symptoms = append(sg.Symptoms, sym)
			}
			g.Subgroups = append(g.Subgroups, sg)
		}
		groups = append(groups, g)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	schema, err := scoring.NewSchema(groups, kpis(), f.Variables...)
	if err != nil {
		return nil, err
	}
	return &Checklist{Version: f.Version, Schema: schema}, nil
}

func itemOf(fi fileItem) (scoring.SkillItem, error) {
	rel, err := relevanceOf(fi.Relevance)
	if err != nil {
		err = fmt.Errorf("item %q: %w", fi.Key, err)
	}
	return scoring.SkillItem{
		Key:       fi.Key,
		Label:     fi.Label,
		Procedure: fi.Procedure,
		Relevance: rel,
	}, err
}

func relevanceOf(fr *fileRelevance) (scoring.Relevance, error) {
	if fr == nil {
		return scoring.Always(), nil
	}
	switch {
	case fr.Computed != "" && fr.Variable != "":
		return scoring.Always(), fmt.Errorf("relevance sets both computed and variable")
	case fr.Computed != "":
		fn, ok := predicates[fr.Computed]
		if !ok {
			return scoring.Always(), fmt.Errorf("%w: %q", ErrUnknownPredicate, fr.Computed)
		}
		return scoring.Computed(fr.Computed, fn), nil
	case fr.Variable != "":
		if fr.Equals == nil {
			return scoring.Always(), fmt.Errorf("relevance on %q has no equals value", fr.Variable)
		}
		return scoring.Equals(fr.Variable, *fr.Equals), nil
	}
	return scoring.Always(), fmt.Errorf("empty relevance block")
}
