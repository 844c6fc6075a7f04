package checklist

import (
	"errors"
	"fmt"
	"strings"

	"imcitrack/internal/scoring"
)

// ErrUnknownLabel is returned when an imported classification does not match
// any label of its domain.
var ErrUnknownLabel = errors.New("unknown classification label")

// Classification labels.
const (
	LabelSeverePneumonia = "severe pneumonia or very severe disease"
	LabelPneumonia       = "pneumonia"
	LabelCoughOrCold     = "cough or cold"

	LabelSevereDehydration         = "severe dehydration"
	LabelSomeDehydration           = "some dehydration"
	LabelNoDehydration             = "no dehydration"
	LabelSeverePersistentDiarrhoea = "severe persistent diarrhea"
	LabelPersistentDiarrhoea       = "persistent diarrhea"
	LabelDysentery                 = "dysentery"

	LabelVerySevereFebrile = "very severe febrile disease"
	LabelMalaria           = "malaria"
	LabelFeverNoMalaria    = "fever no malaria"
	LabelSevereMeasles     = "severe complicated measles"
	LabelMeaslesEyeMouth   = "measles with eye or mouth complications"
	LabelMeasles           = "measles"

	LabelMastoiditis         = "mastoiditis"
	LabelAcuteEarInfection   = "acute ear infection"
	LabelChronicEarInfection = "chronic ear infection"
	LabelNoEarInfection      = "no ear infection"

	LabelComplicatedSAM   = "complicated severe acute malnutrition"
	LabelUncomplicatedSAM = "uncomplicated severe acute malnutrition"
	LabelModerateMAM      = "moderate acute malnutrition"
	LabelNoMalnutrition   = "no acute malnutrition"

	LabelSevereAnemia = "severe anemia"
	LabelAnemia       = "anemia"
	LabelNoAnemia     = "no anemia"
)

var catalog = map[scoring.Domain][]string{
	scoring.DomainCough: {LabelSeverePneumonia, LabelPneumonia, LabelCoughOrCold},
	scoring.DomainDiarrhea: {
		LabelSevereDehydration, LabelSomeDehydration, LabelNoDehydration,
		LabelSeverePersistentDiarrhoea, LabelPersistentDiarrhoea, LabelDysentery,
	},
	scoring.DomainFever: {
		LabelVerySevereFebrile, LabelMalaria, LabelFeverNoMalaria,
		LabelSevereMeasles, LabelMeaslesEyeMouth, LabelMeasles,
	},
	scoring.DomainEar:          {LabelMastoiditis, LabelAcuteEarInfection, LabelChronicEarInfection, LabelNoEarInfection},
	scoring.DomainMalnutrition: {LabelComplicatedSAM, LabelUncomplicatedSAM, LabelModerateMAM, LabelNoMalnutrition},
	scoring.DomainAnemia:       {LabelSevereAnemia, LabelAnemia, LabelNoAnemia},
}

// severe classifications indicate the child should have been referred.
var severe = map[scoring.Domain][]string{
	scoring.DomainCough:        {LabelSeverePneumonia},
	scoring.DomainDiarrhea:     {LabelSevereDehydration, LabelSeverePersistentDiarrhoea},
	scoring.DomainFever:        {LabelVerySevereFebrile, LabelSevereMeasles},
	scoring.DomainEar:          {LabelMastoiditis},
	scoring.DomainMalnutrition: {LabelComplicatedSAM},
	scoring.DomainAnemia:       {LabelSevereAnemia},
}

// DomainLabels returns the closed label list of d.
func DomainLabels(d scoring.Domain) []string {
	out := make([]string, len(catalog[d]))
	copy(out, catalog[d])
	return out
}

// SevereLabels returns the referral-triggering labels of d.
func SevereLabels(d scoring.Domain) []string {
	out := make([]string, len(severe[d]))
	copy(out, severe[d])
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Standardize maps raw to the catalog label of d that matches it ignoring
// case and whitespace runs.
func Standardize(d scoring.Domain, raw string) (string, error) {
	want := fold(raw)
	for _, l := range catalog[d] {
		if fold(l) == want {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a %s classification", ErrUnknownLabel, raw, d)
}

// Final decisions recorded at the root of an encounter.
const (
	DecisionReferral   = "referral"
	DecisionOutpatient = "outpatient"
	DecisionHome       = "home"
)

// Answer keys outside the scored items.
const (
	KeyFinalDecision   = "finalDecision"
	KeyDecisionMatches = "decisionMatches"
)

var decisions = []string{DecisionReferral, DecisionOutpatient, DecisionHome}

// StandardizeDecision maps raw to a final decision value.
func StandardizeDecision(raw string) (string, error) {
	want := fold(raw)
	for _, d := range decisions {
		if d == want {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a final decision", ErrUnknownLabel, raw)
}
