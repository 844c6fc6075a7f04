package checklist

import (
	"imcitrack/internal/scoring"
)

// predicates are the computed relevance rules the checklist file may name.
var predicates = map[string]scoring.Predicate{
	"pneumoniaCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainCough).Has(LabelPneumonia)
	},
	"dehydrationCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainDiarrhea).HasAny(LabelSomeDehydration, LabelNoDehydration)
	},
	"dysenteryCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainDiarrhea).Has(LabelDysentery)
	},
	"malariaCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainFever).Has(LabelMalaria)
	},
	"earInfectionCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainEar).HasAny(LabelAcuteEarInfection, LabelChronicEarInfection)
	},
	"acuteEarInfection": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainEar).Has(LabelAcuteEarInfection)
	},
	"malnutritionCase": malnutritionCase,
	"anemiaCase": func(e *scoring.Encounter) bool {
		return e.Effective(scoring.DomainAnemia).Has(LabelAnemia)
	},
	// Pre-referral treatment is only observed when the worker referred and
	// the referral matched the supervisor's decision.
	"referralMatched": func(e *scoring.Encounter) bool {
		return e.Is(KeyFinalDecision, DecisionReferral) && e.Is(KeyDecisionMatches, scoring.Yes)
	},
}

func malnutritionCase(e *scoring.Encounter) bool {
	return e.Effective(scoring.DomainMalnutrition).HasAny(LabelModerateMAM, LabelUncomplicatedSAM)
}

// severeCase reports whether any effective classification calls for referral.
func severeCase(e *scoring.Encounter) bool {
	for _, d := range scoring.Domains() {
		if e.Effective(d).HasAny(severe[d]...) {
			return true
		}
	}
	return false
}

// KPI export keys.
const (
	KPIReferralCase          = "kpi_referralCase"
	KPIReferralDecision      = "kpi_referralDecision"
	KPIMalariaClassification = "kpi_malariaClassification"
	KPIMalnutritionCase      = "kpi_malnutritionCase"
)

func kpis() []scoring.KPI {
	return []scoring.KPI{
		{
			Key: KPIReferralCase,
			Compute: func(e *scoring.Encounter, _ scoring.Tally) scoring.Score {
				return scoring.Flag(severeCase(e))
			},
		},
		{
			Key: KPIReferralDecision,
			Compute: func(e *scoring.Encounter, _ scoring.Tally) scoring.Score {
				return scoring.Presence(severeCase(e), e.Is(KeyFinalDecision, DecisionReferral))
			},
		},
		{
			Key: KPIMalariaClassification,
			Compute: func(e *scoring.Encounter, _ scoring.Tally) scoring.Score {
				present := e.Effective(scoring.DomainFever).Has(LabelMalaria)
				return scoring.Presence(present, e.Worker(scoring.DomainFever).Has(LabelMalaria))
			},
		},
		{
			Key: KPIMalnutritionCase,
			Compute: func(e *scoring.Encounter, _ scoring.Tally) scoring.Score {
				return scoring.Presence(e.Effective(scoring.DomainMalnutrition).Defined(), malnutritionCase(e))
			},
		},
	}
}
