package scoring

// extractKPIs emits the hands-on accumulator and every schema KPI. A KPI
// whose rule faults is reported and exported as not applicable.
func extractKPIs(s *Schema, e *Encounter, agg Aggregation) map[string]Score {
	out := make(map[string]Score, len(s.kpis)+len(s.procedures)+1)
	if len(s.procedures) > 0 {
		var total Score
		for _, proc := range s.procedures {
			ps := agg.Procedures[proc]
			out[ProcedureKey(proc)] = ps
			total = total.Add(ps)
		}
		out[HandsOnKey] = total
	}

	procs := make(map[string]Score, len(agg.Procedures))
	for k, v := range agg.Procedures {
		procs[k] = v
	}
	scores := make(map[string]Score, len(agg.Scores))
	for k, v := range agg.Scores {
		scores[k] = v
	}
	t := Tally{Scores: scores, Procedures: procs}
	for _, k := range s.kpis {
		out[k.Key] = computeKPI(e, k, t)
	}
	return out
}

func computeKPI(e *Encounter, k KPI, t Tally) (s Score) {
	defer func() {
		if p := recover(); p != nil {
			e.report(Diagnostic{
				Code:     CodePredicateFault,
				Severity: SeverityError,
				Node:     k.Key,
				Message:  "kpi rule panicked",
			}, true)
			s = Score{}
		}
	}()
	s = k.Compute(e, t)
	if s.Score < 0 || s.MaxScore < 0 || s.Score > s.MaxScore {
		e.report(Diagnostic{
			Code:     CodePredicateFault,
			Severity: SeverityError,
			Node:     k.Key,
			Message:  "kpi rule returned " + s.String() + ", outside 0 <= score <= maxScore",
		}, true)
		return Score{}
	}
	return s
}

// Presence is a KPI helper: maxScore 1 when the prerequisite holds, score 1
// when the outcome also holds, and not applicable otherwise.
func Presence(prerequisite, outcome bool) Score {
	if !prerequisite {
		return Score{}
	}
	return binary(outcome)
}

// Flag is a KPI helper for always-applicable binary indicators.
func Flag(ok bool) Score { return binary(ok) }
