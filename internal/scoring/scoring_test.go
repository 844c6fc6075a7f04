package scoring

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelMalaria = "malaria"

func malariaCase(e *Encounter) bool {
	return e.Effective(DomainFever).Has(labelMalaria)
}

func testGroups(txRelevance Relevance) []Group {
	return []Group{
		{
			Title: "Assessment", SectionKey: "assessment", ScoreKey: "assessment",
			Kind: GroupContainer, Namespace: NamespaceAssessment,
			Subgroups: []Subgroup{
				{
					Title: "Vitals", ScoreKey: "vitals", Kind: KindFlatSkills,
					Items: []SkillItem{
						{Key: "skill_weight", Procedure: "weight"},
						{Key: "skill_temp", Procedure: "temperature"},
						{Key: "skill_height"},
					},
				},
				{
					Title: "Symptoms", ScoreKey: "symptoms", Kind: KindSymptomCascade,
					Symptoms: []Symptom{{
						Name:       "fever",
						ScoreKey:   "symptom_fever",
						Ask:        SkillItem{Key: "skill_ask_fever"},
						ConfirmKey: "supervisor_confirms_fever",
						Steps: []SkillItem{
							{Key: "skill_check_rdt", Procedure: "rapidTest"},
							{Key: DomainFever.ClassifyKey()},
						},
					}},
				},
				{
					Title: "Immunization", ScoreKey: "immunization", Kind: KindFlatSkills,
					Items: []SkillItem{
						{Key: "skill_imm_card"},
						{Key: "skill_imm_catchup", Relevance: Equals("skill_imm_card", No)},
					},
				},
			},
		},
		{
			Title: "Decision", SectionKey: "finalDecision", ScoreKey: "finalDecision",
			Kind: GroupDecision, Namespace: NamespaceRoot, DecisionKey: "decisionMatches",
		},
		{
			Title: "Treatment", SectionKey: "treatment", ScoreKey: "treatment",
			Kind: GroupContainer, Namespace: NamespaceTreatment,
			Subgroups: []Subgroup{
				{
					Title: "Malaria", ScoreKey: "tx_malaria", Kind: KindFlatSkills,
					Relevance: txRelevance,
					Items:     []SkillItem{{Key: "tx_act"}, {Key: "tx_first_dose"}},
				},
			},
		},
	}
}

func testKPIs() []KPI {
	return []KPI{{
		Key: "kpi_malariaClassification",
		Compute: func(e *Encounter, _ Tally) Score {
			return Presence(malariaCase(e), e.Worker(DomainFever).Has(labelMalaria))
		},
	}}
}

func newTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(testGroups(Computed("malariaCase", malariaCase)), testKPIs())
	require.NoError(t, err)
	return s
}

func diagnosticsWith(r *Result, code DiagnosticCode) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func assessment(kv ...string) *Builder {
	b := NewBuilder()
	for i := 0; i+1 < len(kv); i += 2 {
		b.SetText(NamespaceAssessment, kv[i], kv[i+1])
	}
	return b
}

func TestFlatSubgroupExcludesNotApplicable(t *testing.T) {
	s := newTestSchema(t)
	a := assessment("skill_weight", Yes, "skill_temp", No, "skill_height", NA).Build()

	r := Evaluate(s, a)
	assert.Equal(t, Score{Score: 1, MaxScore: 2}, r.Scores["vitals"])
	assert.Empty(t, diagnosticsWith(r, CodeInvalidAnswer))
}

func TestNotApplicableEqualsUnanswered(t *testing.T) {
	s := newTestSchema(t)
	withNA := Evaluate(s, assessment("skill_weight", Yes, "skill_height", NA).Build())
	missing := Evaluate(s, assessment("skill_weight", Yes).Build())
	assert.True(t, withNA.Payload().Equal(missing.Payload()))
}

func TestSymptomCascadeGating(t *testing.T) {
	s := newTestSchema(t)
	tests := []struct {
		name    string
		answers []string
		want    Score
	}{
		{"not asked", nil, Score{}},
		{"asked no", []string{"skill_ask_fever", No, "skill_check_rdt", Yes}, Score{Score: 0, MaxScore: 1}},
		{"not confirmed", []string{
			"skill_ask_fever", Yes, "supervisor_confirms_fever", No, "skill_check_rdt", Yes,
		}, Score{Score: 1, MaxScore: 1}},
		{"confirmed", []string{
			"skill_ask_fever", Yes, "supervisor_confirms_fever", Yes,
			"skill_check_rdt", Yes, DomainFever.ClassifyKey(), No,
		}, Score{Score: 2, MaxScore: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(s, assessment(tt.answers...).Build())
			assert.Equal(t, tt.want, r.Scores["symptom_fever"])
			assert.Equal(t, tt.want, r.Scores["symptoms"])
		})
	}
}

func TestDecisionGroupAlwaysCounts(t *testing.T) {
	s := newTestSchema(t)

	r := Evaluate(s, NewBuilder().SetText(NamespaceRoot, "decisionMatches", Yes).Build())
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.Scores["finalDecision"])

	r = Evaluate(s, NewBuilder().Build())
	assert.Equal(t, Score{Score: 0, MaxScore: 1}, r.Scores["finalDecision"])
}

func TestOverallIsSumOfGroups(t *testing.T) {
	s := newTestSchema(t)
	a := assessment(
		"skill_weight", Yes, "skill_temp", Yes, "skill_imm_card", No, "skill_imm_catchup", Yes,
		DomainFever.ClassifyKey(), No,
	).
		Set(NamespaceAssessment, DomainFever.SupervisorKey(), Labels(labelMalaria)).
		SetText(NamespaceRoot, "decisionMatches", Yes).
		SetText(NamespaceTreatment, "tx_act", Yes).
		SetText(NamespaceTreatment, "tx_first_dose", No).
		Build()

	r := Evaluate(s, a)
	sum := r.Scores["assessment"].Add(r.Scores["finalDecision"]).Add(r.Scores["treatment"])
	assert.Equal(t, sum, r.Overall)
	assert.Equal(t, r.Overall, r.Scores[OverallKey])
	assert.Equal(t, Score{Score: 1, MaxScore: 2}, r.Scores["tx_malaria"])
	assert.Equal(t, Score{Score: 1, MaxScore: 2}, r.Scores["immunization"])
	assert.Equal(t, Score{Score: 3, MaxScore: 4}, r.Scores["assessment"])
}

func TestScoresAreBounded(t *testing.T) {
	s := newTestSchema(t)
	a := assessment("skill_weight", Yes, "skill_temp", No, "skill_ask_fever", Yes,
		"supervisor_confirms_fever", Yes, "skill_check_rdt", "maybe").Build()

	r := Evaluate(s, a)
	for k, sc := range r.Scores {
		assert.GreaterOrEqual(t, sc.Score, 0, k)
		assert.LessOrEqual(t, sc.Score, sc.MaxScore, k)
	}
	for k, sc := range r.KPIs {
		assert.GreaterOrEqual(t, sc.Score, 0, k)
		assert.LessOrEqual(t, sc.Score, sc.MaxScore, k)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	s := newTestSchema(t)
	a := assessment("skill_weight", Yes, "skill_ask_fever", Yes, DomainFever.ClassifyKey(), Yes).
		Set(NamespaceAssessment, DomainFever.WorkerKey(), Labels(labelMalaria)).
		SetText(NamespaceTreatment, "tx_act", Yes).
		Build()

	first := Evaluate(s, a).Payload()
	second := Evaluate(s, a).Payload()
	assert.True(t, first.Equal(second))
}

func TestInvalidAnswerIsReportedAndExcluded(t *testing.T) {
	s := newTestSchema(t)
	r := Evaluate(s, assessment("skill_weight", "maybe", "skill_temp", Yes).Build())

	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.Scores["vitals"])
	invalid := diagnosticsWith(r, CodeInvalidAnswer)
	require.Len(t, invalid, 1)
	assert.Equal(t, "skill_weight", invalid[0].Node)
	assert.False(t, r.Degraded())
}

func TestUnresolvedVariableWarns(t *testing.T) {
	s := newTestSchema(t)
	r := Evaluate(s, assessment("skill_imm_catchup", Yes).Build())

	assert.Equal(t, Score{}, r.Scores["immunization"])
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, CodeUnresolvedVariable, r.Diagnostics[0].Code)
	assert.Equal(t, SeverityWarning, r.Diagnostics[0].Severity)
	assert.Empty(t, r.Skipped)
}

func TestPanickingPredicateDegradesNode(t *testing.T) {
	boom := Computed("boom", func(*Encounter) bool { panic("nil classification") })
	s, err := NewSchema(testGroups(boom), testKPIs())
	require.NoError(t, err)

	a := assessment("skill_weight", Yes).
		SetText(NamespaceTreatment, "tx_act", Yes).
		Build()

	var r *Result
	require.NotPanics(t, func() { r = Evaluate(s, a) })
	assert.Equal(t, Score{}, r.Scores["tx_malaria"])
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.Scores["vitals"])
	assert.Equal(t, []string{"tx_malaria"}, r.Skipped)
	faults := diagnosticsWith(r, CodePredicateFault)
	require.Len(t, faults, 1)
	assert.Equal(t, "tx_malaria", faults[0].Node)
	assert.True(t, r.Degraded())
}

func TestFaultyKPIIsNotApplicable(t *testing.T) {
	kpis := []KPI{
		{Key: "kpi_panics", Compute: func(*Encounter, Tally) Score { panic("bad") }},
		{Key: "kpi_outOfBounds", Compute: func(*Encounter, Tally) Score { return Score{Score: 2, MaxScore: 1} }},
		{Key: "kpi_ok", Compute: func(*Encounter, Tally) Score { return Flag(true) }},
	}
	s, err := NewSchema(testGroups(Always()), kpis)
	require.NoError(t, err)

	r := Evaluate(s, NewBuilder().Build())
	assert.Equal(t, Score{}, r.KPIs["kpi_panics"])
	assert.Equal(t, Score{}, r.KPIs["kpi_outOfBounds"])
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.KPIs["kpi_ok"])
	assert.Equal(t, []string{"kpi_outOfBounds", "kpi_panics"}, r.Skipped)
}

func TestHandsOnKPIs(t *testing.T) {
	s := newTestSchema(t)
	a := assessment("skill_weight", Yes, "skill_temp", No,
		"skill_ask_fever", Yes, "supervisor_confirms_fever", Yes, "skill_check_rdt", Yes).Build()

	r := Evaluate(s, a)
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.KPIs[ProcedureKey("weight")])
	assert.Equal(t, Score{Score: 0, MaxScore: 1}, r.KPIs[ProcedureKey("temperature")])
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.KPIs[ProcedureKey("rapidTest")])
	assert.Equal(t, Score{Score: 2, MaxScore: 3}, r.KPIs[HandsOnKey])
}

func TestHandsOnIgnoresUnconfirmedSteps(t *testing.T) {
	s := newTestSchema(t)
	a := assessment("skill_ask_fever", Yes, "supervisor_confirms_fever", No, "skill_check_rdt", Yes).Build()

	r := Evaluate(s, a)
	assert.Equal(t, Score{}, r.KPIs[ProcedureKey("rapidTest")])
}

func TestEffectiveClassificationResolvedOncePerPass(t *testing.T) {
	s := newTestSchema(t)
	a := assessment(DomainFever.ClassifyKey(), No).
		Set(NamespaceAssessment, DomainFever.WorkerKey(), Labels()).
		Set(NamespaceAssessment, DomainFever.SupervisorKey(), Labels(labelMalaria)).
		SetText(NamespaceTreatment, "tx_act", Yes).
		Build()

	p := NewPass(s, a)
	r := p.Result()

	// The treatment gate and the KPI both read the fever classification.
	assert.Equal(t, 1, p.enc.res.misses)
	assert.Equal(t, Score{Score: 1, MaxScore: 1}, r.Scores["tx_malaria"])
	assert.Equal(t, Score{Score: 0, MaxScore: 1}, r.KPIs["kpi_malariaClassification"])
}

func TestEffectiveClassification(t *testing.T) {
	worker := Labels(labelMalaria, "fever")
	supervisor := Labels("fever")

	tests := []struct {
		name     string
		classify string
		want     []string
	}{
		{"worker correct", Yes, []string{"fever", labelMalaria}},
		{"worker wrong", No, []string{"fever"}},
		{"not assessed", "", []string{"fever"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder().
				Set(NamespaceAssessment, DomainFever.WorkerKey(), worker).
				Set(NamespaceAssessment, DomainFever.SupervisorKey(), supervisor)
			if tt.classify != "" {
				b.SetText(NamespaceAssessment, DomainFever.ClassifyKey(), tt.classify)
			}
			c := ResolveEffective(DomainFever, b.Build())
			assert.Equal(t, tt.want, c.Labels())
		})
	}
}

func TestSingleSelectClassification(t *testing.T) {
	a := NewBuilder().
		SetText(NamespaceAssessment, DomainCough.ClassifyKey(), Yes).
		SetText(NamespaceAssessment, DomainCough.WorkerKey(), "pneumonia").
		Build()

	c := ResolveEffective(DomainCough, a)
	l, ok := c.Label()
	require.True(t, ok)
	assert.Equal(t, "pneumonia", l)

	c = ResolveEffective(DomainEar, a)
	assert.False(t, c.Defined())
}

func TestSingleSelectWithSeveralLabelsIsUndefined(t *testing.T) {
	a := NewBuilder().
		SetText(NamespaceAssessment, DomainCough.ClassifyKey(), Yes).
		Set(NamespaceAssessment, DomainCough.WorkerKey(), Labels("pneumonia", "cough or cold")).
		Build()

	p := NewPass(newTestSchema(t), a)
	assert.False(t, p.Encounter().Effective(DomainCough).Defined())
	assert.False(t, p.Encounter().Worker(DomainCough).Defined())

	invalid := diagnosticsWith(p.Result(), CodeInvalidAnswer)
	require.Len(t, invalid, 1)
	assert.Equal(t, DomainCough.WorkerKey(), invalid[0].Node)
	assert.Empty(t, p.Result().Skipped)

	assert.False(t, ResolveEffective(DomainCough, a).Defined())
}

func TestResolutionOrder(t *testing.T) {
	a := NewBuilder().
		SetText(NamespaceTreatment, "x", "treatment").
		SetText(NamespaceAssessment, "x", "assessment").
		SetText(NamespaceRoot, "x", "root").
		SetText(NamespaceTreatment, "y", "treatment").
		SetText(NamespaceAssessment, "y", "assessment").
		SetText(NamespaceTreatment, "z", "treatment").
		Build()

	for key, want := range map[string]Namespace{"x": NamespaceRoot, "y": NamespaceAssessment, "z": NamespaceTreatment} {
		v, ns, ok := a.Resolve(key)
		require.True(t, ok, key)
		assert.Equal(t, want, ns, key)
		assert.Equal(t, string(want), v.String(), key)
	}
	_, _, ok := a.Resolve("missing")
	assert.False(t, ok)
	assert.Equal(t, []Namespace{NamespaceRoot, NamespaceAssessment, NamespaceTreatment}, Namespaces())
}

func TestIsRelevant(t *testing.T) {
	a := NewBuilder().
		SetText(NamespaceRoot, "finalDecision", "referral").
		Set(NamespaceAssessment, DomainDiarrhea.SupervisorKey(), Labels("dysentery", "some dehydration")).
		Build()

	ok, diags := IsRelevant("n", Equals("finalDecision", "referral"), a)
	assert.True(t, ok)
	assert.Empty(t, diags)

	ok, _ = IsRelevant("n", Equals(DomainDiarrhea.SupervisorKey(), "dysentery"), a)
	assert.True(t, ok, "equality against a label set is membership")

	ok, diags = IsRelevant("n", Equals("", "x"), a)
	assert.False(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeMalformedRelevance, diags[0].Code)

	ok, diags = IsRelevant("n", Always(), nil)
	assert.True(t, ok)
	assert.Empty(t, diags)
}

func TestSchemaRejectsDuplicateScoreKey(t *testing.T) {
	groups := testGroups(Always())
	groups[2].Subgroups[0].ScoreKey = "vitals"

	_, err := NewSchema(groups, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateScoreKey))
}

func TestSchemaRejectsReservedKey(t *testing.T) {
	groups := testGroups(Always())
	groups[0].ScoreKey = OverallKey

	_, err := NewSchema(groups, nil)
	assert.ErrorIs(t, err, ErrDuplicateScoreKey)
}

func TestSchemaRejectsUnknownVariable(t *testing.T) {
	groups := testGroups(Equals("notDeclared", Yes))

	_, err := NewSchema(groups, nil)
	assert.ErrorIs(t, err, ErrUnknownVariable)

	s, err := NewSchema(groups, nil, "notDeclared")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSchemaRejectsDuplicateItem(t *testing.T) {
	groups := testGroups(Always())
	groups[0].Subgroups[2].Items = append(groups[0].Subgroups[2].Items, SkillItem{Key: "skill_weight"})

	_, err := NewSchema(groups, nil)
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestSchemaReportsEveryProblem(t *testing.T) {
	groups := testGroups(Equals("notDeclared", Yes))
	groups[2].Subgroups[0].ScoreKey = "vitals"
	groups[1].Kind = "weird"

	_, err := NewSchema(groups, []KPI{{Key: "kpi_empty"}})
	assert.ErrorIs(t, err, ErrUnknownVariable)
	assert.ErrorIs(t, err, ErrDuplicateScoreKey)
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestSchemaProcedures(t *testing.T) {
	s := newTestSchema(t)
	assert.Equal(t, []string{"rapidTest", "temperature", "weight"}, s.Procedures())
	assert.Equal(t, "kpi_handsOn_weight", ProcedureKey("weight"))
}

func TestWithLoggerLogsDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	s := newTestSchema(t)

	Evaluate(s, assessment("skill_weight", "sometimes").Build(), WithLogger(logger))
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), string(CodeInvalidAnswer))
	assert.Contains(t, buf.String(), "skill_weight")
}

func TestPayloadRoundTrip(t *testing.T) {
	s := newTestSchema(t)
	r := Evaluate(s, assessment("skill_weight", Yes, "skill_temp", No).Build())

	p := r.Payload()
	for k, want := range r.Scores {
		got, ok := p.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, want, got, k)
	}
	assert.Equal(t, 1, p["vitals_score"])
	assert.Equal(t, 2, p["vitals_maxScore"])
	assert.Len(t, p.Keys(), len(r.Scores)+len(r.KPIs))

	_, ok := p.Get("nothing")
	assert.False(t, ok)
}

func TestAnswersRawRoundTrip(t *testing.T) {
	a := NewBuilder().
		SetText(NamespaceRoot, "finalDecision", "referral").
		Set(NamespaceAssessment, DomainFever.SupervisorKey(), Labels("malaria", "fever", "malaria")).
		Set(NamespaceAssessment, "temperature", Number(38.5)).
		Build()

	back, err := AnswersFromRaw(a.Raw())
	require.NoError(t, err)
	assert.Equal(t, a.Len(), back.Len())

	v, ok := back.Lookup(NamespaceAssessment, DomainFever.SupervisorKey())
	require.True(t, ok)
	assert.Equal(t, []string{"fever", "malaria"}, v.LabelSet())

	f, ok := back.Lookup(NamespaceAssessment, "temperature")
	require.True(t, ok)
	n, isNum := f.Float()
	assert.True(t, isNum)
	assert.Equal(t, 38.5, n)

	_, err = AnswersFromRaw(map[string]map[string]interface{}{"elsewhere": {"a": "b"}})
	assert.Error(t, err)
}

func TestValueMatches(t *testing.T) {
	assert.True(t, Text(Yes).Matches(Yes))
	assert.False(t, Text(Yes).Matches(No))
	assert.True(t, Labels("a", "b").Matches("b"))
	assert.False(t, Labels().Matches(""))
	assert.True(t, Number(3).Matches("3"))
	assert.False(t, Number(3).Matches("three"))
}

func TestBuilderIsolation(t *testing.T) {
	b := NewBuilder().SetText(NamespaceRoot, "k", "v1")
	a := b.Build()
	b.SetText(NamespaceRoot, "k", "v2")

	v, _ := a.Lookup(NamespaceRoot, "k")
	assert.Equal(t, "v1", v.String())
}
