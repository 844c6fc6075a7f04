package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"imcitrack/internal/app"
	"imcitrack/internal/checklist"
	"imcitrack/internal/config"
	"imcitrack/internal/model"
)

// demoObservations returns a small course with one referral, one malaria case
// and one home-care visit.
func demoObservations(courseID string, start time.Time) []*model.SubmitRequest {
	at := func(h int) *time.Time {
		t := start.Add(time.Duration(h) * time.Hour)
		return &t
	}
	return []*model.SubmitRequest{
		{
			CourseID: courseID, ParticipantID: "hw-amina", SupervisorID: "sup-demo", ObservedAt: at(0),
			Answers: model.RawAnswers{
				"root": {checklist.KeyFinalDecision: checklist.DecisionReferral, checklist.KeyDecisionMatches: "yes"},
				"assessment": {
					"skill_ds_drink": "yes", "skill_ds_vomit": "yes", "skill_ds_convulsions": "no",
					"skill_weight": "yes", "skill_temp": "yes", "skill_height": "no",
					"skill_ask_cough": "yes", "supervisor_confirms_cough": "yes",
					"skill_check_rr": "yes", "skill_classify_cough": "yes",
					"worker_cough_classification": checklist.LabelSeverePneumonia,
				},
				"treatment": {"tx_ref_first_dose": "yes", "tx_ref_hypoglycemia": "no", "tx_ref_note": "yes"},
			},
		},
		{
			CourseID: courseID, ParticipantID: "hw-joseph", SupervisorID: "sup-demo", ObservedAt: at(2),
			Answers: model.RawAnswers{
				"root": {checklist.KeyFinalDecision: checklist.DecisionOutpatient, checklist.KeyDecisionMatches: "yes"},
				"assessment": {
					"skill_weight": "yes", "skill_temp": "yes",
					"skill_ask_fever": "yes", "supervisor_confirms_fever": "yes",
					"skill_check_rdt": "yes", "skill_classify_fever": "no",
					"worker_fever_classification":             []interface{}{checklist.LabelFeverNoMalaria},
					"supervisor_correct_fever_classification": []interface{}{checklist.LabelMalaria},
				},
				"treatment": {
					"tx_mal_act": "yes", "tx_mal_first_dose": "no", "tx_mal_paracetamol": "yes",
					"tx_fu_when_return": "yes", "tx_fu_followup_day": "no",
				},
			},
		},
		{
			CourseID: courseID, ParticipantID: "hw-grace", SupervisorID: "sup-demo", ObservedAt: at(4),
			Answers: model.RawAnswers{
				"root": {checklist.KeyFinalDecision: checklist.DecisionHome, checklist.KeyDecisionMatches: "no"},
				"assessment": {
					"skill_weight": "yes", "skill_temp": "na", "skill_height": "yes",
					"skill_imm_card": "no", "skill_imm_catchup": "yes", "skill_imm_vita": "yes",
				},
			},
		},
	}
}

func main() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Submit demo observations through the scoring service",
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, _ := cmd.Flags().GetString("course")
			return seed(courseID)
		},
	}
	cmd.Flags().String("course", "demo-course", "Course to seed")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func seed(courseID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	start := time.Now().Add(-24 * time.Hour).Truncate(time.Hour)
	for _, req := range demoObservations(courseID, start) {
		obs, err := a.Observations.Submit(ctx, req)
		if err != nil {
			return fmt.Errorf("seed %s: %w", req.ParticipantID, err)
		}
		logger.Info().
			Str("observation", obs.ID).
			Str("participant", obs.ParticipantID).
			Stringer("overall", obs.Overall).
			Msg("seeded")
	}

	logger.Info().Str("course", courseID).Msg("course seeded")
	return nil
}
