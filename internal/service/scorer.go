package service

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"imcitrack/internal/checklist"
	"imcitrack/internal/model"
	"imcitrack/internal/scoring"
)

// Scorer is the single entry point into the scoring engine. Live submission,
// bulk import, rescoring and the offline CLI all go through it.
type Scorer struct {
	checklist  *checklist.Checklist
	normalizer *checklist.Normalizer
	logger     zerolog.Logger
}

// NewScorer creates a scorer for the given checklist
func NewScorer(cl *checklist.Checklist, logger zerolog.Logger) *Scorer {
	return &Scorer{
		checklist:  cl,
		normalizer: checklist.NewNormalizer(cl),
		logger:     logger,
	}
}

// Checklist returns the loaded checklist
func (s *Scorer) Checklist() *checklist.Checklist {
	return s.checklist
}

// Normalize standardizes submitted answers against the checklist: binary
// answers are folded, classifications and the final decision must match the
// closed catalog. Live and imported answers both pass through it.
func (s *Scorer) Normalize(raw model.RawAnswers) (*scoring.Answers, error) {
	return s.normalizer.Normalize(checklist.Row(raw))
}

// Score runs one scoring pass.
func (s *Scorer) Score(ref string, a *scoring.Answers) *scoring.Result {
	l := s.logger.With().Str("observation", ref).Logger()
	return scoring.Evaluate(s.checklist.Schema, a, scoring.WithLogger(l))
}

// Apply scores a and stores answers, payload and diagnostics on obs.
func (s *Scorer) Apply(obs *model.Observation, a *scoring.Answers, now time.Time) *scoring.Result {
	r := s.Score(obs.ID, a)
	obs.Answers = a.Raw()
	obs.ChecklistVersion = s.checklist.Version
	obs.Payload = r.Payload()
	obs.Overall = r.Overall
	obs.Diagnostics = r.Diagnostics
	obs.Skipped = r.Skipped
	obs.ScoredAt = now
	return r
}

// Percent is the display percentage round(100*score/maxScore). ok is false
// when nothing was applicable.
func Percent(s scoring.Score) (int, bool) {
	if s.MaxScore == 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(s.Score) / float64(s.MaxScore))), true
}

func ratio(s scoring.Score) (float64, bool) {
	if s.MaxScore == 0 {
		return 0, false
	}
	return 100 * float64(s.Score) / float64(s.MaxScore), true
}
