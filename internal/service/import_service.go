package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imcitrack/internal/model"
	"imcitrack/internal/repository"
)

// ImportService scores batches of rows produced by an upstream spreadsheet
// parser with the same engine as live submission
type ImportService struct {
	scorer       *Scorer
	repo         repository.ObservationRepo
	observations *ObservationService
	logger       zerolog.Logger
	now          func() time.Time
}

// NewImportService creates a new import service
func NewImportService(
	scorer *Scorer,
	repo repository.ObservationRepo,
	observations *ObservationService,
	logger zerolog.Logger,
) *ImportService {
	return &ImportService{
		scorer:       scorer,
		repo:         repo,
		observations: observations,
		logger:       logger,
		now:          time.Now,
	}
}

// Import validates, scores and stores every acceptable row. Rejected rows are
// reported and never stored.
func (s *ImportService) Import(ctx context.Context, batch *model.ImportBatch) (*model.ImportReport, error) {
	return s.run(ctx, batch, false)
}

// DryRun validates and scores without storing anything.
func (s *ImportService) DryRun(ctx context.Context, batch *model.ImportBatch) (*model.ImportReport, error) {
	return s.run(ctx, batch, true)
}

func (s *ImportService) run(ctx context.Context, batch *model.ImportBatch, dryRun bool) (*model.ImportReport, error) {
	if batch == nil || len(batch.Rows) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}

	report := &model.ImportReport{
		BatchID: uuid.NewString(),
		DryRun:  dryRun,
		Rows:    make([]model.ImportRowResult, 0, len(batch.Rows)),
	}
	now := s.now()
	var accepted []*model.Observation

	for i, row := range batch.Rows {
		res := model.ImportRowResult{Index: i, Ref: row.Ref}
		obs, err := s.scoreRow(report.BatchID, row, now, &res)
		if err != nil {
			res.Status = model.RowRejected
			res.Errors = splitErrors(err)
			report.Rejected++
			report.Rows = append(report.Rows, res)
			s.logger.Debug().Int("row", i).Str("ref", row.Ref).Err(err).Msg("import row rejected")
			continue
		}
		res.Status = model.RowAccepted
		if !dryRun {
			res.ObservationID = obs.ID
		}
		report.Accepted++
		report.Rows = append(report.Rows, res)
		accepted = append(accepted, obs)
	}

	s.logger.Info().
		Str("batch", report.BatchID).
		Bool("dryRun", dryRun).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Msg("import batch scored")

	if dryRun || len(accepted) == 0 {
		return report, nil
	}
	if err := s.repo.CreateMany(ctx, accepted); err != nil {
		return nil, fmt.Errorf("store imported observations: %w", err)
	}
	for _, obs := range accepted {
		s.observations.published(ctx, obs)
	}
	return report, nil
}

func (s *ImportService) scoreRow(batchID string, row model.ImportRow, now time.Time, res *model.ImportRowResult) (*model.Observation, error) {
	if err := requireIDs(row.CourseID, row.ParticipantID, row.SupervisorID); err != nil {
		return nil, err
	}
	a, err := s.scorer.Normalize(row.Answers)
	if err != nil {
		return nil, err
	}

	obs := &model.Observation{
		ID:            uuid.NewString(),
		CourseID:      row.CourseID,
		ParticipantID: row.ParticipantID,
		SupervisorID:  row.SupervisorID,
		FacilityID:    row.FacilityID,
		ObservedAt:    now,
		Source:        model.SourceImport,
		ImportBatchID: batchID,
		CreatedAt:     now,
	}
	if row.ObservedAt != nil {
		obs.ObservedAt = *row.ObservedAt
	}
	r := s.scorer.Apply(obs, a, now)
	overall := r.Overall
	res.Overall = &overall
	res.Diagnostics = r.Diagnostics
	return obs, nil
}

// splitErrors flattens joined errors into one message per problem.
func splitErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}
