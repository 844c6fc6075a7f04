package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imcitrack/internal/cache"
	"imcitrack/internal/model"
	"imcitrack/internal/repository"
	"imcitrack/internal/scoring"
)

// ObservationService handles drafts, live submission and rescoring
type ObservationService struct {
	scorer      *Scorer
	repo        repository.ObservationRepo
	drafts      cache.DraftCache
	ranking     cache.RankingCache
	summaries   cache.SummaryCache
	broadcaster Broadcaster
	logger      zerolog.Logger
	now         func() time.Time
}

// NewObservationService creates a new observation service
func NewObservationService(
	scorer *Scorer,
	repo repository.ObservationRepo,
	drafts cache.DraftCache,
	ranking cache.RankingCache,
	summaries cache.SummaryCache,
	logger zerolog.Logger,
) *ObservationService {
	return &ObservationService{
		scorer:    scorer,
		repo:      repo,
		drafts:    drafts,
		ranking:   ranking,
		summaries: summaries,
		logger:    logger,
		now:       time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *ObservationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SaveDraft stores an in-progress observation. Drafts are not scored.
func (s *ObservationService) SaveDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error) {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if _, err := scoring.AnswersFromRaw(draft.Answers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	draft.UpdatedAt = s.now()
	if err := s.drafts.Set(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// GetDraft returns a stored draft
func (s *ObservationService) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	draft, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if draft == nil {
		return nil, ErrNotFound
	}
	return draft, nil
}

func requireIDs(courseID, participantID, supervisorID string) error {
	var missing []string
	if courseID == "" {
		missing = append(missing, "courseId")
	}
	if participantID == "" {
		missing = append(missing, "participantId")
	}
	if supervisorID == "" {
		missing = append(missing, "supervisorId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Submit scores a completed observation and stores it. When the request
// names a draft without answers, the draft's answers are used.
func (s *ObservationService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.Observation, error) {
	answers := req.Answers
	if answers == nil && req.DraftID != "" {
		draft, err := s.GetDraft(ctx, req.DraftID)
		if err != nil {
			return nil, err
		}
		answers = draft.Answers
		if req.CourseID == "" {
			req.CourseID = draft.CourseID
		}
		if req.ParticipantID == "" {
			req.ParticipantID = draft.ParticipantID
		}
		if req.SupervisorID == "" {
			req.SupervisorID = draft.SupervisorID
		}
	}
	if err := requireIDs(req.CourseID, req.ParticipantID, req.SupervisorID); err != nil {
		return nil, err
	}
	a, err := s.scorer.Normalize(answers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now()
	obs := &model.Observation{
		ID:            req.ID,
		CourseID:      req.CourseID,
		ParticipantID: req.ParticipantID,
		SupervisorID:  req.SupervisorID,
		FacilityID:    req.FacilityID,
		ObservedAt:    now,
		Source:        model.SourceLive,
		CreatedAt:     now,
	}
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if req.ObservedAt != nil {
		obs.ObservedAt = *req.ObservedAt
	}

	r := s.scorer.Apply(obs, a, now)
	if err := s.repo.Create(ctx, obs); err != nil {
		return nil, fmt.Errorf("store observation: %w", err)
	}

	if req.DraftID != "" {
		if err := s.drafts.Delete(ctx, req.DraftID); err != nil {
			s.logger.Warn().Err(err).Str("draft", req.DraftID).Msg("failed to remove submitted draft")
		}
	}
	s.logger.Info().
		Str("observation", obs.ID).
		Str("course", obs.CourseID).
		Stringer("overall", r.Overall).
		Int("diagnostics", len(r.Diagnostics)).
		Msg("observation scored")

	s.published(ctx, obs)
	return obs, nil
}

// published updates the derived views after an observation was stored.
// Failures here are logged: the observation itself is already persisted.
func (s *ObservationService) published(ctx context.Context, obs *model.Observation) {
	log := s.logger.With().Str("course", obs.CourseID).Str("participant", obs.ParticipantID).Logger()
	if pct, ok := ratio(obs.Overall); ok {
		recorded, err := s.ranking.Record(ctx, obs.CourseID, obs.ParticipantID, pct, obs.ObservedAt)
		if err != nil {
			log.Warn().Err(err).Msg("failed to update ranking")
		} else if !recorded {
			log.Debug().Str("observation", obs.ID).Msg("ranking kept a later observation")
		}
	}
	if err := s.summaries.Invalidate(ctx, obs.CourseID); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate course summary")
	}
	if s.broadcaster == nil {
		return
	}
	event := model.ScoredEvent{
		ObservationID: obs.ID,
		CourseID:      obs.CourseID,
		ParticipantID: obs.ParticipantID,
		Overall:       obs.Overall,
		Degraded:      len(obs.Skipped) > 0,
		ScoredAt:      obs.ScoredAt,
	}
	if rank, err := s.ranking.Rank(ctx, obs.CourseID, obs.ParticipantID); err != nil {
		log.Warn().Err(err).Msg("failed to read rank")
	} else if rank > 0 {
		event.Rank = rank
	}
	s.broadcaster.BroadcastToCourse(obs.CourseID, model.EventObservationScored, event)
}

// Get returns a stored observation
func (s *ObservationService) Get(ctx context.Context, id string) (*model.Observation, error) {
	obs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	if obs == nil {
		return nil, ErrNotFound
	}
	return obs, nil
}

// ListByCourse returns every observation of a course
func (s *ObservationService) ListByCourse(ctx context.Context, courseID string) ([]*model.Observation, error) {
	list, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	if list == nil {
		list = []*model.Observation{}
	}
	return list, nil
}

// Rescore replays the engine over the stored answers. The stored payload is
// replaced only when the new one differs; changed reports whether it did.
func (s *ObservationService) Rescore(ctx context.Context, id string) (obs *model.Observation, changed bool, err error) {
	obs, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	a, err := scoring.AnswersFromRaw(obs.Answers)
	if err != nil {
		return nil, false, fmt.Errorf("stored answers of %s: %w", id, err)
	}

	prev := *obs
	now := s.now()
	s.scorer.Apply(obs, a, now)
	if prev.Payload.Equal(obs.Payload) && prev.ChecklistVersion == obs.ChecklistVersion {
		return &prev, false, nil
	}

	obs.RescoreAt = &now
	if err := s.repo.UpdateScore(ctx, obs); err != nil {
		return nil, false, fmt.Errorf("update score: %w", err)
	}
	s.logger.Info().Str("observation", id).Msg("observation rescored with a changed payload")
	s.published(ctx, obs)
	return obs, true, nil
}
