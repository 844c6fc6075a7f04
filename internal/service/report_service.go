package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imcitrack/internal/cache"
	"imcitrack/internal/model"
	"imcitrack/internal/repository"
	"imcitrack/internal/scoring"
)

// rankingSize bounds the ranking attached to a course summary.
const rankingSize = 100

// ReportService builds observation reports and course dashboards from the
// stored payloads. It never rescores.
type ReportService struct {
	repo      repository.ObservationRepo
	snapshots repository.SummaryRepo
	cache     cache.SummaryCache
	ranking   cache.RankingCache
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	repo repository.ObservationRepo,
	snapshots repository.SummaryRepo,
	summaryCache cache.SummaryCache,
	ranking cache.RankingCache,
	logger zerolog.Logger,
) *ReportService {
	return &ReportService{
		repo:      repo,
		snapshots: snapshots,
		cache:     summaryCache,
		ranking:   ranking,
		logger:    logger,
		now:       time.Now,
	}
}

func reportRow(key string, s scoring.Score) model.ReportRow {
	row := model.ReportRow{Key: key, Score: s.Score, MaxScore: s.MaxScore, Display: model.NotApplicable}
	if pct, ok := Percent(s); ok {
		row.Percent = &pct
		row.Display = fmt.Sprintf("%d%%", pct)
	}
	return row
}

// ObservationReport lists every exported node of a stored observation.
func (s *ReportService) ObservationReport(ctx context.Context, id string) (*model.ObservationReport, error) {
	obs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get observation: %w", err)
	}
	if obs == nil {
		return nil, ErrNotFound
	}

	rep := &model.ObservationReport{
		ObservationID: obs.ID,
		CourseID:      obs.CourseID,
		ParticipantID: obs.ParticipantID,
		Scores:        []model.ReportRow{},
		KPIs:          []model.ReportRow{},
		Diagnostics:   len(obs.Diagnostics),
	}
	for _, key := range obs.Payload.Keys() {
		sc, _ := obs.Payload.Get(key)
		row := reportRow(key, sc)
		switch {
		case key == scoring.OverallKey:
			rep.Overall = row
		case strings.HasPrefix(key, "kpi_"):
			rep.KPIs = append(rep.KPIs, row)
		default:
			rep.Scores = append(rep.Scores, row)
		}
	}
	return rep, nil
}

// CourseSummary returns the dashboard roll-up of a course. Summaries are
// cached until the next observation of the course is stored; a summary that
// raced with a store is returned but not cached.
func (s *ReportService) CourseSummary(ctx context.Context, courseID string) (*model.CourseSummary, error) {
	if cached, err := s.cache.Get(ctx, courseID); err != nil {
		s.logger.Warn().Err(err).Str("course", courseID).Msg("summary cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	version, verr := s.cache.Version(ctx, courseID)
	if verr != nil {
		s.logger.Warn().Err(verr).Str("course", courseID).Msg("summary version read failed, not caching")
	}

	list, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		// Fall back to the last stored snapshot.
		if snap, serr := s.snapshots.GetSnapshot(ctx, courseID); serr == nil && snap != nil {
			s.logger.Warn().Err(err).Str("course", courseID).Msg("serving summary snapshot")
			return snap, nil
		}
		return nil, fmt.Errorf("list observations: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}

	summary := Summarize(courseID, list)
	summary.GeneratedAt = s.now()
	if top, err := s.ranking.Top(ctx, courseID, rankingSize); err != nil {
		s.logger.Warn().Err(err).Str("course", courseID).Msg("ranking read failed, using stored observations")
	} else if len(top) > 0 {
		summary.Ranking = top
	}

	if verr == nil {
		if err := s.cache.Set(ctx, summary, version); errors.Is(err, cache.ErrStaleSummary) {
			s.logger.Debug().Str("course", courseID).Msg("course changed while summarizing, not caching")
		} else if err != nil {
			s.logger.Warn().Err(err).Str("course", courseID).Msg("summary cache write failed")
		}
	}
	if err := s.snapshots.SaveSnapshot(ctx, summary); err != nil {
		s.logger.Warn().Err(err).Str("course", courseID).Msg("summary snapshot failed")
	}
	return summary, nil
}

// Summarize aggregates stored payloads. Mean percentages only average
// observations where the key was applicable; an observation with maxScore 0
// neither counts as 0% nor as 100%.
func Summarize(courseID string, list []*model.Observation) *model.CourseSummary {
	type acc struct {
		total   scoring.Score
		pctSum  float64
		applied int
	}
	stats := make(map[string]*acc)
	latest := make(map[string]*model.Observation)
	summary := &model.CourseSummary{CourseID: courseID, Observations: len(list)}

	for _, obs := range list {
		if len(obs.Skipped) > 0 {
			summary.Degraded++
		}
		for _, key := range obs.Payload.Keys() {
			sc, _ := obs.Payload.Get(key)
			a, ok := stats[key]
			if !ok {
				a = &acc{}
				stats[key] = a
			}
			a.total = a.total.Add(sc)
			if pct, ok := ratio(sc); ok {
				a.pctSum += pct
				a.applied++
			}
		}
		if prev, ok := latest[obs.ParticipantID]; !ok || obs.ObservedAt.After(prev.ObservedAt) {
			latest[obs.ParticipantID] = obs
		}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	summary.Keys = make([]model.KeyStat, 0, len(keys))
	for _, k := range keys {
		a := stats[k]
		ks := model.KeyStat{Key: k, Score: a.total.Score, MaxScore: a.total.MaxScore, Applicable: a.applied}
		if a.applied > 0 {
			mean := a.pctSum / float64(a.applied)
			ks.MeanPercent = &mean
		}
		summary.Keys = append(summary.Keys, ks)
	}

	summary.Ranking = []model.RankingEntry{}
	for pid, obs := range latest {
		if pct, ok := ratio(obs.Overall); ok {
			summary.Ranking = append(summary.Ranking, model.RankingEntry{ParticipantID: pid, Percent: pct})
		}
	}
	sort.Slice(summary.Ranking, func(i, j int) bool {
		a, b := summary.Ranking[i], summary.Ranking[j]
		if a.Percent != b.Percent {
			return a.Percent > b.Percent
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i := range summary.Ranking {
		summary.Ranking[i].Rank = i + 1
	}
	if len(summary.Ranking) > rankingSize {
		summary.Ranking = summary.Ranking[:rankingSize]
	}
	return summary
}
