package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"imcitrack/internal/cache"
	"imcitrack/internal/checklist"
	"imcitrack/internal/model"
)

type fakeObservationRepo struct {
	mu      sync.Mutex
	items   map[string]model.Observation
	order   []string
	updates int
}

func newFakeObservationRepo() *fakeObservationRepo {
	return &fakeObservationRepo{items: make(map[string]model.Observation)}
}

func (r *fakeObservationRepo) Create(_ context.Context, obs *model.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[obs.ID] = *obs
	r.order = append(r.order, obs.ID)
	return nil
}

func (r *fakeObservationRepo) CreateMany(ctx context.Context, obs []*model.Observation) error {
	for _, o := range obs {
		if err := r.Create(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeObservationRepo) GetByID(_ context.Context, id string) (*model.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obs, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}

func (r *fakeObservationRepo) ListByCourse(_ context.Context, courseID string) ([]*model.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Observation
	for _, id := range r.order {
		if obs := r.items[id]; obs.CourseID == courseID {
			out = append(out, &obs)
		}
	}
	return out, nil
}

func (r *fakeObservationRepo) UpdateScore(_ context.Context, obs *model.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[obs.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	r.items[obs.ID] = *obs
	r.updates++
	return nil
}

func (r *fakeObservationRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeObservationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakeDraftCache struct {
	drafts map[string]model.Draft
}

func (c *fakeDraftCache) Set(_ context.Context, d *model.Draft) error {
	c.drafts[d.ID] = *d
	return nil
}

func (c *fakeDraftCache) Get(_ context.Context, id string) (*model.Draft, error) {
	d, ok := c.drafts[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (c *fakeDraftCache) Delete(_ context.Context, id string) error {
	delete(c.drafts, id)
	return nil
}

type fakeSummaryCache struct {
	items       map[string]model.CourseSummary
	versions    map[string]int64
	invalidated []string
}

func (c *fakeSummaryCache) Get(_ context.Context, courseID string) (*model.CourseSummary, error) {
	s, ok := c.items[courseID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (c *fakeSummaryCache) Version(_ context.Context, courseID string) (int64, error) {
	return c.versions[courseID], nil
}

func (c *fakeSummaryCache) Set(_ context.Context, s *model.CourseSummary, version int64) error {
	if c.versions[s.CourseID] != version {
		return cache.ErrStaleSummary
	}
	c.items[s.CourseID] = *s
	return nil
}

func (c *fakeSummaryCache) Invalidate(_ context.Context, courseID string) error {
	delete(c.items, courseID)
	c.versions[courseID]++
	c.invalidated = append(c.invalidated, courseID)
	return nil
}

type fakeRankingCache struct {
	scores   map[string]map[string]float64
	observed map[string]time.Time
}

func (c *fakeRankingCache) Record(_ context.Context, courseID, participantID string, pct float64, observedAt time.Time) (bool, error) {
	key := courseID + "/" + participantID
	if prev, ok := c.observed[key]; ok && prev.After(observedAt) {
		return false, nil
	}
	c.observed[key] = observedAt
	if c.scores[courseID] == nil {
		c.scores[courseID] = make(map[string]float64)
	}
	c.scores[courseID][participantID] = pct
	return true, nil
}

func (c *fakeRankingCache) Top(_ context.Context, courseID string, limit int) ([]model.RankingEntry, error) {
	var out []model.RankingEntry
	for pid, pct := range c.scores[courseID] {
		out = append(out, model.RankingEntry{ParticipantID: pid, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (c *fakeRankingCache) Rank(_ context.Context, courseID, participantID string) (int64, error) {
	top, _ := c.Top(context.Background(), courseID, len(c.scores[courseID]))
	for _, e := range top {
		if e.ParticipantID == participantID {
			return int64(e.Rank), nil
		}
	}
	return -1, nil
}

type fakeSummaryRepo struct {
	snapshots map[string]model.CourseSummary
}

func (r *fakeSummaryRepo) SaveSnapshot(_ context.Context, s *model.CourseSummary) error {
	r.snapshots[s.CourseID] = *s
	return nil
}

func (r *fakeSummaryRepo) GetSnapshot(_ context.Context, courseID string) (*model.CourseSummary, error) {
	s, ok := r.snapshots[courseID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) BroadcastToCourse(courseID, msgType string, payload interface{}) {
	m.Called(courseID, msgType, payload)
}

type testEnv struct {
	repo         *fakeObservationRepo
	drafts       *fakeDraftCache
	summaries    *fakeSummaryCache
	ranking      *fakeRankingCache
	snapshots    *fakeSummaryRepo
	broadcaster  *mockBroadcaster
	scorer       *Scorer
	observations *ObservationService
	imports      *ImportService
	reports      *ReportService
}

var fixedNow = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cl, err := checklist.Default()
	require.NoError(t, err)

	env := &testEnv{
		repo:        newFakeObservationRepo(),
		drafts:      &fakeDraftCache{drafts: make(map[string]model.Draft)},
		summaries:   &fakeSummaryCache{items: make(map[string]model.CourseSummary), versions: make(map[string]int64)},
		ranking:     &fakeRankingCache{scores: make(map[string]map[string]float64), observed: make(map[string]time.Time)},
		snapshots:   &fakeSummaryRepo{snapshots: make(map[string]model.CourseSummary)},
		broadcaster: &mockBroadcaster{},
	}
	env.broadcaster.On("BroadcastToCourse", mock.Anything, mock.Anything, mock.Anything).Return()

	logger := zerolog.Nop()
	env.scorer = NewScorer(cl, logger)
	env.observations = NewObservationService(env.scorer, env.repo, env.drafts, env.ranking, env.summaries, logger)
	env.observations.SetBroadcaster(env.broadcaster)
	env.observations.now = func() time.Time { return fixedNow }
	env.imports = NewImportService(env.scorer, env.repo, env.observations, logger)
	env.imports.now = func() time.Time { return fixedNow }
	env.reports = NewReportService(env.repo, env.snapshots, env.summaries, env.ranking, logger)
	env.reports.now = func() time.Time { return fixedNow }
	return env
}
