package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imcitrack/internal/cache"
	"imcitrack/internal/checklist"
	"imcitrack/internal/config"
	"imcitrack/internal/repository"
	"imcitrack/internal/service"
	"imcitrack/internal/transport/ws"
)

// App holds the connected stores and the services built on them.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Mongo *mongo.Client
	Redis *redis.Client

	Checklist       *checklist.Checklist
	ObservationRepo repository.ObservationRepo
	SummaryRepo     repository.SummaryRepo
	DraftCache      cache.DraftCache
	SummaryCache    cache.SummaryCache
	Ranking         cache.RankingCache

	Scorer       *service.Scorer
	Observations *service.ObservationService
	Imports      *service.ImportService
	Reports      *service.ReportService
	Hub          *ws.Hub
}

// NewLogger builds the process logger: console output in development, JSON
// otherwise.
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	if lvl, err := cfg.Level(); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

// LoadChecklist returns the checklist named by CHECKLIST_FILE, or the
// embedded one.
func LoadChecklist(cfg *config.Config) (*checklist.Checklist, error) {
	if cfg.ChecklistFile != "" {
		return checklist.LoadFile(cfg.ChecklistFile)
	}
	return checklist.Default()
}

// New connects to MongoDB and Redis and wires every service.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	cl, err := LoadChecklist(cfg)
	if err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}
	logger.Info().Int("version", cl.Version).Int("kpis", len(cl.Schema.KPIs())).Msg("checklist loaded")

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")

	rdb := redis.NewClient(&redis.Options{
		Addr: strings.TrimPrefix(cfg.RedisAddr, "redis://"),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		mongoClient.Disconnect(ctx)
		rdb.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

	db := mongoClient.Database(cfg.MongoDatabase)
	a := &App{
		Config:          cfg,
		Logger:          logger,
		Mongo:           mongoClient,
		Redis:           rdb,
		Checklist:       cl,
		ObservationRepo: repository.NewObservationRepo(db),
		SummaryRepo:     repository.NewSummaryRepo(db),
		DraftCache:      cache.NewDraftCache(rdb, cfg.DraftTTL),
		SummaryCache:    cache.NewSummaryCache(rdb, cfg.CacheTTL),
		Ranking:         cache.NewRankingCache(rdb),
		Hub:             ws.NewHub(logger),
	}
	if err := a.ObservationRepo.EnsureIndexes(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	a.Scorer = service.NewScorer(cl, logger)
	a.Observations = service.NewObservationService(a.Scorer, a.ObservationRepo, a.DraftCache, a.Ranking, a.SummaryCache, logger)
	a.Observations.SetBroadcaster(a.Hub)
	a.Imports = service.NewImportService(a.Scorer, a.ObservationRepo, a.Observations, logger)
	a.Reports = service.NewReportService(a.ObservationRepo, a.SummaryRepo, a.SummaryCache, a.Ranking, logger)
	return a, nil
}

// Close releases the hub and both store connections.
func (a *App) Close(ctx context.Context) {
	a.Hub.Close()
	if err := a.Redis.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("close Redis")
	}
	if err := a.Mongo.Disconnect(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("disconnect MongoDB")
	}
}
