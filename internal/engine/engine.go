package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/history"
	"github.com/patrickwarner/openbidtuner/internal/models"
	"github.com/patrickwarner/openbidtuner/internal/observability"
)

// Suppression reasons surfaced in metrics and the run summary.
const (
	SuppressCooldown     = "cooldown"
	SuppressInsufficient = "insufficient_data"
	SuppressInBand       = "in_band"
	SuppressNoTarget     = "no_target"
)

// RecommendationStore is the persistence contract the engine writes to and
// reads configuration from.
type RecommendationStore interface {
	GetWeights(ctx context.Context, country string) (models.Weights, error)
	ListTargets(ctx context.Context, country string) (map[int]float64, error)
	LastChangeDate(ctx context.Context, e models.TargetingEntity, policy string, materialPct float64) (*time.Time, error)
	InsertRecommendation(ctx context.Context, r models.Recommendation) error
}

// RunLocker serializes runs per country and stores run summaries.
type RunLocker interface {
	AcquireRunLock(ctx context.Context, country, runID string, ttl time.Duration) error
	ReleaseRunLock(ctx context.Context, country, runID string)
	SaveRunSummary(ctx context.Context, s models.RunSummary) error
}

// Engine generates bid recommendations for one country at a time.
type Engine struct {
	Source  history.Source
	Store   RecommendationStore
	Locks   RunLocker
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger
	Cfg     config.Config
}

// NewEngine creates a new recommendation engine.
func NewEngine(source history.Source, store RecommendationStore, locks RunLocker, metrics observability.MetricsRegistry, logger *zap.Logger, cfg config.Config) *Engine {
	return &Engine{
		Source:  source,
		Store:   store,
		Locks:   locks,
		Metrics: metrics,
		Logger:  logger,
		Cfg:     cfg,
	}
}

// evalResult is the outcome of evaluating one entity.
type evalResult struct {
	entity      models.TargetingEntity
	rec         *models.Recommendation
	suppression string
	dataErr     bool
}

// GenerateRecommendations runs a full recommendation pass for a country,
// optionally restricted to campaign IDs. It returns the persisted
// recommendations and a summary; the summary is valid even when some
// entities failed. The run hard-fails only when configuration is absent or
// nothing at all could be evaluated. A run already in flight for the same
// country returns db.ErrRunInProgress via the RunLocker.
func (e *Engine) GenerateRecommendations(ctx context.Context, country string, campaignIDs []int) ([]models.Recommendation, models.RunSummary, error) {
	runID := uuid.NewString()
	started := nowFn()
	summary := models.RunSummary{RunID: runID, Country: country, StartedAt: started}

	if err := e.Locks.AcquireRunLock(ctx, country, runID, e.Cfg.RunLockTTL); err != nil {
		e.Metrics.IncrementRuns(country, "conflict")
		return nil, summary, err
	}
	defer e.Locks.ReleaseRunLock(ctx, country, runID)

	weights, err := e.Store.GetWeights(ctx, country)
	if err != nil {
		e.Metrics.IncrementRuns(country, "failed")
		return nil, summary, fmt.Errorf("load weights for %s: %w", country, err)
	}

	targets, err := e.Store.ListTargets(ctx, country)
	if err != nil {
		e.Metrics.IncrementRuns(country, "failed")
		return nil, summary, fmt.Errorf("load targets for %s: %w", country, err)
	}
	if len(targets) == 0 {
		e.Metrics.IncrementRuns(country, "failed")
		return nil, summary, fmt.Errorf("no ACOS targets configured for %s", country)
	}

	entities, err := e.Source.ListEntities(ctx, country, campaignIDs)
	if err != nil {
		e.Metrics.IncrementRuns(country, "failed")
		return nil, summary, fmt.Errorf("list entities for %s: %w", country, err)
	}

	today := started
	results := e.evaluateAll(ctx, country, entities, targets, weights, today)

	// Two-phase placement pass: individual proposals first, then the
	// portfolio-balance invariant over each campaign's full placement set.
	var pending []*models.Recommendation
	placementRecs := make(map[int][]*models.Recommendation)
	placementSeen := make(map[int]int)

	for _, res := range results {
		if res.dataErr {
			summary.DataErrors++
			e.Metrics.IncrementDataErrors(country)
		} else {
			summary.EntitiesEvaluated++
			e.Metrics.IncrementEntitiesEvaluated(country, res.entity.Kind)
		}
		if res.entity.Kind == models.EntityPlacement && res.suppression != SuppressNoTarget {
			placementSeen[res.entity.CampaignID]++
		}
		switch {
		case res.rec != nil:
			if res.entity.Kind == models.EntityPlacement {
				placementRecs[res.entity.CampaignID] = append(placementRecs[res.entity.CampaignID], res.rec)
			}
			pending = append(pending, res.rec)
		case res.suppression == SuppressCooldown:
			summary.SuppressedCooldown++
			e.Metrics.IncrementSuppressed(country, SuppressCooldown)
		case res.suppression == SuppressInsufficient:
			summary.SuppressedInsufficient++
			e.Metrics.IncrementSuppressed(country, SuppressInsufficient)
		case res.suppression == SuppressInBand:
			summary.SuppressedInBand++
			e.Metrics.IncrementSuppressed(country, SuppressInBand)
		case res.suppression == SuppressNoTarget:
			summary.SkippedNoTarget++
			e.Metrics.IncrementSuppressed(country, SuppressNoTarget)
		}
	}

	for campaignID, recs := range placementRecs {
		ApplyPortfolioBalance(recs, placementSeen[campaignID])
	}

	var persisted []models.Recommendation
	for _, rec := range pending {
		if err := e.persistWithRetry(ctx, *rec); err != nil {
			summary.WriteErrors++
			e.Metrics.IncrementWriteErrors()
			e.Logger.Error("drop recommendation after retry",
				zap.String("entity", rec.Entity.Key()), zap.Error(err))
			continue
		}
		summary.Recommendations++
		e.Metrics.IncrementRecommendations(country, rec.Entity.Kind, rec.Action)
		persisted = append(persisted, *rec)
	}

	summary.Duration = nowFn().Sub(started)
	e.Metrics.RecordRunDuration(country, summary.Duration)

	if err := e.Locks.SaveRunSummary(ctx, summary); err != nil {
		e.Logger.Warn("save run summary", zap.Error(err))
	}

	// A run where nothing could be evaluated is a failure, not a quiet
	// zero-recommendation success.
	if len(entities) > 0 && summary.EntitiesEvaluated == 0 {
		e.Metrics.IncrementRuns(country, "failed")
		return persisted, summary, fmt.Errorf("no entities evaluated: %d data errors over %d entities", summary.DataErrors, len(entities))
	}

	e.Metrics.IncrementRuns(country, "ok")
	e.Logger.Info("recommendation run complete",
		zap.String("run_id", runID),
		zap.String("country", country),
		zap.Int("entities", summary.EntitiesEvaluated),
		zap.Int("recommendations", summary.Recommendations),
		zap.Int("data_errors", summary.DataErrors),
		zap.Duration("duration", summary.Duration))
	return persisted, summary, nil
}

// evaluateAll fans entities out over a bounded worker pool. Aggregation is
// I/O-bound against the history store, so entities are independent and safe
// to evaluate concurrently; only the placement balance pass needs ordering,
// and that happens after all results are collected.
func (e *Engine) evaluateAll(ctx context.Context, country string, entities []models.TargetingEntity, targets map[int]float64, weights models.Weights, today time.Time) []evalResult {
	workers := e.Cfg.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan models.TargetingEntity)
	out := make(chan evalResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				out <- e.evaluateEntity(ctx, country, entity, targets, weights, today)
			}
		}()
	}
	go func() {
		for _, entity := range entities {
			jobs <- entity
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	results := make([]evalResult, 0, len(entities))
	for res := range out {
		results = append(results, res)
	}
	return results
}

// evaluateEntity runs the full per-entity pipeline: target lookup, cooldown
// gate, four-window aggregation, weighted ACOS and the kind-specific
// decision rule.
func (e *Engine) evaluateEntity(ctx context.Context, country string, entity models.TargetingEntity, targets map[int]float64, weights models.Weights, today time.Time) evalResult {
	res := evalResult{entity: entity}

	target, ok := targets[entity.CampaignID]
	if !ok {
		// No configured target is a hard skip for the campaign, not a default.
		res.suppression = SuppressNoTarget
		return res
	}

	lastChange, err := e.Store.LastChangeDate(ctx, entity, e.Cfg.T0ResetPolicy, e.Cfg.T0MaterialChange)
	if err != nil {
		e.Logger.Warn("last change lookup failed", zap.String("entity", entity.Key()), zap.Error(err))
		res.dataErr = true
		return res
	}

	if !CooldownEligible(DaysSinceChange(today, lastChange), e.Cfg.CooldownDays) {
		res.suppression = SuppressCooldown
		return res
	}

	set, err := CollectWindows(ctx, e.Source, country, entity, today, lastChange)
	if err != nil {
		if observability.ShouldSample(observability.GetSamplingRate()) {
			e.Logger.Warn("window aggregation failed", zap.String("entity", entity.Key()), zap.Error(err))
		}
		res.dataErr = true
		return res
	}

	wa := EvaluateWindows(set, e.Cfg.MinWindowClicks)
	weighted, weightedOK := WeightedACOS(wa, weights)
	confidence := ConfidenceLabel(set.Lifetime.Clicks)

	var prop Proposal
	var fired bool
	switch entity.Kind {
	case models.EntityKeyword:
		prop, fired = RecommendKeywordBid(entity.CurrentValue, weighted, weightedOK, target, wa.Lifetime, KeywordParams{
			BandAbs:        e.Cfg.KeywordBandAbs,
			MaxIncreasePct: e.Cfg.MaxIncreasePct,
			MinRatio:       e.Cfg.BidMinRatio,
			MaxRatio:       e.Cfg.BidMaxRatio,
			AbsoluteMin:    e.Cfg.BidAbsoluteMin,
		})
	case models.EntityPlacement:
		prop, fired = RecommendPlacementAdjustment(entity.CurrentValue, weighted, weightedOK, target, PlacementParams{
			BandRel:        e.Cfg.PlacementBandRel,
			MaxIncreasePct: e.Cfg.MaxIncreasePct,
			MaxAdjustment:  e.Cfg.MaxAdjustmentPct,
		})
	default:
		res.suppression = SuppressInsufficient
		return res
	}

	if !fired {
		if weightedOK {
			res.suppression = SuppressInBand
		} else {
			res.suppression = SuppressInsufficient
		}
		return res
	}

	if prop.Clamped {
		e.Metrics.IncrementClamps(entity.Kind)
	}

	res.rec = &models.Recommendation{
		ID:               uuid.NewString(),
		CreatedAt:        nowFn().UTC(),
		Country:          country,
		Entity:           entity,
		Action:           prop.Action,
		OldValue:         entity.CurrentValue,
		RecommendedValue: prop.NewValue,
		T0:               wa.T0.Snapshot(),
		Last30:           wa.Last30.Snapshot(),
		Last365:          wa.Last365.Snapshot(),
		Lifetime:         wa.Lifetime.Snapshot(),
		WeightedACOS:     weighted,
		TargetACOS:       target,
		Confidence:       confidence,
		Reason:           prop.Reason,
	}
	return res
}

// persistWithRetry inserts a recommendation, retrying once with backoff.
func (e *Engine) persistWithRetry(ctx context.Context, rec models.Recommendation) error {
	err := e.Store.InsertRecommendation(ctx, rec)
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	e.Logger.Warn("recommendation insert failed, retrying",
		zap.String("entity", rec.Entity.Key()), zap.Error(err))
	time.Sleep(e.Cfg.WriteRetryBackoff)
	return e.Store.InsertRecommendation(ctx, rec)
}
