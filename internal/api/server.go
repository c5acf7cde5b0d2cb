package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/db"
	"github.com/patrickwarner/openbidtuner/internal/engine"
	"github.com/patrickwarner/openbidtuner/internal/models"
	"github.com/patrickwarner/openbidtuner/internal/observability"
)

// RunSummarySource reads back cached run summaries. *db.RedisStore satisfies it.
type RunSummarySource interface {
	LatestRunSummary(ctx context.Context, country string) (models.RunSummary, error)
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	PG        *db.Postgres
	Summaries RunSummarySource
	Engine    *engine.Engine
	Metrics   observability.MetricsRegistry
	Config    config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, pg *db.Postgres, summaries RunSummarySource, eng *engine.Engine, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	return &Server{
		Logger:    logger,
		PG:        pg,
		Summaries: summaries,
		Engine:    eng,
		Metrics:   metrics,
		Config:    cfg,
	}
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
