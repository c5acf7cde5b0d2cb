package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS acos_targets (
    campaign_id INT PRIMARY KEY,
    country TEXT NOT NULL,
    target_acos DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS window_weights (
    country TEXT PRIMARY KEY,
    t0 DOUBLE PRECISION NOT NULL,
    d30 DOUBLE PRECISION NOT NULL,
    d365 DOUBLE PRECISION NOT NULL,
    lifetime DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bid_changes (
    id SERIAL PRIMARY KEY,
    campaign_id INT NOT NULL,
    ad_group_id INT NOT NULL DEFAULT 0,
    targeting TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    change_date DATE NOT NULL,
    previous_value DOUBLE PRECISION,
    new_value DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
    id UUID PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    country TEXT NOT NULL,
    campaign_id INT NOT NULL,
    ad_group_id INT NOT NULL DEFAULT 0,
    targeting TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    match_type TEXT,
    placement_label TEXT,
    campaign_name TEXT,
    ad_group_name TEXT,
    action TEXT NOT NULL,
    old_value DOUBLE PRECISION NOT NULL,
    recommended_value DOUBLE PRECISION NOT NULL,
    t0_clicks BIGINT NOT NULL DEFAULT 0,
    t0_acos DOUBLE PRECISION,
    t0_no_sales BOOLEAN NOT NULL DEFAULT FALSE,
    d30_clicks BIGINT NOT NULL DEFAULT 0,
    d30_acos DOUBLE PRECISION,
    d30_no_sales BOOLEAN NOT NULL DEFAULT FALSE,
    d365_clicks BIGINT NOT NULL DEFAULT 0,
    d365_acos DOUBLE PRECISION,
    d365_no_sales BOOLEAN NOT NULL DEFAULT FALSE,
    lifetime_clicks BIGINT NOT NULL DEFAULT 0,
    lifetime_acos DOUBLE PRECISION,
    lifetime_no_sales BOOLEAN NOT NULL DEFAULT FALSE,
    weighted_acos DOUBLE PRECISION NOT NULL,
    target_acos DOUBLE PRECISION NOT NULL,
    confidence TEXT NOT NULL,
    reason TEXT NOT NULL,
    implemented_at TIMESTAMP NULL
);

CREATE INDEX IF NOT EXISTS idx_bid_changes_entity ON bid_changes (campaign_id, ad_group_id, targeting, entity_kind, change_date DESC);
CREATE INDEX IF NOT EXISTS idx_recommendations_country_created ON recommendations (country, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_recommendations_campaign ON recommendations (campaign_id);
CREATE INDEX IF NOT EXISTS idx_acos_targets_country ON acos_targets (country);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.connection_string", dsn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	if err := p.ensureGlobalWeights(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	ctx := context.Background()
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ensureGlobalWeights inserts the global fallback weight row if absent.
func (p *Postgres) ensureGlobalWeights() error {
	ctx := context.Background()
	var count int
	if err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM window_weights WHERE country=$1`, models.GlobalCountry).Scan(&count); err != nil {
		return fmt.Errorf("count window_weights: %w", err)
	}
	if count > 0 {
		return nil
	}
	w := models.DefaultWeights(models.GlobalCountry)
	if _, err := p.DB.ExecContext(ctx, `INSERT INTO window_weights (country, t0, d30, d365, lifetime) VALUES ($1,$2,$3,$4,$5)`,
		w.Country, w.T0, w.Last30, w.Last365, w.Lifetime); err != nil {
		return fmt.Errorf("insert global weights: %w", err)
	}
	return nil
}

// GetWeights returns the window weights for a country, falling back to the
// global row and finally to the built-in defaults.
func (p *Postgres) GetWeights(ctx context.Context, country string) (models.Weights, error) {
	for _, c := range []string{country, models.GlobalCountry} {
		var w models.Weights
		err := p.DB.QueryRowContext(ctx, `SELECT country, t0, d30, d365, lifetime FROM window_weights WHERE country=$1`, c).
			Scan(&w.Country, &w.T0, &w.Last30, &w.Last365, &w.Lifetime)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.Weights{}, fmt.Errorf("query weights for %s: %w", c, err)
		}
	}
	return models.DefaultWeights(country), nil
}

// UpsertWeights writes the weight row for a country. Validation happens at
// the API boundary before this is called.
func (p *Postgres) UpsertWeights(ctx context.Context, w models.Weights) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO window_weights (country, t0, d30, d365, lifetime, updated_at)
        VALUES ($1,$2,$3,$4,$5,CURRENT_TIMESTAMP)
        ON CONFLICT (country) DO UPDATE SET t0=$2, d30=$3, d365=$4, lifetime=$5, updated_at=CURRENT_TIMESTAMP`,
		w.Country, w.T0, w.Last30, w.Last365, w.Lifetime)
	if err != nil {
		return fmt.Errorf("upsert weights: %w", err)
	}
	return nil
}

// GetTarget returns the configured target ACOS for a campaign.
// ErrNotFound means the campaign has no target and must be skipped.
func (p *Postgres) GetTarget(ctx context.Context, campaignID int) (float64, error) {
	var target float64
	err := p.DB.QueryRowContext(ctx, `SELECT target_acos FROM acos_targets WHERE campaign_id=$1`, campaignID).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query target: %w", err)
	}
	return target, nil
}

// ListTargets returns all configured targets for a country keyed by campaign ID.
func (p *Postgres) ListTargets(ctx context.Context, country string) (map[int]float64, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT campaign_id, target_acos FROM acos_targets WHERE country=$1`, country)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	targets := make(map[int]float64)
	for rows.Next() {
		var id int
		var t float64
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets[id] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return targets, nil
}

// UpsertTarget writes the target ACOS for a campaign.
func (p *Postgres) UpsertTarget(ctx context.Context, campaignID int, country string, target float64) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO acos_targets (campaign_id, country, target_acos, updated_at)
        VALUES ($1,$2,$3,CURRENT_TIMESTAMP)
        ON CONFLICT (campaign_id) DO UPDATE SET country=$2, target_acos=$3, updated_at=CURRENT_TIMESTAMP`,
		campaignID, country, target)
	if err != nil {
		return fmt.Errorf("upsert target: %w", err)
	}
	return nil
}

// InsertBidChange appends one change-history row.
func (p *Postgres) InsertBidChange(ctx context.Context, c models.BidChange) error {
	var prev sql.NullFloat64
	if c.PreviousValue != nil {
		prev = sql.NullFloat64{Float64: *c.PreviousValue, Valid: true}
	}
	_, err := p.DB.ExecContext(ctx, `INSERT INTO bid_changes (campaign_id, ad_group_id, targeting, entity_kind, change_date, previous_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.Entity.CampaignID, c.Entity.AdGroupID, c.Entity.Targeting, c.Entity.Kind, c.ChangeDate, prev, c.NewValue)
	if err != nil {
		return fmt.Errorf("insert bid change: %w", err)
	}
	return nil
}

// LastChangeDate returns the most recent change date for an entity, honoring
// the T0 reset policy: under "material" the query ignores changes whose
// relative magnitude is below materialPct. A nil time means no change on record.
func (p *Postgres) LastChangeDate(ctx context.Context, e models.TargetingEntity, policy string, materialPct float64) (*time.Time, error) {
	query := `SELECT MAX(change_date) FROM bid_changes
        WHERE campaign_id=$1 AND ad_group_id=$2 AND targeting=$3 AND entity_kind=$4`
	args := []any{e.CampaignID, e.AdGroupID, e.Targeting, e.Kind}
	if policy == config.T0ResetMaterial {
		query += ` AND (previous_value IS NULL OR previous_value = 0
            OR ABS(new_value - previous_value) / previous_value >= $5)`
		args = append(args, materialPct)
	}
	var d sql.NullTime
	if err := p.DB.QueryRowContext(ctx, query, args...).Scan(&d); err != nil {
		return nil, fmt.Errorf("query last change date: %w", err)
	}
	if !d.Valid {
		return nil, nil
	}
	return &d.Time, nil
}

const recommendationColumns = `id, created_at, country, campaign_id, ad_group_id, targeting, entity_kind,
    match_type, placement_label, campaign_name, ad_group_name, action, old_value, recommended_value,
    t0_clicks, t0_acos, t0_no_sales, d30_clicks, d30_acos, d30_no_sales,
    d365_clicks, d365_acos, d365_no_sales, lifetime_clicks, lifetime_acos, lifetime_no_sales,
    weighted_acos, target_acos, confidence, reason, implemented_at`

// InsertRecommendation stores a generated recommendation with its full
// evaluation snapshot. Rows are append-only except for implemented_at.
func (p *Postgres) InsertRecommendation(ctx context.Context, r models.Recommendation) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO recommendations (`+recommendationColumns+`) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31)`,
		r.ID, r.CreatedAt, r.Country, r.Entity.CampaignID, r.Entity.AdGroupID, r.Entity.Targeting, r.Entity.Kind,
		r.Entity.MatchType, r.Entity.PlacementLabel, r.Entity.CampaignName, r.Entity.AdGroupName,
		r.Action, r.OldValue, r.RecommendedValue,
		r.T0.Clicks, nullFloat(r.T0.ACOS), r.T0.NoSales,
		r.Last30.Clicks, nullFloat(r.Last30.ACOS), r.Last30.NoSales,
		r.Last365.Clicks, nullFloat(r.Last365.ACOS), r.Last365.NoSales,
		r.Lifetime.Clicks, nullFloat(r.Lifetime.ACOS), r.Lifetime.NoSales,
		r.WeightedACOS, r.TargetACOS, r.Confidence, r.Reason, r.ImplementedAt)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// RecommendationFilter narrows ListRecommendations results.
type RecommendationFilter struct {
	Country           string
	CampaignID        int
	UnimplementedOnly bool
	Limit             int
}

// ListRecommendations returns recommendations newest first, optionally filtered.
func (p *Postgres) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]models.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE 1=1`
	var args []any
	if f.Country != "" {
		args = append(args, f.Country)
		query += fmt.Sprintf(" AND country=$%d", len(args))
	}
	if f.CampaignID > 0 {
		args = append(args, f.CampaignID)
		query += fmt.Sprintf(" AND campaign_id=$%d", len(args))
	}
	if f.UnimplementedOnly {
		query += " AND implemented_at IS NULL"
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []models.Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return recs, nil
}

// GetRecommendation returns a single recommendation by ID.
func (p *Postgres) GetRecommendation(ctx context.Context, id string) (models.Recommendation, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id=$1`, id)
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Recommendation{}, ErrNotFound
	}
	return r, err
}

// MarkImplemented stamps the implementation timestamp on a recommendation.
// Only ever sets the timestamp once; re-marking is rejected.
func (p *Postgres) MarkImplemented(ctx context.Context, id string, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE recommendations SET implemented_at=$1 WHERE id=$2 AND implemented_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark implemented: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (models.Recommendation, error) {
	var r models.Recommendation
	var matchType, placementLabel, campaignName, adGroupName sql.NullString
	var t0a, d30a, d365a, lifea sql.NullFloat64
	var implemented sql.NullTime
	err := row.Scan(&r.ID, &r.CreatedAt, &r.Country, &r.Entity.CampaignID, &r.Entity.AdGroupID,
		&r.Entity.Targeting, &r.Entity.Kind, &matchType, &placementLabel, &campaignName, &adGroupName,
		&r.Action, &r.OldValue, &r.RecommendedValue,
		&r.T0.Clicks, &t0a, &r.T0.NoSales,
		&r.Last30.Clicks, &d30a, &r.Last30.NoSales,
		&r.Last365.Clicks, &d365a, &r.Last365.NoSales,
		&r.Lifetime.Clicks, &lifea, &r.Lifetime.NoSales,
		&r.WeightedACOS, &r.TargetACOS, &r.Confidence, &r.Reason, &implemented)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan recommendation: %w", err)
	}
	r.Entity.MatchType = matchType.String
	r.Entity.PlacementLabel = placementLabel.String
	r.Entity.CampaignName = campaignName.String
	r.Entity.AdGroupName = adGroupName.String
	r.T0.ACOS = floatPtr(t0a)
	r.Last30.ACOS = floatPtr(d30a)
	r.Last365.ACOS = floatPtr(d365a)
	r.Lifetime.ACOS = floatPtr(lifea)
	if implemented.Valid {
		t := implemented.Time
		r.ImplementedAt = &t
	}
	return r, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
