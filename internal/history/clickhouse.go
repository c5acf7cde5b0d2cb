// Package history stores and aggregates the daily search-performance rows
// synced from the ad platform. ClickHouse holds one row per entity per day;
// the engine only ever reads range totals, so the table is laid out for
// range scans per entity.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

// ErrUnavailable is returned when the history DB is not configured.
var ErrUnavailable = fmt.Errorf("history unavailable")

// Source is the read contract the engine consumes: entity enumeration for a
// run and click/cost/sales/orders totals over a date range.
type Source interface {
	// ListEntities returns the distinct targeting entities with recorded
	// activity for a country, optionally restricted to campaign IDs. The
	// returned entities carry their most recent denormalized names and
	// current bid/adjustment value.
	ListEntities(ctx context.Context, country string, campaignIDs []int) ([]models.TargetingEntity, error)
	// WindowTotals sums performance for one entity over [from, to]. A zero
	// from means "all history".
	WindowTotals(ctx context.Context, country string, e models.TargetingEntity, from, to time.Time) (models.WindowMetrics, error)
}

// Store wraps a ClickHouse DB connection.
type Store struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the performance table exists.
func InitClickHouse(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS search_performance (
       date            Date,
       country         String,
       campaign_id     Int32,
       ad_group_id     Int32,
       targeting       String,
       entity_kind     String,
       match_type      String,
       placement_label String,
       campaign_name   String,
       ad_group_name   String,
       current_value   Float64,
       clicks          Int64,
       cost            Float64,
       sales           Float64,
       orders          Int64
   ) ENGINE=MergeTree() ORDER BY (country, campaign_id, entity_kind, targeting, date)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Store{DB: db}, nil
}

// Close terminates the ClickHouse connection.
func (s *Store) Close() {
	if s != nil && s.DB != nil {
		if err := s.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// RecordDaily inserts one daily performance row. Used by the sync path and
// the fake-data seeder.
func (s *Store) RecordDaily(ctx context.Context, date time.Time, country string, e models.TargetingEntity, m models.WindowMetrics) error {
	if s == nil || s.DB == nil {
		return ErrUnavailable
	}
	stmt := `INSERT INTO search_performance (date, country, campaign_id, ad_group_id, targeting, entity_kind,
        match_type, placement_label, campaign_name, ad_group_name, current_value, clicks, cost, sales, orders)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, stmt, date, country, int32(e.CampaignID), int32(e.AdGroupID), e.Targeting, e.Kind,
		e.MatchType, e.PlacementLabel, e.CampaignName, e.AdGroupName, e.CurrentValue, m.Clicks, m.Cost, m.Sales, m.Orders); err != nil {
		return fmt.Errorf("insert performance row: %w", err)
	}
	return nil
}

// ListEntities returns the distinct entities with recorded activity for a
// country. Denormalized names and the current value come from the most recent
// row per entity.
func (s *Store) ListEntities(ctx context.Context, country string, campaignIDs []int) ([]models.TargetingEntity, error) {
	if s == nil || s.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT campaign_id, ad_group_id, targeting, entity_kind,
        argMax(match_type, date), argMax(placement_label, date),
        argMax(campaign_name, date), argMax(ad_group_name, date),
        argMax(current_value, date)
        FROM search_performance WHERE country = ?`
	args := []any{country}
	if len(campaignIDs) > 0 {
		placeholders := make([]string, len(campaignIDs))
		for i, id := range campaignIDs {
			placeholders[i] = "?"
			args = append(args, int32(id))
		}
		query += " AND campaign_id IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " GROUP BY campaign_id, ad_group_id, targeting, entity_kind"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var entities []models.TargetingEntity
	for rows.Next() {
		var e models.TargetingEntity
		var campaignID, adGroupID int32
		if err := rows.Scan(&campaignID, &adGroupID, &e.Targeting, &e.Kind,
			&e.MatchType, &e.PlacementLabel, &e.CampaignName, &e.AdGroupName, &e.CurrentValue); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CampaignID = int(campaignID)
		e.AdGroupID = int(adGroupID)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entities, nil
}

// WindowTotals sums clicks, cost, sales and orders for one entity over
// [from, to]. A zero from means all available history.
func (s *Store) WindowTotals(ctx context.Context, country string, e models.TargetingEntity, from, to time.Time) (models.WindowMetrics, error) {
	if s == nil || s.DB == nil {
		return models.WindowMetrics{}, ErrUnavailable
	}
	query := `SELECT sum(clicks), sum(cost), sum(sales), sum(orders) FROM search_performance
        WHERE country = ? AND campaign_id = ? AND ad_group_id = ? AND targeting = ? AND entity_kind = ? AND date <= ?`
	args := []any{country, int32(e.CampaignID), int32(e.AdGroupID), e.Targeting, e.Kind, to}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from)
	}

	var m models.WindowMetrics
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&m.Clicks, &m.Cost, &m.Sales, &m.Orders); err != nil {
		return models.WindowMetrics{}, fmt.Errorf("query window totals: %w", err)
	}
	return m, nil
}
