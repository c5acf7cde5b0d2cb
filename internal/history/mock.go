package history

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

// MockSource is an in-memory Source implementation for tests and local runs
// without ClickHouse.
type MockSource struct {
	Entities []models.TargetingEntity
	// Rows maps entity key to dated metrics.
	Rows map[string][]DatedMetrics
	// Err, when set, is returned by every call.
	Err error
	// FailKeys lists entity keys whose WindowTotals call should fail.
	FailKeys map[string]bool
}

// DatedMetrics is one day of performance for the mock.
type DatedMetrics struct {
	Date    time.Time
	Metrics models.WindowMetrics
}

// NewMockSource returns an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{Rows: make(map[string][]DatedMetrics), FailKeys: make(map[string]bool)}
}

// Add registers an entity and appends daily rows for it.
func (m *MockSource) Add(e models.TargetingEntity, rows ...DatedMetrics) {
	for _, existing := range m.Entities {
		if existing.Key() == e.Key() {
			m.Rows[e.Key()] = append(m.Rows[e.Key()], rows...)
			return
		}
	}
	m.Entities = append(m.Entities, e)
	m.Rows[e.Key()] = append(m.Rows[e.Key()], rows...)
}

func (m *MockSource) ListEntities(ctx context.Context, country string, campaignIDs []int) ([]models.TargetingEntity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(campaignIDs) == 0 {
		return m.Entities, nil
	}
	allowed := make(map[int]bool, len(campaignIDs))
	for _, id := range campaignIDs {
		allowed[id] = true
	}
	var out []models.TargetingEntity
	for _, e := range m.Entities {
		if allowed[e.CampaignID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockSource) WindowTotals(ctx context.Context, country string, e models.TargetingEntity, from, to time.Time) (models.WindowMetrics, error) {
	if m.Err != nil {
		return models.WindowMetrics{}, m.Err
	}
	if m.FailKeys[e.Key()] {
		return models.WindowMetrics{}, fmt.Errorf("window totals for %s: unavailable", e.Key())
	}
	var total models.WindowMetrics
	for _, row := range m.Rows[e.Key()] {
		if !from.IsZero() && row.Date.Before(from) {
			continue
		}
		if row.Date.After(to) {
			continue
		}
		total.Clicks += row.Metrics.Clicks
		total.Cost += row.Metrics.Cost
		total.Sales += row.Metrics.Sales
		total.Orders += row.Metrics.Orders
	}
	return total, nil
}
