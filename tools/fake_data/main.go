package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/db"
	"github.com/patrickwarner/openbidtuner/internal/history"
	"github.com/patrickwarner/openbidtuner/internal/models"
	"github.com/patrickwarner/openbidtuner/internal/observability"
)

var (
	countries   = flag.String("countries", "de", "comma-separated country codes")
	campaigns   = flag.Int("campaigns", 10, "campaigns per country")
	keywords    = flag.Int("keywords", 15, "keywords per campaign")
	historyDays = flag.Int("days", 400, "days of performance history")
	seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

var placementLabels = []string{"top_of_search", "product_page", "rest_of_search"}

var keywordStems = []string{
	"running shoes", "trail sneakers", "wool socks", "yoga mat", "water bottle",
	"hiking boots", "rain jacket", "fleece hoodie", "bike light", "camping stove",
	"dog leash", "coffee grinder", "desk lamp", "phone stand", "laptop sleeve",
}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger("fake-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pg.Close()

	perf, err := history.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer perf.Close()

	r := rand.New(rand.NewSource(*seed))
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)

	campaignID := 0
	for _, country := range strings.Split(*countries, ",") {
		country = strings.TrimSpace(country)
		if country == "" {
			continue
		}
		for c := 0; c < *campaigns; c++ {
			campaignID++
			target := 0.10 + r.Float64()*0.25
			if err := pg.UpsertTarget(ctx, campaignID, country, target); err != nil {
				logger.Fatal("upsert target", zap.Error(err))
			}

			name := fmt.Sprintf("Campaign %d (%s)", campaignID, strings.ToUpper(country))
			seedKeywords(ctx, logger, r, perf, pg, country, campaignID, name, today)
			seedPlacements(ctx, logger, r, perf, country, campaignID, name, today)
		}
		logger.Info("seeded country",
			zap.String("country", country),
			zap.Int("campaigns", *campaigns))
	}
}

func seedKeywords(ctx context.Context, logger *zap.Logger, r *rand.Rand, perf *history.Store, pg *db.Postgres, country string, campaignID int, campaignName string, today time.Time) {
	for k := 0; k < *keywords; k++ {
		e := models.TargetingEntity{
			CampaignID:   campaignID,
			AdGroupID:    campaignID*10 + k%3,
			Targeting:    keywordStems[k%len(keywordStems)] + fmt.Sprintf(" %d", k),
			Kind:         models.EntityKeyword,
			MatchType:    []string{"broad", "phrase", "exact"}[k%3],
			CampaignName: campaignName,
			AdGroupName:  fmt.Sprintf("Ad Group %d", k%3+1),
			CurrentValue: 0.30 + r.Float64()*2.00,
		}
		// A slice of keywords never converts, to exercise the zero-sales rule.
		converts := r.Float64() > 0.15
		baseACOS := 0.05 + r.Float64()*0.50
		seedDailyRows(ctx, logger, r, perf, country, e, today, converts, baseACOS)

		// Some entities have change history so cooldown and T0 paths light up.
		if r.Float64() < 0.4 {
			prev := e.CurrentValue * (0.8 + r.Float64()*0.4)
			change := models.BidChange{
				Entity:        e,
				ChangeDate:    today.AddDate(0, 0, -r.Intn(60)),
				PreviousValue: &prev,
				NewValue:      e.CurrentValue,
			}
			if err := pg.InsertBidChange(ctx, change); err != nil {
				logger.Fatal("insert bid change", zap.Error(err))
			}
		}
	}
}

func seedPlacements(ctx context.Context, logger *zap.Logger, r *rand.Rand, perf *history.Store, country string, campaignID int, campaignName string, today time.Time) {
	for _, label := range placementLabels {
		e := models.TargetingEntity{
			CampaignID:     campaignID,
			Targeting:      label,
			Kind:           models.EntityPlacement,
			PlacementLabel: label,
			CampaignName:   campaignName,
			CurrentValue:   float64(r.Intn(40) * 5),
		}
		seedDailyRows(ctx, logger, r, perf, country, e, today, true, 0.05+r.Float64()*0.40)
	}
}

func seedDailyRows(ctx context.Context, logger *zap.Logger, r *rand.Rand, perf *history.Store, country string, e models.TargetingEntity, today time.Time, converts bool, baseACOS float64) {
	for d := *historyDays; d > 0; d-- {
		if r.Float64() < 0.5 {
			continue // not every entity gets traffic every day
		}
		clicks := int64(r.Intn(25))
		if clicks == 0 {
			continue
		}
		cost := float64(clicks) * (0.2 + r.Float64()*1.5)
		var sales float64
		var orders int64
		if converts && r.Float64() < 0.7 {
			sales = cost / (baseACOS * (0.7 + r.Float64()*0.6))
			orders = 1 + int64(r.Intn(3))
		}
		m := models.WindowMetrics{Clicks: clicks, Cost: cost, Sales: sales, Orders: orders}
		if err := perf.RecordDaily(ctx, today.AddDate(0, 0, -d), country, e, m); err != nil {
			logger.Fatal("record daily metrics", zap.Error(err))
		}
	}
}
