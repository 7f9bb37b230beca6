package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/statistics"
	"github.com/raterudder/esoimport/pkg/storage"
	"github.com/raterudder/esoimport/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	priceEntity := lflag.String("seed-price-entity", "sensor.electricity_price", "Price entity to seed hourly prices for")
	pointID := lflag.String("seed-point-id", "", "Metering point to seed a consumed history for, skipped when empty")
	seedRange := lflag.Duration("seed-range", 8*24*time.Hour, "How far back to seed prices, ending today")
	lflag.Configure()
	days := int(*seedRange / (24 * time.Hour))
	if days < 1 {
		days = 1
	}

	ctx := context.Background()
	defer s.Close()

	loc, err := time.LoadLocation("Europe/Vilnius")
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load location", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -days+1)

	for t := start; t.Before(today.AddDate(0, 0, 1)); t = t.Add(time.Hour) {
		hour := t.Hour()

		basePrice := 0.12
		if hour >= 7 && hour < 10 {
			basePrice = 0.22 // Morning Peak
		} else if hour >= 11 && hour < 16 {
			basePrice = 0.08 // Solar Lull
		} else if hour >= 17 && hour < 21 {
			basePrice = 0.30 // Evening Peak
		} else if hour < 6 {
			basePrice = 0.06 // Night
		}
		// Jitter
		basePrice += (rng.Float64() * 0.02) - 0.01

		price := types.Price{
			Provider: "nordpool",
			TSStart:  t,
			TSEnd:    t.Add(time.Hour),
			PerKWH:   statistics.Round(basePrice, 5),
		}
		if err := s.UpsertPrice(ctx, *priceEntity, price); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed price", "error", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Seeded %d days of prices for %s\n", days, *priceEntity)

	if *pointID != "" {
		// a day of consumption before the seeded range so the importer
		// continues an existing running sum
		series := types.Series{}
		for t := start.AddDate(0, 0, -1); t.Before(start); t = t.Add(time.Hour) {
			series[t] = statistics.Round(0.2+rng.Float64(), 3)
		}
		md := types.StatisticMetadata{
			StatisticID: types.EnergyStatisticID("eso", types.EnergyConsumed, *pointID),
			Source:      "eso",
			Name:        fmt.Sprintf("%s (%s)", *pointID, types.EnergyConsumed),
			Unit:        types.UnitKWH,
			HasSum:      true,
		}
		records, err := statistics.Build(ctx, md.StatisticID, series, types.PeriodDay, s)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to build statistics", "error", err)
			os.Exit(1)
		}
		if err := s.UpsertStatistics(ctx, md, records); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed statistics", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d hours of history for %s (sum %.3f kWh)\n", len(records), md.StatisticID, records[len(records)-1].Sum)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
