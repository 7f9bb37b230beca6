package utility

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/types"
)

var (
	// ESO and the LT bidding zone use Vilnius time
	vilniusLocation = func() *time.Location {
		loc, err := time.LoadLocation("Europe/Vilnius")
		if err != nil {
			panic(fmt.Errorf("failed to load vilnius location: %w", err))
		}
		return loc
	}()
)

const eleringProvider = "nordpool"

// Elering implements the Provider interface using the Elering dashboard API,
// which republishes Nord Pool day-ahead prices for the Baltic bidding zones.
type Elering struct {
	apiURL string
	area   string
	client *http.Client
	now    func() time.Time
}

// NewElering returns a client for the given API URL and bidding zone.
func NewElering(client *http.Client, apiURL, area string) *Elering {
	return &Elering{
		apiURL: apiURL,
		area:   area,
		client: client,
		now:    time.Now,
	}
}

// Validate ensures the configuration is valid.
func (e *Elering) Validate() error {
	if e.apiURL == "" {
		return fmt.Errorf("elering-api-url is required")
	}
	if _, err := url.Parse(e.apiURL); err != nil {
		return fmt.Errorf("failed to parse elering url (%s): %w", e.apiURL, err)
	}
	if e.area == "" {
		return fmt.Errorf("elering-area is required")
	}
	return nil
}

type eleringResponse struct {
	Success bool                           `json:"success"`
	Data    map[string][]eleringPriceEntry `json:"data"`
}

type eleringPriceEntry struct {
	Timestamp int64 `json:"timestamp"`
	// EUR per MWh
	Price float64 `json:"price"`
}

// GetConfirmedPrices requests the day-ahead prices of the area and averages
// them into hourly buckets. Hours that haven't ended yet are dropped.
func (e *Elering) GetConfirmedPrices(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	log.Ctx(ctx).DebugContext(
		ctx,
		"getting elering price history",
		slog.Time("start", start),
		slog.Time("end", end),
	)

	u, err := url.Parse(e.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	log.Ctx(ctx).DebugContext(ctx, "fetching prices from elering", slog.String("url", u.String()))

	resp, err := e.client.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch prices", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elering api returned status: %d", resp.StatusCode)
	}

	var data eleringResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode elering response", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !data.Success {
		return nil, fmt.Errorf("elering api returned an unsuccessful response")
	}
	entries := data.Data[e.area]

	type hourlyData struct {
		start time.Time
		sum   float64
		count int
	}
	hours := make(map[int64]*hourlyData)
	for _, item := range entries {
		hourStart := time.Unix(item.Timestamp, 0).In(vilniusLocation).Truncate(time.Hour)
		key := hourStart.Unix()
		h, ok := hours[key]
		if !ok {
			h = &hourlyData{start: hourStart}
			hours[key] = h
		}
		h.sum += item.Price
		h.count++
	}

	now := e.now()
	prices := make([]types.Price, 0, len(hours))
	for _, h := range hours {
		tsEnd := h.start.Add(time.Hour)
		if tsEnd.After(now) || h.start.Before(start) || !h.start.Before(end) {
			continue
		}
		prices = append(prices, types.Price{
			Provider: eleringProvider,
			TSStart:  h.start,
			TSEnd:    tsEnd,
			PerKWH:   h.sum / float64(h.count) / 1000,
		})
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].TSStart.Before(prices[j].TSStart)
	})

	log.Ctx(ctx).DebugContext(
		ctx,
		"got elering prices",
		slog.String("area", e.area),
		slog.Int("samples", len(entries)),
		slog.Int("count", len(prices)),
	)
	return prices, nil
}
