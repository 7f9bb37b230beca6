package utility

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/esoimport/pkg/common"
	"github.com/raterudder/esoimport/pkg/types"
)

// Configured sets up the price sync based on flags. The sync is disabled when
// price-entity is empty.
func Configured(store PriceStore) *Syncer {
	s := &Syncer{store: store, now: time.Now}

	entity := lflag.String("price-entity", "", "Price entity to fill with Nord Pool prices (empty disables the price sync)")
	apiURL := lflag.String("elering-api-url", "https://dashboard.elering.ee/api/nps/price", "URL for the Elering Nord Pool price API")
	area := lflag.String("elering-area", "lt", "Bidding zone to read prices for")
	lookback := lflag.Duration("price-sync-lookback", 8*24*time.Hour, "How far back each price sync reaches")
	var fees []types.FeesPeriod
	lflag.JSON(&fees, "price-fees", []types.FeesPeriod{}, "JSON list of fees added to every hourly price (description, start, end, hourStart, hourEnd, perKWH)")

	lflag.Do(func() {
		if *entity == "" {
			return
		}
		e := NewElering(common.HTTPClient(30*time.Second), *apiURL, *area)
		if err := e.Validate(); err != nil {
			panic(fmt.Sprintf("elering validation failed: %v", err))
		}
		f := NewFees(e, fees)
		if err := f.Validate(); err != nil {
			panic(err.Error())
		}
		s.provider = f
		s.entityID = *entity
		s.lookback = *lookback
		if err := s.Validate(); err != nil {
			panic(fmt.Sprintf("price sync validation failed: %v", err))
		}
	})

	return s
}
