package utility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElering(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	t.Run("GetConfirmedPrices_Averaging", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2024-01-15T00:00:00Z", r.URL.Query().Get("start"))
			assert.Equal(t, "2024-01-15T03:00:00Z", r.URL.Query().Get("end"))
			// four quarter hours averaging to 70 EUR/MWh, one hourly entry and
			// an hour that hasn't ended yet
			response := `{"success":true,"data":{
				"ee":[{"timestamp":1705276800,"price":999}],
				"lt":[
					{"timestamp":1705276800,"price":40},
					{"timestamp":1705277700,"price":60},
					{"timestamp":1705278600,"price":80},
					{"timestamp":1705279500,"price":100},
					{"timestamp":1705280400,"price":120},
					{"timestamp":1705284000,"price":10}
				]
			}}`
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(response))
		}))
		defer ts.Close()

		e := NewElering(ts.Client(), ts.URL, "lt")
		e.now = func() time.Time { return start.Add(150 * time.Minute) }

		prices, err := e.GetConfirmedPrices(context.Background(), start, end)
		require.NoError(t, err)
		require.Len(t, prices, 2)

		assert.True(t, start.Equal(prices[0].TSStart))
		assert.True(t, start.Add(time.Hour).Equal(prices[0].TSEnd))
		assert.Equal(t, vilniusLocation, prices[0].TSStart.Location())
		assert.Equal(t, 2, prices[0].TSStart.Hour(), "hour should be in vilnius time")
		assert.InDelta(t, 0.07, prices[0].PerKWH, 1e-9)
		assert.Equal(t, "nordpool", prices[0].Provider)

		assert.True(t, start.Add(time.Hour).Equal(prices[1].TSStart))
		assert.InDelta(t, 0.12, prices[1].PerKWH, 1e-9)
	})

	t.Run("UnknownArea", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"data":{"ee":[{"timestamp":1705276800,"price":40}]}}`))
		}))
		defer ts.Close()

		e := NewElering(ts.Client(), ts.URL, "lt")
		prices, err := e.GetConfirmedPrices(context.Background(), start, end)
		require.NoError(t, err)
		assert.Empty(t, prices)
	})

	t.Run("Unsuccessful", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"data":{}}`))
		}))
		defer ts.Close()

		e := NewElering(ts.Client(), ts.URL, "lt")
		_, err := e.GetConfirmedPrices(context.Background(), start, end)
		assert.Error(t, err)
	})

	t.Run("ServerError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer ts.Close()

		e := NewElering(ts.Client(), ts.URL, "lt")
		_, err := e.GetConfirmedPrices(context.Background(), start, end)
		assert.ErrorContains(t, err, "502")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer ts.Close()

		e := NewElering(ts.Client(), ts.URL, "lt")
		_, err := e.GetConfirmedPrices(context.Background(), start, end)
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, NewElering(http.DefaultClient, "https://example.com/api", "lt").Validate())
		assert.Error(t, NewElering(http.DefaultClient, "", "lt").Validate())
		assert.Error(t, NewElering(http.DefaultClient, "https://example.com/api", "").Validate())
	})
}
