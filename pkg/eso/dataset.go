package eso

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/esoimport/pkg/types"
)

// ParseDatasets converts the raw datasets of a settings command into a
// Dataset keyed by series key. A later dataset with the same key replaces an
// earlier one.
func ParseDatasets(datasets []RawDataset, loc *time.Location) (types.Dataset, error) {
	result := make(types.Dataset, len(datasets))
	for _, ds := range datasets {
		series, err := ParseSeries(ds, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dataset %q: %w", ds.Key, err)
		}
		result[ds.Key] = series
	}
	return result, nil
}

// ParseSeries converts one raw dataset into an hourly series. The portal
// timestamps readings with the end of the hour so every instant is shifted
// back by one hour to the start of the period. The sign of the value is
// dropped since consumed and returned energy are separate series. Missing
// values count as 0.
//
// A wall clock time repeated by a daylight saving change maps to its first
// occurrence. A second record with the same repeated time maps to the later
// occurrence.
func ParseSeries(ds RawDataset, loc *time.Location) (types.Series, error) {
	series := make(types.Series, len(ds.Records))
	repeated := make(map[int64]bool)
	for _, rec := range ds.Records {
		end, ambiguous, err := parseRecordDate(string(rec.Date), loc)
		if err != nil {
			return nil, err
		}
		if ambiguous {
			if repeated[end.Unix()] {
				end = end.Add(time.Hour)
			} else {
				repeated[end.Unix()] = true
			}
		}
		value, err := parseRecordValue(string(rec.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", rec.Date, err)
		}
		series[end.Add(-time.Hour)] = math.Abs(value)
	}
	return series, nil
}

// parseRecordDate returns the earliest instant the date can refer to and
// whether the wall clock time occurs twice in loc.
func parseRecordDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	var layout string
	switch len(s) {
	case 12:
		layout = "200601021504"
	case 14:
		layout = "20060102150405"
	default:
		return time.Time{}, false, fmt.Errorf("invalid record date: %q", s)
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid record date %q: %w", s, err)
	}
	if earlier := t.Add(-time.Hour); earlier.Format(layout) == s {
		return earlier, true, nil
	}
	if later := t.Add(time.Hour); later.Format(layout) == s {
		return t, true, nil
	}
	return t, false, nil
}

func parseRecordValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
