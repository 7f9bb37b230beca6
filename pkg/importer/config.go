package importer

import (
	"fmt"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"gopkg.in/yaml.v3"

	"github.com/raterudder/esoimport/pkg/metrics"
	"github.com/raterudder/esoimport/pkg/storage"
	"github.com/raterudder/esoimport/pkg/types"
)

// Configured sets up the importer based on flags.
func Configured(client PortalClient, db storage.Database, m *metrics.Metrics) *Importer {
	i := New(client, db, m)

	username := lflag.RequiredString("eso-username", "Username for the ESO portal")
	password := lflag.RequiredString("eso-password", "Password for the ESO portal")
	var points []types.MeteringPoint
	lflag.JSON(&points, "eso-objects", []types.MeteringPoint{}, "JSON list of metering points (name, id, consumed, returned, price_entity, price_currency)")
	pointsFile := lflag.String("eso-objects-file", "", "YAML file with a list of metering points, appended to eso-objects")
	interval := lflag.Duration("import-interval", 2*time.Hour, "Interval between import cycles")
	period := lflag.String("statistics-period", string(types.PeriodDay), "Window used to look up the previous sum (hour or day)")
	source := lflag.String("statistics-source", "eso", "Source and statistic id prefix of published statistics")

	lflag.Do(func() {
		i.creds = types.Credentials{Username: *username, Password: *password}
		i.points = points
		if *pointsFile != "" {
			filePoints, err := loadPointsFile(*pointsFile)
			if err != nil {
				panic(err)
			}
			i.points = append(i.points, filePoints...)
		}
		i.interval = *interval
		p, err := types.ParseStatisticsPeriod(*period)
		if err != nil {
			panic(fmt.Sprintf("invalid statistics-period: %v", err))
		}
		i.period = p
		i.source = *source

		if err := i.Validate(); err != nil {
			panic(fmt.Sprintf("importer validation failed: %v", err))
		}
	})

	return i
}

// loadPointsFile reads a YAML list of metering points.
func loadPointsFile(path string) ([]types.MeteringPoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metering points file (%s): %w", path, err)
	}
	var points []types.MeteringPoint
	if err := yaml.Unmarshal(b, &points); err != nil {
		return nil, fmt.Errorf("failed to parse metering points file (%s): %w", path, err)
	}
	return points, nil
}
