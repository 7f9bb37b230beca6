package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/types"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Statistics live in the "statistics" collection with their
// records in a "records" sub-collection, prices live in the "history"
// sub-collection of a "prices" document per price entity.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project id is detected from the environment when empty
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) recordsCollection(statisticID string) (*firestore.CollectionRef, error) {
	if statisticID == "" {
		return nil, fmt.Errorf("statisticID cannot be empty")
	}
	return f.client.Collection("statistics").Doc(statisticID).Collection("records"), nil
}

func (f *FirestoreProvider) pricesCollection(entityID string) (*firestore.CollectionRef, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entityID cannot be empty")
	}
	return f.client.Collection("prices").Doc(entityID).Collection("history"), nil
}

// docID formats a timestamp as a document ID. RFC3339 in UTC sorts
// lexicographically so document ID range queries work.
func docID(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// unmarshalDoc decodes the "json" field of a document into v.
func unmarshalDoc(ctx context.Context, doc *firestore.DocumentSnapshot, kind string, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("%s document %s missing 'json' field: %w", kind, doc.Ref.ID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, kind+" doc json not string", slog.String("docID", doc.Ref.ID))
		return fmt.Errorf("%s document %s 'json' field is not string", kind, doc.Ref.ID)
	}

	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal "+kind, slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal %s (id=%s): %w", kind, doc.Ref.ID, err)
	}
	return nil
}

// SumBefore returns the sum of the latest record in the window before the
// given instant. Uses a descending document ID range query limited to one
// document.
func (f *FirestoreProvider) SumBefore(ctx context.Context, statisticID string, before time.Time, period types.StatisticsPeriod) (float64, error) {
	coll, err := f.recordsCollection(statisticID)
	if err != nil {
		return 0, err
	}
	start, end := sumWindow(before, period)

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(docID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(docID(end))).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		log.Ctx(ctx).DebugContext(ctx, "no history sum found", slog.String("statisticID", statisticID))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest statistic record: %w", err)
	}

	var s types.Statistic
	if err := unmarshalDoc(ctx, doc, "statistic", &s); err != nil {
		return 0, err
	}
	return s.Sum, nil
}

// GetStatistics retrieves statistic records within the specified time range.
func (f *FirestoreProvider) GetStatistics(ctx context.Context, statisticID string, start, end time.Time) ([]types.Statistic, error) {
	coll, err := f.recordsCollection(statisticID)
	if err != nil {
		return nil, err
	}

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(docID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(docID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []types.Statistic
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating statistics: %w", err)
		}

		var s types.Statistic
		if err := unmarshalDoc(ctx, doc, "statistic", &s); err != nil {
			return nil, err
		}
		records = append(records, s)
	}
	return records, nil
}

// GetStatisticMetadata retrieves the metadata document of a statistic.
func (f *FirestoreProvider) GetStatisticMetadata(ctx context.Context, statisticID string) (types.StatisticMetadata, error) {
	if statisticID == "" {
		return types.StatisticMetadata{}, fmt.Errorf("statisticID cannot be empty")
	}
	doc, err := f.client.Collection("statistics").Doc(statisticID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.StatisticMetadata{}, fmt.Errorf("%w: %s", ErrStatisticNotFound, statisticID)
		}
		return types.StatisticMetadata{}, fmt.Errorf("failed to get statistic %s: %w", statisticID, err)
	}

	var md types.StatisticMetadata
	if err := unmarshalDoc(ctx, doc, "statistic metadata", &md); err != nil {
		return types.StatisticMetadata{}, err
	}
	return md, nil
}

// UpsertStatistics writes the metadata document and every record of a
// statistic. The record document ID is the RFC3339 timestamp of its start so
// publishing the same hour twice overwrites it.
func (f *FirestoreProvider) UpsertStatistics(ctx context.Context, metadata types.StatisticMetadata, records []types.Statistic) error {
	coll, err := f.recordsCollection(metadata.StatisticID)
	if err != nil {
		return err
	}

	mdJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal statistic metadata: %w", err)
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records)+1)

	job, err := bw.Set(f.client.Collection("statistics").Doc(metadata.StatisticID), map[string]interface{}{
		"json":    string(mdJSON),
		"updated": time.Now(),
	})
	if err != nil {
		bw.End()
		return fmt.Errorf("failed to queue statistic metadata: %w", err)
	}
	jobs = append(jobs, job)

	for _, r := range records {
		if r.Start.IsZero() {
			bw.End()
			return fmt.Errorf("statistic record missing start")
		}
		jsonBytes, err := json.Marshal(r)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to marshal statistic record: %w", err)
		}
		job, err := bw.Set(coll.Doc(docID(r.Start)), map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": r.Start,
			"sum":       r.Sum,
		})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue statistic record: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to upsert statistics for %s: %w", metadata.StatisticID, err)
		}
	}
	return nil
}

// UpsertPrice adds or updates a price record in the "history" sub-collection
// of the price entity. The document ID is the RFC3339 timestamp of TSStart for
// efficient range queries.
func (f *FirestoreProvider) UpsertPrice(ctx context.Context, entityID string, price types.Price) error {
	jsonBytes, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("failed to marshal price: %w", err)
	}

	coll, err := f.pricesCollection(entityID)
	if err != nil {
		return err
	}

	_, err = coll.Doc(docID(price.TSStart)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": price.TSStart,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}
	return nil
}

// PricesBetween retrieves price records within the specified time range for
// a price entity. Uses document ID range queries for efficient filtering.
func (f *FirestoreProvider) PricesBetween(ctx context.Context, entityID string, start, end time.Time) ([]types.Price, error) {
	coll, err := f.pricesCollection(entityID)
	if err != nil {
		return nil, err
	}

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(docID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(docID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	prices := []types.Price{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating prices: %w", err)
		}

		var p types.Price
		if err := unmarshalDoc(ctx, doc, "price", &p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}
