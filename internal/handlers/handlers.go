package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/maneesh/schematic/internal/logging"
	"github.com/maneesh/schematic/internal/metrics"
	"github.com/maneesh/schematic/internal/models"
	"github.com/maneesh/schematic/internal/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("schematic-handlers")

// maxParallelFetches bounds concurrent schema downloads per request
const maxParallelFetches = 8

// RecordStore is the relational side of the catalog
type RecordStore interface {
	FindDateAdded(ctx context.Context, digest string) (time.Time, bool, error)
	CreateRecords(ctx context.Context, records []*models.Record, onCreated func(context.Context) error) (bool, error)
	GetRecords(ctx context.Context, digest string) ([]*models.Record, error)
	FieldsByDigest(ctx context.Context) (map[string][]string, error)
	DistinctFields(ctx context.Context) ([]string, error)
	DigestsWithFields(ctx context.Context, fields []string) ([]string, error)
}

// BlobStore keeps serialized schemas by object key
type BlobStore interface {
	PutSchema(ctx context.Context, objectKey string, data []byte) error
	GetSchema(ctx context.Context, objectKey string) ([]byte, error)
}

// SchemaCache is a best-effort cache in front of the BlobStore. GetSchema
// returns nil data on a miss.
type SchemaCache interface {
	GetSchema(ctx context.Context, digest string) ([]byte, error)
	SetSchema(ctx context.Context, digest string, data []byte) error
}

// SchemaLoader reads schemas through the cache, falling back to the blob store
type SchemaLoader struct {
	blobs   BlobStore
	cache   SchemaCache
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewSchemaLoader creates a loader; cache may be nil
func NewSchemaLoader(blobs BlobStore, cache SchemaCache, m *metrics.Metrics, log *zap.Logger) *SchemaLoader {
	return &SchemaLoader{
		blobs:   blobs,
		cache:   cache,
		metrics: m,
		log:     log,
	}
}

// Load fetches and decodes the schema of one digest
func (sl *SchemaLoader) Load(ctx context.Context, digest string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "load_schema",
		trace.WithAttributes(
			attribute.String("digest", digest),
		),
	)
	defer span.End()

	log := logging.WithContext(ctx, sl.log)

	if sl.cache != nil {
		data, err := sl.cache.GetSchema(ctx, digest)
		if err != nil {
			// Cache trouble must not fail the request
			log.Warn("schema cache lookup failed", zap.String("digest", digest), zap.Error(err))
		} else if data != nil {
			var cached map[string]any
			if err := json.Unmarshal(data, &cached); err == nil {
				sl.metrics.SchemaFetches.WithLabelValues("cache").Inc()
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return cached, nil
			}
			log.Warn("discarding undecodable cached schema", zap.String("digest", digest))
		}
	}

	data, err := sl.blobs.GetSchema(ctx, schema.ObjectKey(digest))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch schema %s: %w", digest, err)
	}
	sl.metrics.SchemaFetches.WithLabelValues("blob").Inc()

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode schema %s: %w", digest, err)
	}

	if sl.cache != nil {
		if err := sl.cache.SetSchema(ctx, digest, data); err != nil {
			log.Warn("failed to update schema cache", zap.String("digest", digest), zap.Error(err))
		}
	}
	return out, nil
}

// LoadAll fetches schemas in parallel, keeping the order of digests
func (sl *SchemaLoader) LoadAll(ctx context.Context, digests []string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "load_schemas_parallel",
		trace.WithAttributes(
			attribute.Int("schema_count", len(digests)),
		),
	)
	defer span.End()

	schemas := make([]map[string]any, len(digests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for i, digest := range digests {
		g.Go(func() error {
			s, err := sl.Load(gctx, digest)
			if err != nil {
				return err
			}
			schemas[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return schemas, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// writeServerError logs err against the span in ctx and answers 500
func writeServerError(ctx context.Context, w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
	logging.WithContext(ctx, log).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msg, err))
}
