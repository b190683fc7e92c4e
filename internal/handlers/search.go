package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/maneesh/schematic/internal/logging"
	"github.com/maneesh/schematic/internal/metrics"
	"github.com/maneesh/schematic/internal/models"
	"github.com/maneesh/schematic/internal/search"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SearchHandler answers field searches over the catalog
type SearchHandler struct {
	records RecordStore
	loader  *SchemaLoader
	matcher *search.Matcher
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(
	records RecordStore,
	loader *SchemaLoader,
	matcher *search.Matcher,
	m *metrics.Metrics,
	log *zap.Logger,
) *SearchHandler {
	return &SearchHandler{
		records: records,
		loader:  loader,
		matcher: matcher,
		metrics: m,
		log:     log,
	}
}

// ServeHTTP handles GET /search?fields=..&logic=all|any
func (sh *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "search_schemas",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	query := r.URL.Query()
	fields := nonEmpty(query["fields"])
	if len(fields) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "query parameter 'fields' requires at least one value")
		return
	}

	logic, err := models.ParseSearchLogic(query.Get("logic"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	span.SetAttributes(
		attribute.StringSlice("fields", fields),
		attribute.String("logic", string(logic)),
	)
	sh.metrics.Searches.WithLabelValues(string(logic)).Inc()

	var (
		digests []string
		similar []string
	)
	switch logic {
	case models.SearchLogicAll:
		digests, err = sh.matchAll(ctx, fields)
	default:
		similar, digests, err = sh.matchAny(ctx, fields)
	}
	if err != nil {
		writeServerError(ctx, w, sh.log, "failed to search records", err)
		return
	}

	schemas, err := sh.loader.LoadAll(ctx, digests)
	if err != nil {
		writeServerError(ctx, w, sh.log, "failed to load schemas", err)
		return
	}

	span.SetAttributes(attribute.Int("schema_count", len(schemas)))
	logging.WithContext(ctx, sh.log).Debug("search completed",
		zap.Strings("fields", fields),
		zap.String("logic", string(logic)),
		zap.Strings("similar_fields", similar),
		zap.Int("schema_count", len(schemas)),
	)

	writeJSON(w, http.StatusOK, models.SearchResponse{
		Fields:        fields,
		SimilarFields: similar,
		Logic:         logic,
		Schemas:       schemas,
	})
}

// matchAll returns the digests whose field set contains every requested field
func (sh *SearchHandler) matchAll(ctx context.Context, fields []string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "match_all")
	defer span.End()

	byDigest, err := sh.records.FieldsByDigest(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	digests := []string{}
	for digest, recorded := range byDigest {
		if containsAll(recorded, fields) {
			digests = append(digests, digest)
		}
	}
	sort.Strings(digests)

	span.SetAttributes(attribute.Int("digest_count", len(digests)))
	return digests, nil
}

// matchAny expands fields into similar recorded fields and returns them
// together with the digests holding at least one of them
func (sh *SearchHandler) matchAny(ctx context.Context, fields []string) ([]string, []string, error) {
	ctx, span := tracer.Start(ctx, "match_any",
		trace.WithAttributes(
			attribute.Float64("cutoff", sh.matcher.Cutoff()),
		),
	)
	defer span.End()

	candidates, err := sh.records.DistinctFields(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	similar := sh.matcher.Similar(candidates, fields)
	digests, err := sh.records.DigestsWithFields(ctx, similar)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("candidate_count", len(candidates)),
		attribute.Int("similar_count", len(similar)),
		attribute.Int("digest_count", len(digests)),
	)
	return similar, digests, nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
