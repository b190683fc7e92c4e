package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/schematic/internal/models"
	"github.com/maneesh/schematic/internal/schema"
	"github.com/maneesh/schematic/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SchemaHandler returns a single catalogued schema
type SchemaHandler struct {
	records RecordStore
	loader  *SchemaLoader
	log     *zap.Logger
}

// NewSchemaHandler creates a new schema lookup handler
func NewSchemaHandler(records RecordStore, loader *SchemaLoader, log *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		records: records,
		loader:  loader,
		log:     log,
	}
}

// ServeHTTP handles GET /schema/{digest}
func (sh *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "get_schema",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	digest := mux.Vars(r)["digest"]
	span.SetAttributes(attribute.String("digest", digest))

	if !schema.ValidDigest(digest) {
		writeError(w, http.StatusBadRequest, "digest must be 64 hexadecimal characters")
		return
	}

	records, err := sh.records.GetRecords(ctx, digest)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "schema not found")
		return
	}
	if err != nil {
		writeServerError(ctx, w, sh.log, "failed to get records", err)
		return
	}

	s, err := sh.loader.Load(ctx, digest)
	if err != nil {
		writeServerError(ctx, w, sh.log, "failed to load schema", err)
		return
	}

	fields := make([]string, len(records))
	for i, rec := range records {
		fields[i] = rec.Field
	}

	writeJSON(w, http.StatusOK, models.SchemaEntry{
		Digest:      digest,
		ContentType: records[0].ContentType,
		Fields:      fields,
		DateAdded:   records[0].DateAdded,
		Schema:      s,
	})
}
