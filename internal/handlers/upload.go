package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/maneesh/schematic/internal/logging"
	"github.com/maneesh/schematic/internal/metrics"
	"github.com/maneesh/schematic/internal/models"
	"github.com/maneesh/schematic/internal/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// UploadHandler handles schema uploads
type UploadHandler struct {
	records        RecordStore
	blobs          BlobStore
	registry       *schema.Registry
	metrics        *metrics.Metrics
	log            *zap.Logger
	maxUploadBytes int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(
	records RecordStore,
	blobs BlobStore,
	registry *schema.Registry,
	m *metrics.Metrics,
	log *zap.Logger,
	maxUploadBytes int64,
) *UploadHandler {
	return &UploadHandler{
		records:        records,
		blobs:          blobs,
		registry:       registry,
		metrics:        m,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}
}

// ServeHTTP handles POST /file
func (uh *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ctx, span := tracer.Start(ctx, "upload_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	log := logging.WithContext(ctx, uh.log)

	if uh.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, uh.maxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		span.RecordError(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("multipart field 'file' is required: %v", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	span.SetAttributes(
		attribute.String("file_name", header.Filename),
		attribute.String("content_type", contentType),
	)

	parser, ok := uh.registry.Lookup(contentType)
	if !ok {
		uh.metrics.Uploads.WithLabelValues("other", "unsupported").Inc()
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("No handler for file with content_type=%s", contentType))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeServerError(ctx, w, uh.log, "failed to read upload", err)
		return
	}

	doc, err := uh.buildDocument(ctx, parser, data)
	if err != nil {
		span.RecordError(err)
		uh.metrics.Uploads.WithLabelValues(parser.ContentType(), "invalid").Inc()
		if errors.Is(err, schema.ErrParse) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServerError(ctx, w, uh.log, "failed to build schema", err)
		return
	}

	span.SetAttributes(
		attribute.String("digest", doc.Digest),
		attribute.Int("field_count", len(doc.Fields)),
	)

	status, err := uh.register(ctx, doc)
	if err != nil {
		uh.metrics.Uploads.WithLabelValues(doc.ContentType, "error").Inc()
		writeServerError(ctx, w, uh.log, "failed to register schema", err)
		return
	}

	outcome := "new"
	if status.Comment == models.StatusSeenBefore {
		outcome = "duplicate"
	}
	uh.metrics.Uploads.WithLabelValues(doc.ContentType, outcome).Inc()

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Filename:    header.Filename,
		ContentType: doc.ContentType,
		Fields:      doc.Fields,
		Schema:      doc.Schema,
		Status:      status,
	})

	log.Info("schema upload completed",
		zap.String("file_name", header.Filename),
		zap.String("digest", doc.Digest),
		zap.String("status", string(status.Comment)),
	)
}

func (uh *UploadHandler) buildDocument(ctx context.Context, parser schema.Parser, data []byte) (*schema.Document, error) {
	_, span := tracer.Start(ctx, "build_schema",
		trace.WithAttributes(
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	doc, err := schema.Build(parser, data)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return doc, nil
}

// register records a first sighting of doc, or reports when it was first
// seen. Losing a concurrent insert race counts as seen before.
func (uh *UploadHandler) register(ctx context.Context, doc *schema.Document) (models.Status, error) {
	ctx, span := tracer.Start(ctx, "register_schema",
		trace.WithAttributes(
			attribute.String("digest", doc.Digest),
		),
	)
	defer span.End()

	if status, found, err := uh.seenBefore(ctx, doc.Digest); err != nil || found {
		return status, err
	}

	// One timestamp for every row of this sighting
	now := time.Now().UTC().Truncate(time.Microsecond)
	records := make([]*models.Record, len(doc.Fields))
	for i, field := range doc.Fields {
		records[i] = &models.Record{
			DateAdded:   now,
			ContentType: doc.ContentType,
			Digest:      doc.Digest,
			Field:       field,
		}
	}

	created, err := uh.records.CreateRecords(ctx, records, func(ctx context.Context) error {
		return uh.blobs.PutSchema(ctx, doc.ObjectKey(), doc.Bytes)
	})
	if err != nil {
		span.RecordError(err)
		return models.Status{}, err
	}

	if created {
		span.SetAttributes(attribute.Bool("created", true))
		return models.Status{Comment: models.StatusJustAdded, DateAdded: now}, nil
	}

	span.AddEvent("lost insert race")
	status, found, err := uh.seenBefore(ctx, doc.Digest)
	if err != nil {
		return status, err
	}
	if !found {
		return models.Status{}, fmt.Errorf("digest %s neither inserted nor present", doc.Digest)
	}
	return status, nil
}

func (uh *UploadHandler) seenBefore(ctx context.Context, digest string) (models.Status, bool, error) {
	date, found, err := uh.records.FindDateAdded(ctx, digest)
	if err != nil {
		return models.Status{}, false, fmt.Errorf("failed to look up digest: %w", err)
	}
	if !found {
		return models.Status{}, false, nil
	}
	return models.Status{Comment: models.StatusSeenBefore, DateAdded: date}, true, nil
}
