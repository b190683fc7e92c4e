package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("schematic-storage")

const schemaContentType = "application/json"

// MinioClient stores schema blobs in an S3-compatible bucket
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// NewMinioClient initializes a new MinIO client and makes sure the bucket exists
func NewMinioClient(ctx context.Context, log *zap.Logger, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	mc := &MinioClient{
		client:     client,
		bucketName: bucketName,
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Info("creating bucket", zap.String("bucket", bucketName))
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return mc, nil
}

// PutSchema uploads serialized schema bytes under objectKey
func (mc *MinioClient) PutSchema(ctx context.Context, objectKey string, data []byte) error {
	ctx, span := tracer.Start(ctx, "minio.put_schema",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	reader := bytes.NewReader(data)
	_, err := mc.client.PutObject(ctx, mc.bucketName, objectKey, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: schemaContentType,
	})

	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload schema: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// GetSchema downloads the schema stored under objectKey. A missing object
// yields ErrNotFound.
func (mc *MinioClient) GetSchema(ctx context.Context, objectKey string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "minio.get_schema",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	object, err := mc.client.GetObject(ctx, mc.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		span.RecordError(err)
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", objectKey, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	span.SetAttributes(
		attribute.Int("size_bytes", len(data)),
		attribute.Bool("download_success", true),
	)
	return data, nil
}
