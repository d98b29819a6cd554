package fetch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bid-analytics/models"
)

// S3Config holds the object storage connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Fetcher reads s3://bucket/key sources from S3-compatible storage.
type S3Fetcher struct {
	client *minio.Client
}

// NewS3Fetcher creates a client for cfg.Endpoint. No request is made until
// the first Fetch.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &S3Fetcher{client: client}, nil
}

// Fetch implements Fetcher.
func (s *S3Fetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	bucket, key, err := ParseS3Source(sourceID)
	if err != nil {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxBodyBytes+1))
	if err != nil {
		resp := minio.ToErrorResponse(err)
		return nil, &models.RetrievalError{SourceID: sourceID, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) > maxBodyBytes {
		return nil, &models.RetrievalError{SourceID: sourceID, Err: fmt.Errorf("object exceeds %d bytes", maxBodyBytes)}
	}
	return data, nil
}

// ParseS3Source splits s3://bucket/key into its parts.
func ParseS3Source(sourceID string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(sourceID, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 source: %q", sourceID)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 source must be s3://bucket/key, got %q", sourceID)
	}
	return bucket, key, nil
}
