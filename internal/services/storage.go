package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
)

// ErrStorageDisabled is returned by Put when no bucket is configured.
var ErrStorageDisabled = errors.New("document storage is not configured")

// DocumentStore persists uploaded files and returns their public URL.
type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	client        S3API
	bucket        string
	region        string
	publicBaseURL string
	logger        *logging.Logger
}

// NewS3Store creates a store. With an empty bucket every Put fails with
// ErrStorageDisabled.
func NewS3Store(client S3API, bucket, region, publicBaseURL string, logger *logging.Logger) *S3Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Store{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *S3Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrStorageDisabled
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	s.logger.Info("stored document", "key", key, "bytes", len(body))
	return s.URL(key), nil
}

// URL returns the public address of key.
func (s *S3Store) URL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// DocumentKey builds a collision-free object key under the patient's prefix.
func DocumentKey(patientID, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("medical-documents/%s/%d/%02d/%s%s",
		patientID, now.Year(), now.Month(), uuid.NewString(), ext)
}

var _ DocumentStore = (*S3Store)(nil)
