// File: internal/infra/adapters/media/s3_store.go
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"activity-engine/internal/config"
	"activity-engine/internal/domain/ports/adapter"
)

var _ adapter.MediaStore = (*S3Store)(nil)

// objectAPI is the subset of *s3.Client the store calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps activity photos in an S3-compatible bucket (AWS, R2, MinIO).
type S3Store struct {
	api     objectAPI
	bucket  string
	prefix  string
	baseURL string // public URL prefix, no trailing slash
}

func NewS3Store(cfg config.MediaConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media bucket is required")
	}
	opts := s3.Options{Region: cfg.Region}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return newS3Store(s3.New(opts), cfg), nil
}

func newS3Store(api objectAPI, cfg config.MediaConfig) *S3Store {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{api: api, bucket: cfg.Bucket, prefix: cfg.KeyPrefix, baseURL: base}
}

// Upload stores f under a fresh key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, f adapter.MediaFile) (string, error) {
	body, err := io.ReadAll(f.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	key := s.newKey(f.Name)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(f.ContentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the object behind url. URLs outside this store are rejected.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.KeyFromURL(url)
	if !ok {
		return fmt.Errorf("url %q does not belong to bucket %s", url, s.bucket)
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) URL(key string) string { return s.baseURL + "/" + key }

func (s *S3Store) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *S3Store) newKey(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return fmt.Sprintf("%s%s/%s%s", s.prefix, time.Now().UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
