// Package storage writes generated report files to a local directory or
// an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/meridian-works/meridian/pkg/env"
)

// Store persists an object and returns where it can be found.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// New builds the store selected by the environment.
func New(ctx context.Context, vars env.Environment) (Store, error) {
	switch strings.ToLower(vars.ReportStore) {
	case "", "fs":
		return NewFSStore(vars.ReportDir), nil
	case "s3":
		return NewS3Store(ctx, vars.ReportBucket, vars.ReportRegion, vars.ReportEndpoint)
	default:
		return nil, fmt.Errorf("unsupported report store %q", vars.ReportStore)
	}
}

// FSStore writes objects below a base directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) *FSStore {
	if dir == "" {
		dir = "reports"
	}
	return &FSStore{dir: dir}
}

func (s *FSStore) Name() string { return "fs" }

func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	target := filepath.Join(s.dir, clean)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return target, nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads objects to a bucket.
type S3Store struct {
	client putObjectAPI
	bucket string
}

// NewS3Store creates an S3 store. If endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
func NewS3Store(ctx context.Context, bucket, region, endpoint string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("report bucket is required for s3 store")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{client: s3.NewFromConfig(cfg, opts...), bucket: bucket}, nil
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
