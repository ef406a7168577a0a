package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	gmconfig "github.com/hkdb/gmsync/internal/config"
)

// S3Config mirrors eSlider-mail-archive's internal/storage.S3Config:
// a minimal set of fields needed to talk to an S3-compatible endpoint,
// including MinIO via path-style addressing.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// S3ConfigFromEnv builds an S3Config from daemon configuration. Returns
// nil unless cfg.UsesS3() (endpoint, access key id and secret all set),
// signaling callers to fall back to the filesystem store.
func S3ConfigFromEnv(cfg *gmconfig.Config) *S3Config {
	if !cfg.UsesS3() {
		return nil
	}
	return &S3Config{
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Bucket:          cfg.S3Bucket,
		UseSSL:          cfg.S3UseSSL,
		Region:          cfg.S3Region,
	}
}

// S3Client wraps an s3.Client bound to one bucket.
type S3Client struct {
	client *s3.Client
	bucket string
}

// NewS3Client builds an S3Client from cfg, using path-style addressing
// so MinIO and other S3-compatible endpoints work without DNS-based
// virtual hosting.
func NewS3Client(ctx context.Context, cfg *S3Config) (*S3Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: endpoint and bucket are required")
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		return aws.Endpoint{URL: fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Client{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("s3: create bucket: %w", err)
	}
	return nil
}

func (c *S3Client) putBytes(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(string(data)),
	})
	return err
}

func (c *S3Client) get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// S3BlobStore stores blobs in S3, under an optional key prefix.
type S3BlobStore struct {
	client *S3Client
	prefix string
}

// NewS3BlobStore creates an S3-backed blob store.
func NewS3BlobStore(client *S3Client, prefix string) *S3BlobStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3BlobStore{client: client, prefix: prefix}
}

func (s *S3BlobStore) Write(ctx context.Context, key string, data []byte) error {
	return s.client.putBytes(ctx, s.prefix+key, data)
}

func (s *S3BlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	return s.client.get(ctx, s.prefix+key)
}

// New returns the configured BlobStore: S3-backed if cfg has S3
// settings, filesystem-backed rooted at cfg.DataDir otherwise.
func New(ctx context.Context, cfg *gmconfig.Config) (BlobStore, error) {
	if s3cfg := S3ConfigFromEnv(cfg); s3cfg != nil {
		client, err := NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return NewS3BlobStore(client, "blobs"), nil
	}
	return NewFSBlobStore(cfg.DataDir + "/blobs"), nil
}
