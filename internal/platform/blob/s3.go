package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fabline/fabline/internal/shared"
)

const s3Scheme = "s3:"

// S3Config holds S3-compatible backend parameters (AWS S3, MinIO, R2).
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// S3Store implements Store against a single bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds the client from the default credential chain, or static
// keys when both are provided.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Store uploads r under key.
func (s *S3Store) Store(ctx context.Context, key string, r io.Reader, meta Meta) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: map[string]string{"name": meta.Name},
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.Size > 0 {
		input.ContentLength = aws.Int64(meta.Size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", key, err)
	}
	return s3Scheme + key, nil
}

// Retrieve downloads the object behind locator.
func (s *S3Store) Retrieve(ctx context.Context, locator string) (io.ReadCloser, Meta, error) {
	key, ok := strings.CutPrefix(locator, s3Scheme)
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: locator %q is not s3", shared.ErrNotFound, locator)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, Meta{}, fmt.Errorf("%w: blob %s", shared.ErrNotFound, key)
		}
		return nil, Meta{}, fmt.Errorf("blob: get %s: %w", key, err)
	}
	meta := Meta{Name: out.Metadata["name"], ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if meta.Name == "" {
		meta.Name = key[strings.LastIndex(key, "/")+1:]
	}
	return out.Body, meta, nil
}
