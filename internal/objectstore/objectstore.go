// Package objectstore issues storage keys and presigned upload URLs for the
// S3-compatible bucket (Cloudflare R2) that receives the videos.  Uploads go
// straight from the client to the bucket; this service never proxies bytes.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Storage is the object storage collaborator used by the booking core.
type Storage interface {
	// NewKey returns a globally unique key that keeps the extension of
	// the original file name.
	NewKey(originalName string) string
	// PresignPut returns a URL that accepts a single PUT of key until ttl
	// elapses.
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Config describes the bucket.  Endpoint takes precedence over AccountID.
type Config struct {
	AccountID string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// EndpointURL returns the S3 endpoint for cfg.
func (c Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// R2 presigns PUT requests against an R2 bucket with static credentials.
// Presigning is a local computation; no request reaches the bucket.
type R2 struct {
	bucket    string
	presigner *s3.PresignClient
}

// NewR2 builds the presign client for cfg.
func NewR2(cfg Config) (*R2, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL())
		o.UsePathStyle = true
	})
	return &R2{bucket: cfg.Bucket, presigner: s3.NewPresignClient(client)}, nil
}

// NewKey implements Storage.
func (r *R2) NewKey(originalName string) string { return NewKey(originalName) }

// PresignPut implements Storage.  Uploaded objects are publicly readable so
// that the wall player can fetch them without credentials.
func (r *R2) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := r.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

// NewKey returns "<uuid>.<ext>" with the lower-cased extension of
// originalName, or "<uuid>.bin" when the name has no extension.
func NewKey(originalName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(originalName)), "."))
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		ext = "bin"
	}
	return uuid.NewString() + "." + ext
}
