package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/samber/oops"

	appconfig "imagevault/internal/config"
	"imagevault/internal/model"
)

// Swappable in tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectAPI is the slice of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Store keeps payloads as objects under images/<owner>/<asset id>.
type S3Store struct {
	client objectAPI
	bucket string
}

// NewS3Store builds an S3 client from static credentials. A non-empty
// endpoint switches to path-style addressing for MinIO.
func NewS3Store(ctx context.Context, cfg appconfig.StorageConfig) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3User,
			cfg.S3Password,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

// ObjectKey is the bucket key of one revision of asset's payload. Each Put
// writes a new revision, so a replaced payload never overwrites the object
// the stored row still points at.
func ObjectKey(asset *model.Asset, revision uuid.UUID) string {
	return fmt.Sprintf("images/%s/%s/%s", asset.OwnerID, asset.ID, revision)
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !stderrors.As(err, &owned) {
		return oops.With("bucket", s.bucket).Wrapf(err, "create bucket")
	}
	return nil
}

// Put uploads asset.Payload under a fresh key and moves the reference into
// StorageKey. The payload is cleared so the row stores no bytes. The object
// previously referenced by StorageKey is left for the caller to delete.
func (s *S3Store) Put(ctx context.Context, asset *model.Asset) error {
	key := ObjectKey(asset, uuid.New())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(asset.Payload),
		ContentType:   aws.String(asset.MimeType),
		ContentLength: aws.Int64(int64(len(asset.Payload))),
	})
	if err != nil {
		return oops.With("key", key).Wrapf(err, "put object")
	}
	asset.StorageKey = key
	asset.Payload = nil
	return nil
}

// Load reads the object referenced by StorageKey into asset.Payload.
func (s *S3Store) Load(ctx context.Context, asset *model.Asset) error {
	if asset.StorageKey == "" {
		return nil
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(asset.StorageKey),
	})
	if err != nil {
		return oops.With("key", asset.StorageKey).Wrapf(err, "get object")
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return oops.With("key", asset.StorageKey).Wrapf(err, "read object")
	}
	asset.Payload = payload
	return nil
}

// Delete removes the object. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, asset *model.Asset) error {
	if asset.StorageKey == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(asset.StorageKey),
	})
	if err != nil {
		return oops.With("key", asset.StorageKey).Wrapf(err, "delete object")
	}
	return nil
}
