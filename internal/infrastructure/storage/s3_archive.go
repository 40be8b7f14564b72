// Package storage archives rendered exports in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/export"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectAPI is the subset of the S3 client the archive needs
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ExportArchive renders exports to XLSX and stores them under
// <prefix>/<tenant>/<yyyy>/<mm>/.
type S3ExportArchive struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewS3Client builds an S3 client. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func NewS3ExportArchive(client ObjectAPI, bucket, prefix string, log *zap.Logger) (*S3ExportArchive, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	return &S3ExportArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: log.Named("export_archive"),
		now:    time.Now,
	}, nil
}

// Archive stores the export and returns its s3:// location
func (a *S3ExportArchive) Archive(ctx context.Context, tenantID uuid.UUID, result *appinvoicing.ExportResult) (string, error) {
	body, err := export.RenderXLSX(result)
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}

	key := a.objectKey(tenantID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(export.XLSXContentType),
		Metadata: map[string]string{
			"tenant-id":     tenantID.String(),
			"invoice-count": fmt.Sprint(result.Summary.Count),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	logger.Enrich(ctx, a.logger).Info("Export archived",
		zap.String("location", location),
		zap.Int("bytes", len(body)),
		zap.Int("invoices", result.Summary.Count),
	)
	return location, nil
}

func (a *S3ExportArchive) objectKey(tenantID uuid.UUID) string {
	now := a.now().UTC()
	name := fmt.Sprintf("invoices-%s-%s.xlsx", now.Format("20060102T150405Z"), uuid.NewString()[:8])
	return path.Join(a.prefix, tenantID.String(), now.Format("2006"), now.Format("01"), name)
}

// EnsureBucket creates the bucket when it does not exist
func (a *S3ExportArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("Creating export bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

var _ appinvoicing.ExportArchive = (*S3ExportArchive)(nil)
