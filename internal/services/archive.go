package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"billflow/internal/config"
	"billflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrArchiveFailed = errors.New("invoice archive failed")

// Archiver keeps a copy of every rendered invoice document
type Archiver interface {
	Archive(ctx context.Context, invoice *models.Invoice, data []byte, contentType string) (string, error)
}

// objectPutter is the part of the S3 client the archiver uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores rendered invoices in an S3 compatible bucket under
// <prefix>/<user_id>/<invoice_number><ext>
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver from cfg. A custom endpoint switches to
// path-style addressing for MinIO and similar stores.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archiver) Archive(ctx context.Context, invoice *models.Invoice, data []byte, contentType string) (string, error) {
	key := a.objectKey(invoice, contentType)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"invoice-id": invoice.ID,
			"series-id":  invoice.SeriesID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrArchiveFailed, key, err)
	}
	return key, nil
}

func (a *S3Archiver) objectKey(invoice *models.Invoice, contentType string) string {
	return path.Join(a.prefix, invoice.UserID, invoice.InvoiceNumber+fileExtension(contentType))
}
