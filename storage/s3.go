package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "carscout/config"
)

// SnapshotUploader stores raw markup from drifted sources in S3-compatible
// storage so a parser fix can be written against the exact page that broke.
type SnapshotUploader struct {
	client *s3.Client
	bucket string
}

func NewSnapshotUploader(ctx context.Context, cfg appconfig.SnapshotConfig) (*SnapshotUploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &SnapshotUploader{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload writes the markup under snapshots/{source}/{timestamp}.html. Upload
// failures are logged, never returned; a missing snapshot must not affect a
// search.
func (u *SnapshotUploader) Upload(ctx context.Context, source string, markup []byte) {
	key := fmt.Sprintf("snapshots/%s/%s.html", source, time.Now().UTC().Format("20060102T150405"))
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(markup),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		log.Printf("[snapshot] upload %s failed: %v", key, err)
		return
	}
	log.Printf("[snapshot] stored %s (%d bytes)", key, len(markup))
}
