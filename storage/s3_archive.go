// File: storage/s3_archive.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"go-lift-control/logger"
	"go-lift-control/models"
	"go-lift-control/services"
)

var _ services.Archiver = (*S3Archiver)(nil)

// ObjectPutter is the slice of the S3 API the archiver needs.
type ObjectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3ArchiverConfig configures the archive bucket.
type S3ArchiverConfig struct {
	Region string
	Bucket string
	Prefix string
}

// S3Archiver writes completed sessions to S3 as JSON documents.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver on the default AWS credential chain.
func NewS3Archiver(cfg S3ArchiverConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewS3ArchiverWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverWithClient wraps an existing client.
func NewS3ArchiverWithClient(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// ArchiveKey is the object key for a session's archive.
func (a *S3Archiver) ArchiveKey(archive models.SessionArchive) string {
	prefix := a.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	competition := archive.Session.CompetitionID
	if competition == "" {
		competition = "unassigned"
	}
	return fmt.Sprintf("%s%s/%s.json", prefix, competition, archive.Session.ID)
}

// ArchiveSession uploads the archive document.
func (a *S3Archiver) ArchiveSession(ctx context.Context, archive models.SessionArchive) error {
	body, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	key := a.ArchiveKey(archive)

	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive (key: %s): %w", key, err)
	}
	logger.Info.Printf("[S3Archiver.ArchiveSession] session=%s archived to s3://%s/%s", archive.Session.ID, a.bucket, key)
	return nil
}
