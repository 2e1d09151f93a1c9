// Package backup mirrors processed outputs to S3-compatible object storage
// and returns time-limited download links. Backup is strictly best-effort:
// processing never fails because a mirror write failed.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"thumbpress/internal/config"
	"thumbpress/internal/logging"
)

// Uploader mirrors a local artifact to remote storage and returns a shareable
// link, or an empty link when mirroring is disabled.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}

// Noop is the uploader used when backup is disabled.
type Noop struct{}

func (Noop) Enabled() bool { return false }

func (Noop) Upload(context.Context, string, string) (string, error) { return "", nil }

// S3Uploader mirrors artifacts to a single S3 bucket.
type S3Uploader struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	linkTTL time.Duration
	logger  *slog.Logger
}

// New builds an uploader from backup configuration. A disabled config yields
// a Noop uploader and no credentials are touched.
func New(ctx context.Context, cfg config.Backup, logger *slog.Logger) (Uploader, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load backup credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		linkTTL: time.Duration(cfg.LinkTTLHours) * time.Hour,
		logger:  logging.NewComponentLogger(logger, "backup"),
	}, nil
}

func (u *S3Uploader) Enabled() bool { return true }

// Upload stores the artifact under the configured prefix and returns a
// presigned download link valid for the configured TTL.
func (u *S3Uploader) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	key := ObjectKey(u.prefix, objectName)
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if contentType := mime.TypeByExtension(filepath.Ext(objectName)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	resp, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.linkTTL))
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}

	u.logger.Info("artifact mirrored",
		logging.String("key", key),
		logging.Duration("link_ttl", u.linkTTL))
	return resp.URL, nil
}

// ObjectKey joins the bucket prefix with a date partition and the object
// name, so bucket listings stay navigable as the mirror grows.
func ObjectKey(prefix, objectName string) string {
	datePart := time.Now().UTC().Format("2006/01/02")
	name := path.Base(strings.TrimSpace(objectName))
	if name == "" || name == "." || name == "/" {
		name = "artifact"
	}
	if prefix == "" {
		return path.Join(datePart, name)
	}
	return path.Join(prefix, datePart, name)
}
