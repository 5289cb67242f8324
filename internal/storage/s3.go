package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/videotube/backend/internal/config"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Storage publishes user images to an S3-compatible bucket.
type S3Storage struct {
	uploader objectUploader
	bucket   string
	baseURL  string
	prefix   string
}

// NewS3Storage configures an uploader targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return newS3Storage(uploader, cfg), nil
}

func newS3Storage(uploader objectUploader, cfg config.ObjectStoreConfig) *S3Storage {
	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" && strings.TrimSpace(cfg.Endpoint) != "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Storage{
		uploader: uploader,
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
		prefix:   "images/",
	}
}

// Store uploads the file at localPath and returns its public URL. The local file is
// removed whether or not the upload succeeds.
func (s *S3Storage) Store(ctx context.Context, localPath string) (string, error) {
	defer removeQuietly(localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrUploadFailed, localPath, err)
	}
	defer f.Close()

	contentType, err := sniffContentType(f)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	key := objectKey(s.prefix, localPath)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3 upload %s: %w", ErrUploadFailed, key, err)
	}

	if s.baseURL == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key), nil
	}

	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}
