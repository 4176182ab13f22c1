package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"teamhub/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofrs/uuid"
)

var (
	ErrStorageDisabled     = errors.New("avatar storage is not configured")
	ErrUnsupportedFileType = errors.New("unsupported avatar content type")
)

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore hands out presigned URLs so clients upload and download
// avatar images directly against object storage.
type AvatarStore interface {
	PresignUpload(ctx context.Context, userID uuid.UUID, fileName, contentType string) (url, key string, err error)
	PresignDownload(ctx context.Context, key string) (string, error)
	OwnsKey(userID uuid.UUID, key string) bool
}

type S3AvatarStore struct {
	presigner      *s3.PresignClient
	bucket         string
	uploadExpiry   time.Duration
	downloadExpiry time.Duration
}

func NewS3AvatarStore(ctx context.Context, cfg config.StorageConfig) (*S3AvatarStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrStorageDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
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
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3AvatarStore{
		presigner:      s3.NewPresignClient(client),
		bucket:         cfg.Bucket,
		uploadExpiry:   cfg.UploadURLExpiry,
		downloadExpiry: cfg.DownloadURLExpiry,
	}, nil
}

func avatarPrefix(userID uuid.UUID) string {
	return "avatars/" + userID.String() + "/"
}

// AvatarKey derives the object key for an upload. The client-supplied name
// only contributes its base name; the extension follows the content type.
func AvatarKey(userID uuid.UUID, fileName, contentType string) (string, error) {
	ext, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedFileType
	}

	base := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, base)
	if base == "" {
		base = "avatar"
	}

	return fmt.Sprintf("%s%d-%s%s", avatarPrefix(userID), time.Now().UnixNano(), base, ext), nil
}

func (s *S3AvatarStore) OwnsKey(userID uuid.UUID, key string) bool {
	return strings.HasPrefix(key, avatarPrefix(userID)) && !strings.Contains(key, "..")
}

func (s *S3AvatarStore) PresignUpload(ctx context.Context, userID uuid.UUID, fileName, contentType string) (string, string, error) {
	key, err := AvatarKey(userID, fileName, contentType)
	if err != nil {
		return "", "", err
	}

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.uploadExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, key, nil
}

func (s *S3AvatarStore) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.downloadExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}
