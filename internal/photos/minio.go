package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MaxPhotoBytes bounds a single upload.
const MaxPhotoBytes = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported photo type")
	ErrEmptyPhoto      = errors.New("empty photo")
	ErrPhotoTooLarge   = errors.New("photo too large")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectClient is the subset of *minio.Client used by the store.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store keeps station photos and hands back opaque references for candidates.
type Store interface {
	Put(ctx context.Context, contentType string, body io.Reader, size int64) (string, error)
}

// MinioStore writes photos to an S3-compatible bucket.
type MinioStore struct {
	client ObjectClient
	bucket string
	newID  func() string
}

var _ Store = (*MinioStore)(nil)

func NewMinioStore(client ObjectClient, bucket string) *MinioStore {
	return &MinioStore{
		client: client,
		bucket: bucket,
		newID:  uuid.NewString,
	}
}

// NewMinioClient connects to an S3-compatible endpoint with static credentials.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("minio endpoint, access key and secret key are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	log.Debug().Str("endpoint", endpoint).Msg("Created minio client")
	return client, nil
}

// EnsureBucket creates the photo bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	log.Info().Str("bucket", s.bucket).Msg("Created photo bucket")
	return nil
}

// Put uploads one photo and returns its reference, "photos/<uuid><ext>".
func (s *MinioStore) Put(ctx context.Context, contentType string, body io.Reader, size int64) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := extensions[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size == 0 {
		return "", ErrEmptyPhoto
	}
	if size > MaxPhotoBytes {
		return "", ErrPhotoTooLarge
	}

	reference := path.Join("photos", s.newID()+ext)
	_, err := s.client.PutObject(ctx, s.bucket, reference, body, size, minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return "", fmt.Errorf("storing photo: %w", err)
	}

	log.Debug().
		Str("bucket", s.bucket).
		Str("reference", reference).
		Int64("size", size).
		Msg("Stored station photo")
	return reference, nil
}
