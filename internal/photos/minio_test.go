package photos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObjectClient struct {
	bucketExistsFunc func(ctx context.Context, bucketName string) (bool, error)
	makeBucketFunc   func(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	putObjectFunc    func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

func (m *mockObjectClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if m.bucketExistsFunc != nil {
		return m.bucketExistsFunc(ctx, bucketName)
	}
	return true, nil
}

func (m *mockObjectClient) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	if m.makeBucketFunc != nil {
		return m.makeBucketFunc(ctx, bucketName, opts)
	}
	return nil
}

func (m *mockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, bucketName, objectName, reader, objectSize, opts)
	}
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func newTestStore(client ObjectClient) *MinioStore {
	s := NewMinioStore(client, "station-photos")
	s.newID = func() string { return "abc" }
	return s
}

func TestMinioStorePut(t *testing.T) {
	var (
		gotBucket string
		gotKey    string
		gotBody   []byte
		gotOpts   minio.PutObjectOptions
	)
	client := &mockObjectClient{
		putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			gotBucket, gotKey, gotOpts = bucketName, objectName, opts
			gotBody, _ = io.ReadAll(reader)
			return minio.UploadInfo{}, nil
		},
	}

	reference, err := newTestStore(client).Put(context.Background(), "image/JPEG; charset=binary", bytes.NewReader([]byte("jpeg")), 4)
	require.NoError(t, err)

	assert.Equal(t, "photos/abc.jpg", reference)
	assert.Equal(t, "station-photos", gotBucket)
	assert.Equal(t, reference, gotKey)
	assert.Equal(t, []byte("jpeg"), gotBody)
	assert.Equal(t, "image/jpeg", gotOpts.ContentType)
}

func TestMinioStorePutRejects(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{name: "unsupported type", contentType: "application/pdf", size: 10, wantErr: ErrUnsupportedType},
		{name: "empty body", contentType: "image/png", size: 0, wantErr: ErrEmptyPhoto},
		{name: "too large", contentType: "image/webp", size: MaxPhotoBytes + 1, wantErr: ErrPhotoTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockObjectClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					t.Fatal("PutObject must not be called")
					return minio.UploadInfo{}, nil
				},
			}

			_, err := newTestStore(client).Put(context.Background(), tt.contentType, bytes.NewReader(nil), tt.size)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMinioStorePutError(t *testing.T) {
	client := &mockObjectClient{
		putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			return minio.UploadInfo{}, errors.New("bucket offline")
		},
	}

	_, err := newTestStore(client).Put(context.Background(), "image/png", bytes.NewReader([]byte("png")), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket offline")
}

func TestEnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		client := &mockObjectClient{
			makeBucketFunc: func(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
				t.Fatal("MakeBucket must not be called")
				return nil
			},
		}
		assert.NoError(t, newTestStore(client).EnsureBucket(context.Background(), "us-east-1"))
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		var made string
		var region string
		client := &mockObjectClient{
			bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) { return false, nil },
			makeBucketFunc: func(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
				made, region = bucketName, opts.Region
				return nil
			},
		}
		require.NoError(t, newTestStore(client).EnsureBucket(context.Background(), "eu-west-1"))
		assert.Equal(t, "station-photos", made)
		assert.Equal(t, "eu-west-1", region)
	})

	t.Run("existence check fails", func(t *testing.T) {
		client := &mockObjectClient{
			bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
				return false, errors.New("denied")
			},
		}
		assert.Error(t, newTestStore(client).EnsureBucket(context.Background(), ""))
	})
}

func TestNewMinioClient(t *testing.T) {
	_, err := NewMinioClient("", "key", "secret", false)
	assert.Error(t, err)

	client, err := NewMinioClient("localhost:9000", "key", "secret", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
