package storage

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// WriteTargetTTL is the validity window of an issued upload URL.
const WriteTargetTTL = 900 * time.Second

// ErrObjectNotFound marks a fetch of a key with no stored bytes, as opposed to
// a transport or storage failure.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the capability the services consume instead of talking to
// MinIO directly, so tests can substitute an in-memory implementation.
type ObjectStore interface {
	// IssueWriteTarget returns a time-boxed URL a client can PUT object bytes to.
	IssueWriteTarget(ctx context.Context, key string, contentType string) (string, error)
	// FetchObject reads the full object into memory. Absent objects return an error.
	FetchObject(ctx context.Context, key string) ([]byte, error)
	// PresignedGetURL returns a short-lived download URL for review clients.
	PresignedGetURL(ctx context.Context, key string) (string, error)
	// RemoveObject deletes the object if present.
	RemoveObject(ctx context.Context, key string) error
}

// MinioStore implements ObjectStore on a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a MinioStore for the given client and bucket.
func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// IssueWriteTarget returns a presigned PUT URL for the key, valid for
// WriteTargetTTL. The content type is negotiated by the uploading client; the
// key already encodes the extension chosen for it.
func (s *MinioStore) IssueWriteTarget(ctx context.Context, key string, contentType string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, WriteTargetTTL)
	if err != nil {
		return "", errors.Wrapf(err, "presign put for %s", key)
	}
	return u.String(), nil
}

// FetchObject materializes the whole object in memory. Ingestion analyzes full
// frames, so there is no streaming path.
func (s *MinioStore) FetchObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get object %s", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "read object %s", key)
	}
	return data, nil
}

// PresignedGetURL returns a one-hour download URL.
func (s *MinioStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, time.Hour, nil)
	if err != nil {
		return "", errors.Wrapf(err, "presign get for %s", key)
	}
	return u.String(), nil
}

// RemoveObject deletes the object from the bucket.
func (s *MinioStore) RemoveObject(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
