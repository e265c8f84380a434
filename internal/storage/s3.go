// Package storage holds the binary side of stored files. Metadata lives in
// the stored_files table; content lives in S3 under StoredFile.StorageKey.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"courier/internal/types"
)

// S3Client defines the subset of S3 operations used by S3FileStore.
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3FileStore implements core.FileStore over one bucket. It is safe for
// concurrent use.
type S3FileStore struct {
	client S3Client
	bucket string
}

func NewS3FileStore(client S3Client, bucket string) *S3FileStore {
	return &S3FileStore{client: client, bucket: bucket}
}

// Exists reports whether the object behind f is present. A missing object
// is (false, nil); any other failure is an upstream error so the send
// attempt is aborted rather than sent without the file.
func (s *S3FileStore) Exists(ctx context.Context, f *types.StoredFile) (bool, error) {
	key, ok := objectKey(f)
	if !ok {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, types.NewAppError(types.ErrCodeUpstreamFileStore, "failed to stat stored file", err)
}

// Open streams the object content. The caller closes the reader.
func (s *S3FileStore) Open(ctx context.Context, f *types.StoredFile) (io.ReadCloser, error) {
	key, ok := objectKey(f)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundStoredFile, "stored file has no valid storage key", nil)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundStoredFile, "stored file content not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamFileStore, "failed to open stored file", err)
	}
	return out.Body, nil
}

func objectKey(f *types.StoredFile) (string, bool) {
	key := strings.TrimPrefix(f.StorageKey, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
