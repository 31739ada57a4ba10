// Package storage abstracts the blob store holding the raw uploads and the
// processed canonical XML.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound marks a blob URI that resolves to nothing. This is a permanent
// condition; everything else the store returns is treated as transient.
var ErrNotFound = errors.New("blob not found")

// BlobStore is the read/write contract of the pipeline. Put overwrites
// silently, replaying a task that already uploaded its processed XML is an
// idempotent no-op.
type BlobStore interface {
	Get(ctx context.Context, uri string) ([]byte, error)
	Put(ctx context.Context, uri string, data []byte, contentType string) error
}

// MinioStore implements BlobStore on an S3-compatible endpoint. Blob URIs
// are "bucket/object/key" paths.
type MinioStore struct {
	client *minio.Client
}

// Config carries the blob endpoint settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewMinioStore(cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func splitURI(uri string) (bucket, object string, err error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "/"), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed blob URI %q", uri)
	}
	return bucket, object, nil
}

func (s *MinioStore) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	return data, nil
}

func (s *MinioStore) Put(ctx context.Context, uri string, data []byte, contentType string) error {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	_, err = s.client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"Content-Hash": hex.EncodeToString(sum[:])},
		})
	if err != nil {
		return fmt.Errorf("put %s: %w", uri, err)
	}
	return nil
}
