// Package gcs provides a blob.Store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/secondbrain-app/article-hub/internal/blob"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store reads and writes snapshot blobs in a configured GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads data to the configured bucket and returns a gs:// URI.
func (s *Store) Put(ctx context.Context, name, contentType string, data io.Reader) (string, error) {
	path, err := s.objectPath(name)
	if err != nil {
		return "", err
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Get opens the named object, mapping a missing object to blob.ErrNotExist.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := s.objectPath(name)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, blob.ErrNotExist
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return reader, nil
}

func (s *Store) objectPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("object name is required")
	}
	if s.prefix == "" {
		return name, nil
	}
	return s.prefix + "/" + name, nil
}
