// Package minio ships backup artifacts to MinIO and other S3-compatible
// object stores using the official MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr := backup.New(minioback.NewSink(client, "my-bucket", "backups/"))
package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Sink streams backup artifacts to a MinIO bucket.
type Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewSink creates a MinIO sink. rootPrefix is prepended to all artifact
// names (e.g. "backups/").
func NewSink(client *minio.Client, bucket, rootPrefix string) *Sink {
	return &Sink{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Sink) key(name string) string {
	return path.Join(s.prefix, name)
}

// Store uploads one artifact and returns its location on the endpoint.
// Size -1 makes the client stream in multipart chunks.
func (s *Sink) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	key := s.key(name)

	_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, key), nil
}

// List returns the stored artifact names in lexical order.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	var names []string

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names, nil
}
