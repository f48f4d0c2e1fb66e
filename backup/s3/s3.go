// Package s3 ships backup artifacts to Amazon S3 and records completed
// backups in a DynamoDB catalog.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sink := s3backup.NewSink(awss3.NewFromConfig(cfg), "my-bucket", "backups/")
//	mgr := backup.New(sink)
//
// The sink streams artifacts through a multipart uploader, so the artifact
// size does not need to be known up front.
package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink streams backup artifacts to an S3 bucket.
type Sink struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewSink creates an S3 sink. rootPrefix is prepended to all artifact
// names (e.g. "backups/").
func NewSink(client *s3.Client, bucket, rootPrefix string) *Sink {
	return &Sink{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   rootPrefix,
	}
}

func (s *Sink) key(name string) string {
	return path.Join(s.prefix, name)
}

// Store uploads one artifact and returns its s3:// location.
func (s *Sink) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	key := s.key(name)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// List returns the stored artifact names in lexical order, which for
// timestamped artifacts is oldest first.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backups: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(*obj.Key, s.prefix)
			rel = strings.TrimPrefix(rel, "/")
			if rel == "" {
				continue
			}
			names = append(names, rel)
		}
	}

	sort.Strings(names)

	return names, nil
}
