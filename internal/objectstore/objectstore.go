// Package objectstore implements an S3-compatible artifact store backed by
// MinIO. Task outputs are stored as JSON objects keyed by plan and task.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store implements the artifact store over a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// New connects to the configured S3 endpoint.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &Store{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(client *minio.Client, bucket string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the artifact bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		// Racing creators are fine.
		exists, existsErr := s.client.BucketExists(ctx, s.bucket)
		if existsErr == nil && exists {
			return nil
		}
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func artifactKey(planID, taskID string) string {
	return fmt.Sprintf("plans/%s/tasks/%s/output.json", planID, taskID)
}

func (s *Store) PutArtifact(ctx context.Context, planID, taskID string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, artifactKey(planID, taskID),
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// GetArtifact returns (nil, nil) when no artifact exists for the task.
func (s *Store) GetArtifact(ctx context.Context, planID, taskID string) (map[string]any, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, artifactKey(planID, taskID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) DeleteArtifact(ctx context.Context, planID, taskID string) error {
	return s.client.RemoveObject(ctx, s.bucket, artifactKey(planID, taskID), minio.RemoveObjectOptions{})
}

func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}
