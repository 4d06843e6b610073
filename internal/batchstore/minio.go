package batchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/devarsh/jobfleet/pkg/models"
)

const recordSuffix = ".json"

// MinioStore implements Store on an S3-compatible object store, one JSON
// object per batch under keyPrefix.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	keyPrefix string
}

// NewMinioStore creates a MinioStore. keyPrefix defaults to "batches/".
func NewMinioStore(client *minio.Client, bucket, keyPrefix string) *MinioStore {
	if keyPrefix == "" {
		keyPrefix = "batches/"
	}
	if !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}
	return &MinioStore{client: client, bucket: bucket, keyPrefix: keyPrefix}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, record *models.BatchRecord) error {
	key := s.objectKey(record.BatchID)

	// Create-only: refuse to overwrite an existing record.
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConflict, record.BatchID)
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("stat batch record %s: %w", record.BatchID, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode batch record %s: %w", record.BatchID, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put batch record %s: %w", record.BatchID, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, batchID string) (*models.BatchRecord, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(batchID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get batch record %s: %w", batchID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
		}
		return nil, fmt.Errorf("read batch record %s: %w", batchID, err)
	}

	var record models.BatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode batch record %s: %w", batchID, err)
	}
	return &record, nil
}

func (s *MinioStore) List(ctx context.Context) ([]string, error) {
	type entry struct {
		id       string
		modified time.Time
	}

	var entries []entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.keyPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list batch records: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		entries = append(entries, entry{
			id:       strings.TrimSuffix(name, recordSuffix),
			modified: obj.LastModified,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modified.After(entries[j].modified)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ping object store: %w", err)
	}
	if !exists {
		return fmt.Errorf("ping object store: bucket %s missing", s.bucket)
	}
	return nil
}

func (s *MinioStore) objectKey(batchID string) string {
	return s.keyPrefix + batchID + recordSuffix
}

// Compile-time check that MinioStore implements Store.
var _ Store = (*MinioStore)(nil)
