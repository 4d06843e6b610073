// Package batchstore persists batch membership records in object storage.
// Records are write-once read-many: Put is create-only and there is no
// update path.
package batchstore

import (
	"context"
	"errors"

	"github.com/devarsh/jobfleet/pkg/models"
)

var (
	// ErrNotFound means no record exists for the batch ID.
	ErrNotFound = errors.New("batch record not found")
	// ErrConflict means a record already exists for the batch ID. Batch IDs
	// are timestamp-based so this is practically unreachable, but it is a
	// defined outcome rather than a silent overwrite.
	ErrConflict = errors.New("batch record already exists")
)

// Store is the batch record persistence interface.
type Store interface {
	// Put creates the record. Fails with ErrConflict if the batch ID is taken.
	Put(ctx context.Context, record *models.BatchRecord) error
	// Get fetches the record, or ErrNotFound.
	Get(ctx context.Context, batchID string) (*models.BatchRecord, error)
	// List returns the known batch IDs, most recently created first.
	List(ctx context.Context) ([]string, error)
	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}
