package store

import (
	"context"
	"errors"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
)

var ErrNotFound = errors.New("record not found")

// QueryFilter narrows a store query. Fine-grained predicate filtering
// happens in memory (pkg/filter); the store only bounds the time range.
type QueryFilter struct {
	From *time.Time
	To   *time.Time
}

// RecordStore is the persistence contract the engine depends on. Identity
// of an observation is (user, dictation timestamp); implementations must
// enforce that key so concurrent imports cannot double-insert.
type RecordStore interface {
	// InsertIfAbsent inserts records whose (user, timestamp) key is not
	// already present and reports how many rows were actually inserted.
	// Key collisions are skipped, never errors.
	InsertIfAbsent(ctx context.Context, records []models.CanonicalRecord) (int, error)

	// QueryByUser returns a user's records ordered by dictation time.
	QueryByUser(ctx context.Context, userID string, filter *QueryFilter) ([]models.CanonicalRecord, error)

	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)

	// UpdateClassification rewrites the derived classification fields of a
	// stored record; description and RVU stay immutable.
	UpdateClassification(ctx context.Context, id, modality, bodyPart, examType string) error
}
