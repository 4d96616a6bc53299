package ingest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/radmetrics/platform/pkg/normalize"
	"github.com/radmetrics/platform/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps records in memory with the same uniqueness semantics as
// the gorm store: one row per (user, dictation timestamp).
type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.CanonicalRecord // key: user|unixnano
	failIDs map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]models.CanonicalRecord),
		failIDs: make(map[string]bool),
	}
}

func key(userID string, ts time.Time) string {
	return userID + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (f *fakeStore) InsertIfAbsent(_ context.Context, records []models.CanonicalRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		k := key(rec.UserID, rec.DictationDatetime)
		if _, exists := f.records[k]; exists {
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		f.records[k] = rec
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) QueryByUser(_ context.Context, userID string, filter *store.QueryFilter) ([]models.CanonicalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CanonicalRecord
	for _, rec := range f.records {
		if rec.UserID != userID {
			continue
		}
		if filter != nil {
			if filter.From != nil && rec.DictationDatetime.Before(*filter.From) {
				continue
			}
			if filter.To != nil && rec.DictationDatetime.After(*filter.To) {
				continue
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DictationDatetime.Before(out[j].DictationDatetime)
	})
	return out, nil
}

func (f *fakeStore) DeleteAllByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k, rec := range f.records {
		if rec.UserID == userID {
			delete(f.records, k)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeStore) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, rec := range f.records {
		if rec.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateClassification(_ context.Context, id, modality, bodyPart, examType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return assert.AnError
	}
	for k, rec := range f.records {
		if rec.ID == id {
			rec.Modality = modality
			rec.BodyPart = bodyPart
			rec.ExamType = examType
			f.records[k] = rec
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestService(fs *fakeStore) *Service {
	classifier := classify.Default()
	return NewService(fs, normalize.NewNormalizer(classifier), classifier)
}

func row(ts, description, rvu string) models.RawImportRow {
	return models.RawImportRow{TimestampText: ts, ExamDescription: description, RVUText: rvu}
}

func TestIngestAccountsForEveryParsedRow(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	rows := []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
		row("01/15/2024 09:05:00 AM", "XR CHEST 2 VIEWS", "0.22"),
		row("not a timestamp", "MRI BRAIN", "2.30"),
	}

	summary, err := svc.Ingest(context.Background(), "u1", rows)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ParsedRows)
	assert.Equal(t, 1, summary.FilteredOut)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, summary.ParsedRows,
		summary.FilteredOut+summary.Inserted+summary.DuplicatesSkipped+len(summary.FalseDuplicates))
}

func TestIngestIsIdempotent(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	rows := []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
		row("01/15/2024 09:05:00 AM", "XR CHEST 2 VIEWS", "0.22"),
	}

	first, err := svc.Ingest(context.Background(), "u1", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.Ingest(context.Background(), "u1", rows)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.DuplicatesSkipped)
	assert.Empty(t, second.FalseDuplicates)

	count, err := fs.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestIngestSurfacesFalseDuplicates(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	_, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
	})
	require.NoError(t, err)

	summary, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "MRI BRAIN WITHOUT CONTRAST", "2.30"),
	})
	require.NoError(t, err)

	require.Len(t, summary.FalseDuplicates, 1)
	fd := summary.FalseDuplicates[0]
	assert.Equal(t, "CT CHEST WITHOUT CONTRAST", fd.ExistingDescription)
	assert.Equal(t, "MRI BRAIN WITHOUT CONTRAST", fd.IncomingDescription)
	assert.Equal(t, 0, summary.Inserted)

	// The stored record is untouched.
	records, err := fs.QueryByUser(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CT CHEST WITHOUT CONTRAST", records[0].ExamDescription)
}

func TestIngestFalseDuplicateDoesNotBlockBatch(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	_, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
	})
	require.NoError(t, err)

	summary, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "MRI BRAIN WITHOUT CONTRAST", "2.30"),
		row("01/15/2024 09:30:00 AM", "XR CHEST 2 VIEWS", "0.22"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Inserted)
	assert.Len(t, summary.FalseDuplicates, 1)
}

func TestIngestIntraBatchCollisions(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	summary, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
		row("01/15/2024 09:00:00 AM", "CT CHEST WITHOUT CONTRAST", "1.50"),
		row("01/15/2024 09:00:00 AM", "MRI BRAIN WITHOUT CONTRAST", "2.30"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Len(t, summary.FalseDuplicates, 1)
}

func TestIngestAllRowsInvalid(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	_, err := svc.Ingest(context.Background(), "u1", []models.RawImportRow{
		row("bad", "CT CHEST", "1.50"),
		row("worse", "XR CHEST", "abc"),
	})
	require.Error(t, err)
	assert.True(t, normalize.IsBatchError(err))
}

func TestReclassifyUpdatesStaleRecords(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "NM SPECT/CT BONE SCAN", "1.50"),
		row("01/15/2024 09:05:00 AM", "CT CHEST WITHOUT CONTRAST", "1.20"),
	})
	require.NoError(t, err)

	// Simulate records classified under an older rule table.
	fs.mu.Lock()
	for k, rec := range fs.records {
		if rec.ExamDescription == "NM SPECT/CT BONE SCAN" {
			rec.Modality = "CT"
			rec.BodyPart = "Unknown"
			rec.ExamType = "CT Other"
			fs.records[k] = rec
		}
	}
	fs.mu.Unlock()

	summary, err := svc.Reclassify(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Failed)

	records, err := fs.QueryByUser(ctx, "u1", nil)
	require.NoError(t, err)
	for _, rec := range records {
		if rec.ExamDescription == "NM SPECT/CT BONE SCAN" {
			assert.Equal(t, "Nuclear Medicine", rec.Modality)
			assert.Equal(t, "Whole Body", rec.BodyPart)
		}
	}
}

func TestReclassifyCountsPartialFailures(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "u1", []models.RawImportRow{
		row("01/15/2024 09:00:00 AM", "NM SPECT/CT BONE SCAN", "1.50"),
		row("01/15/2024 09:05:00 AM", "PET/CT SKULL BASE TO MID THIGH", "3.00"),
	})
	require.NoError(t, err)

	// Mark all records stale, one of them failing on update.
	fs.mu.Lock()
	first := true
	for k, rec := range fs.records {
		rec.Modality = "Other"
		rec.BodyPart = "Unknown"
		rec.ExamType = "Other Other"
		fs.records[k] = rec
		if first {
			fs.failIDs[rec.ID] = true
			first = false
		}
	}
	fs.mu.Unlock()

	summary, err := svc.Reclassify(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Failed)
}
