package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := NewGormStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func record(userID string, ts time.Time, description string, rvu float64) models.CanonicalRecord {
	return models.CanonicalRecord{
		UserID:            userID,
		DictationDatetime: ts,
		ExamDescription:   description,
		WRVUEstimate:      rvu,
		Modality:          "CT",
		BodyPart:          "Chest",
		ExamType:          "CT Chest",
	}
}

func TestInsertIfAbsentSkipsExistingKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	inserted, err := s.InsertIfAbsent(ctx, []models.CanonicalRecord{
		record("u1", ts, "CT CHEST", 1.5),
		record("u1", ts.Add(time.Minute), "XR CHEST 2 VIEWS", 0.22),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Same keys again: the unique index absorbs them.
	inserted, err = s.InsertIfAbsent(ctx, []models.CanonicalRecord{
		record("u1", ts, "CT CHEST", 1.5),
		record("u1", ts.Add(2*time.Minute), "MRI BRAIN", 2.3),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	count, err := s.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestSameTimestampDifferentUsersBothInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	inserted, err := s.InsertIfAbsent(ctx, []models.CanonicalRecord{
		record("u1", ts, "CT CHEST", 1.5),
		record("u2", ts, "CT CHEST", 1.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
}

func TestQueryByUserOrderedWithBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	var batch []models.CanonicalRecord
	for i := 0; i < 5; i++ {
		batch = append(batch, record("u1", base.AddDate(0, 0, i), fmt.Sprintf("EXAM %d", i), 1))
	}
	_, err := s.InsertIfAbsent(ctx, batch)
	require.NoError(t, err)

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 3)
	records, err := s.QueryByUser(ctx, "u1", &QueryFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i-1].DictationDatetime.Before(records[i].DictationDatetime))
	}
}

func TestQueryByUserIsolatesUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	_, err := s.InsertIfAbsent(ctx, []models.CanonicalRecord{
		record("u1", ts, "CT CHEST", 1.5),
		record("u2", ts.Add(time.Hour), "MRI BRAIN", 2.3),
	})
	require.NoError(t, err)

	records, err := s.QueryByUser(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0].UserID)
}

func TestUpdateClassification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	_, err := s.InsertIfAbsent(ctx, []models.CanonicalRecord{record("u1", ts, "NM SPECT/CT BONE SCAN", 1.5)})
	require.NoError(t, err)

	records, err := s.QueryByUser(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	err = s.UpdateClassification(ctx, records[0].ID, "Nuclear Medicine", "Whole Body", "Nuclear Medicine Whole Body")
	require.NoError(t, err)

	records, err = s.QueryByUser(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Nuclear Medicine", records[0].Modality)
	assert.Equal(t, "Whole Body", records[0].BodyPart)

	err = s.UpdateClassification(ctx, "no-such-id", "CT", "Chest", "CT Chest")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAllByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	_, err := s.InsertIfAbsent(ctx, []models.CanonicalRecord{
		record("u1", ts, "CT CHEST", 1.5),
		record("u1", ts.Add(time.Hour), "MRI BRAIN", 2.3),
		record("u2", ts, "CT CHEST", 1.5),
	})
	require.NoError(t, err)

	deleted, err := s.DeleteAllByUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := s.CountByUser(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
