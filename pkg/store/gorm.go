package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/radmetrics/platform/pkg/common/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type recordModel struct {
	ID                string    `gorm:"primaryKey;column:id"`
	UserID            string    `gorm:"column:user_id;uniqueIndex:idx_user_dictation"`
	DictationDatetime time.Time `gorm:"column:dictation_datetime;uniqueIndex:idx_user_dictation"`
	ExamDescription   string    `gorm:"column:exam_description"`
	WRVUEstimate      float64   `gorm:"column:wrvu_estimate"`
	Modality          string    `gorm:"column:modality"`
	BodyPart          string    `gorm:"column:body_part"`
	ExamType          string    `gorm:"column:exam_type"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (recordModel) TableName() string {
	return "rvu_records"
}

// GormStore is the gorm-backed RecordStore. The composite unique index on
// (user_id, dictation_datetime) is the final backstop against duplicate
// rows under concurrent imports.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&recordModel{})
}

func (s *GormStore) InsertIfAbsent(ctx context.Context, records []models.CanonicalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([]recordModel, 0, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, recordModel{
			ID:                id,
			UserID:            rec.UserID,
			DictationDatetime: rec.DictationDatetime,
			ExamDescription:   rec.ExamDescription,
			WRVUEstimate:      rec.WRVUEstimate,
			Modality:          rec.Modality,
			BodyPart:          rec.BodyPart,
			ExamType:          rec.ExamType,
			CreatedAt:         now,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dictation_datetime"}},
			DoNothing: true,
		}).
		Create(&rows)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (s *GormStore) QueryByUser(ctx context.Context, userID string, filter *QueryFilter) ([]models.CanonicalRecord, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("dictation_datetime ASC")
	if filter != nil {
		if filter.From != nil {
			query = query.Where("dictation_datetime >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("dictation_datetime <= ?", *filter.To)
		}
	}

	var rows []recordModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.CanonicalRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.CanonicalRecord{
			ID:                row.ID,
			UserID:            row.UserID,
			DictationDatetime: row.DictationDatetime,
			ExamDescription:   row.ExamDescription,
			WRVUEstimate:      row.WRVUEstimate,
			Modality:          row.Modality,
			BodyPart:          row.BodyPart,
			ExamType:          row.ExamType,
		})
	}
	return records, nil
}

func (s *GormStore) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&recordModel{})
	return result.RowsAffected, result.Error
}

func (s *GormStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&recordModel{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (s *GormStore) UpdateClassification(ctx context.Context, id, modality, bodyPart, examType string) error {
	result := s.db.WithContext(ctx).Model(&recordModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"modality":  modality,
			"body_part": bodyPart,
			"exam_type": examType,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
