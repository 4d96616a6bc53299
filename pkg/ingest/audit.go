package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type importBatchModel struct {
	ID                string         `gorm:"primaryKey;column:id"`
	UserID            string         `gorm:"column:user_id;index"`
	ParsedRows        int            `gorm:"column:parsed_rows"`
	FilteredOut       int            `gorm:"column:filtered_out"`
	Inserted          int            `gorm:"column:inserted"`
	DuplicatesSkipped int            `gorm:"column:duplicates_skipped"`
	FalseDuplicates   datatypes.JSON `gorm:"column:false_duplicates"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
}

func (importBatchModel) TableName() string {
	return "import_batches"
}

// AuditRepository keeps one row per import batch so discrepancies between
// "rows in file" and "rows visible afterwards" stay explainable later.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&importBatchModel{})
}

func (r *AuditRepository) Record(ctx context.Context, summary *models.ImportSummary) error {
	falseDups, err := json.Marshal(summary.FalseDuplicates)
	if err != nil {
		return err
	}
	model := &importBatchModel{
		ID:                summary.BatchID,
		UserID:            summary.UserID,
		ParsedRows:        summary.ParsedRows,
		FilteredOut:       summary.FilteredOut,
		Inserted:          summary.Inserted,
		DuplicatesSkipped: summary.DuplicatesSkipped,
		FalseDuplicates:   datatypes.JSON(falseDups),
		CreatedAt:         summary.CompletedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *AuditRepository) List(ctx context.Context, userID string, limit int) ([]models.ImportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []importBatchModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ImportSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ImportSummary{
			BatchID:           row.ID,
			UserID:            row.UserID,
			ParsedRows:        row.ParsedRows,
			FilteredOut:       row.FilteredOut,
			Inserted:          row.Inserted,
			DuplicatesSkipped: row.DuplicatesSkipped,
			CompletedAt:       row.CreatedAt,
		}
		if len(row.FalseDuplicates) > 0 {
			_ = json.Unmarshal(row.FalseDuplicates, &summary.FalseDuplicates)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
