package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/spf13/cast"
)

// Timestamp layouts accepted from import sources, most specific first.
// The 03:04:05 PM layouts handle the 12-hour boundary (12 AM -> 0,
// 12 PM -> 12).
var timestampLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 03:04 PM",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"01/02/2006",
	"2006-01-02",
}

// Normalizer turns raw import rows into canonical records, dropping rows
// whose timestamp or RVU fails validation.
type Normalizer struct {
	classifier *classify.Classifier
}

func NewNormalizer(classifier *classify.Classifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// Normalize validates, classifies and assembles each row. Invalid rows are
// dropped silently and tallied; input order is preserved for survivors. A
// non-empty batch with zero survivors returns a BatchError so callers can
// distinguish a systemic format problem from scattered bad rows.
func (n *Normalizer) Normalize(userID string, rows []models.RawImportRow) ([]models.CanonicalRecord, int, error) {
	records := make([]models.CanonicalRecord, 0, len(rows))
	dropped := 0
	var sample *models.RawImportRow

	for i := range rows {
		row := rows[i]

		dictatedAt, ok := ParseTimestamp(row.TimestampText)
		if !ok {
			dropped++
			if sample == nil {
				sample = &rows[i]
			}
			continue
		}

		rvu, ok := parseRVU(row.RVUText)
		if !ok {
			dropped++
			if sample == nil {
				sample = &rows[i]
			}
			continue
		}

		var result classify.Result
		if row.ExamCode != "" {
			result = n.classifier.ClassifyCode(row.ExamCode, row.ExamDescription)
		} else {
			result = n.classifier.Classify(row.ExamDescription)
		}

		records = append(records, models.CanonicalRecord{
			ID:                uuid.New().String(),
			UserID:            userID,
			DictationDatetime: dictatedAt,
			ExamDescription:   row.ExamDescription,
			WRVUEstimate:      rvu,
			Modality:          result.Modality,
			BodyPart:          result.BodyPartLabel(),
			ExamType:          result.ExamType,
		})
	}

	if len(records) == 0 && len(rows) > 0 {
		return nil, dropped, &BatchError{Parsed: len(rows), Dropped: dropped, Sample: sample}
	}

	if dropped > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"parsed":  len(rows),
			"dropped": dropped,
		}).Warn("dropped invalid rows during normalization")
	}

	return records, dropped, nil
}

// ParseTimestamp tries the known layouts in order. A failure across all of
// them yields ok=false and the row is expected to be dropped.
func ParseTimestamp(text string) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func parseRVU(text string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if cleaned == "" {
		return 0, false
	}
	value, err := cast.ToFloat64E(cleaned)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false
	}
	return value, true
}
