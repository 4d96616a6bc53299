package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/radmetrics/platform/pkg/common/models"
)

var header = []string{
	"date",
	"time",
	"weekday",
	"exam_description",
	"modality",
	"body_part",
	"exam_type",
	"wrvu",
}

// WriteCSV streams the records as a flat CSV projection, one row per
// record in input order. Timestamps split into local date and time columns
// so spreadsheet tooling can group without parsing.
func WriteCSV(w io.Writer, records []models.CanonicalRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.DictationDatetime.Format("2006-01-02"),
			rec.DictationDatetime.Format("15:04:05"),
			rec.DictationDatetime.Weekday().String(),
			rec.ExamDescription,
			rec.Modality,
			rec.BodyPart,
			rec.ExamType,
			strconv.FormatFloat(rec.WRVUEstimate, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
