package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
)

func TestWriteCSV(t *testing.T) {
	records := []models.CanonicalRecord{
		{
			DictationDatetime: time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local),
			ExamDescription:   "CT CHEST WITHOUT CONTRAST",
			WRVUEstimate:      1.5,
			Modality:          "CT",
			BodyPart:          "Chest",
			ExamType:          "CT Chest w/o Contrast",
		},
		{
			DictationDatetime: time.Date(2024, 1, 16, 9, 5, 30, 0, time.Local),
			ExamDescription:   "XR CHEST 2 VIEWS",
			WRVUEstimate:      0.22,
			Modality:          "Radiography",
			BodyPart:          "Chest",
			ExamType:          "XR Chest",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}

	if rows[0][0] != "date" || rows[0][7] != "wrvu" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	if first[0] != "2024-01-15" || first[1] != "14:30:00" || first[2] != "Monday" {
		t.Errorf("unexpected timestamp columns: %v", first[:3])
	}
	if first[3] != "CT CHEST WITHOUT CONTRAST" || first[4] != "CT" || first[7] != "1.50" {
		t.Errorf("unexpected data columns: %v", first)
	}

	second := rows[2]
	if second[1] != "09:05:30" || second[7] != "0.22" {
		t.Errorf("unexpected second row: %v", second)
	}
}

func TestWriteCSVEmptySetStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected only header, got %v (err %v)", rows, err)
	}
}

// Descriptions containing commas and quotes must round-trip through the
// encoder intact.
func TestWriteCSVEscapesDescriptions(t *testing.T) {
	records := []models.CanonicalRecord{
		{
			DictationDatetime: time.Date(2024, 1, 15, 9, 0, 0, 0, time.Local),
			ExamDescription:   `CT CHEST, ABDOMEN "COMBO"`,
			WRVUEstimate:      3.0,
			Modality:          "CT",
			BodyPart:          "Chest, Abdomen",
			ExamType:          "CT Chest, Abdomen",
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if rows[1][3] != `CT CHEST, ABDOMEN "COMBO"` {
		t.Errorf("description did not round-trip: %q", rows[1][3])
	}
}
