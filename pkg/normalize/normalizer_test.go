package normalize

import (
	"testing"

	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/models"
)

func TestParseTimestampTwelveHourBoundaries(t *testing.T) {
	cases := []struct {
		text string
		hour int
	}{
		{"01/15/2024 02:30:00 PM", 14},
		{"01/15/2024 02:30:00 AM", 2},
		{"01/15/2024 12:00:00 AM", 0},
		{"01/15/2024 12:15:00 PM", 12},
		{"01/15/2024 11:59:00 PM", 23},
		{"2024-01-15 14:30:00", 14},
	}

	for _, tc := range cases {
		parsed, ok := ParseTimestamp(tc.text)
		if !ok {
			t.Errorf("ParseTimestamp(%q) failed", tc.text)
			continue
		}
		if parsed.Hour() != tc.hour {
			t.Errorf("ParseTimestamp(%q).Hour() = %d, want %d", tc.text, parsed.Hour(), tc.hour)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, text := range []string{"", "  ", "not a date", "13/45/2024 09:00:00 AM"} {
		if _, ok := ParseTimestamp(text); ok {
			t.Errorf("ParseTimestamp(%q) unexpectedly succeeded", text)
		}
	}
}

func TestNormalizeDropsInvalidRows(t *testing.T) {
	n := NewNormalizer(classify.Default())

	rows := []models.RawImportRow{
		{TimestampText: "01/15/2024 09:00:00 AM", ExamDescription: "CT CHEST WITHOUT CONTRAST", RVUText: "1.50"},
		{TimestampText: "garbage", ExamDescription: "XR CHEST 2 VIEWS", RVUText: "0.22"},
		{TimestampText: "01/15/2024 09:05:00 AM", ExamDescription: "XR CHEST 2 VIEWS", RVUText: "-1"},
		{TimestampText: "01/15/2024 09:10:00 AM", ExamDescription: "MRI BRAIN", RVUText: "2,100.5"},
	}

	records, dropped, err := n.Normalize("user-1", rows)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first := records[0]
	if first.Modality != "CT" || first.BodyPart != "Chest" {
		t.Errorf("classification not applied: %+v", first)
	}
	if first.WRVUEstimate != 1.5 {
		t.Errorf("rvu = %f", first.WRVUEstimate)
	}
	if records[1].WRVUEstimate != 2100.5 {
		t.Errorf("comma-grouped rvu = %f", records[1].WRVUEstimate)
	}
	if first.UserID != "user-1" || first.ID == "" {
		t.Errorf("identity fields not set: %+v", first)
	}
}

func TestNormalizeAllRowsInvalidReturnsBatchError(t *testing.T) {
	n := NewNormalizer(classify.Default())

	rows := []models.RawImportRow{
		{TimestampText: "bad", ExamDescription: "CT CHEST", RVUText: "1.0"},
		{TimestampText: "also bad", ExamDescription: "XR CHEST", RVUText: "0.2"},
	}

	_, dropped, err := n.Normalize("user-1", rows)
	if err == nil {
		t.Fatal("expected BatchError")
	}
	if !IsBatchError(err) {
		t.Fatalf("expected BatchError, got %T", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestNormalizeEmptyBatchIsNotAnError(t *testing.T) {
	n := NewNormalizer(classify.Default())

	records, dropped, err := n.Normalize("user-1", nil)
	if err != nil {
		t.Fatalf("Normalize(nil) failed: %v", err)
	}
	if len(records) != 0 || dropped != 0 {
		t.Errorf("got %d records, %d dropped", len(records), dropped)
	}
}

func TestNormalizeUsesExamCodeWhenPresent(t *testing.T) {
	n := NewNormalizer(classify.Default())

	rows := []models.RawImportRow{
		{
			TimestampText:   "01/15/2024 10:00:00 AM",
			ExamDescription: "CH ABD PELV STUDY",
			RVUText:         "3.2",
			ExamCode:        "CTCHABPE",
		},
	}

	records, _, err := n.Normalize("user-1", rows)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if records[0].Modality != "CT" {
		t.Errorf("modality = %q, want CT from exam code", records[0].Modality)
	}
	if records[0].BodyPart != "Chest, Abdomen, Pelvis" {
		t.Errorf("body part = %q", records[0].BodyPart)
	}
}
