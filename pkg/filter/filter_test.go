package filter

import (
	"testing"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
)

func rec(ts time.Time, modality, bodyPart string) models.CanonicalRecord {
	return models.CanonicalRecord{
		DictationDatetime: ts,
		Modality:          modality,
		BodyPart:          bodyPart,
		WRVUEstimate:      1,
	}
}

func day(d int, hour int) time.Time {
	return time.Date(2024, time.January, d, hour, 0, 0, 0, time.Local)
}

func TestApplyZeroFilterCopiesInput(t *testing.T) {
	records := []models.CanonicalRecord{
		rec(day(1, 9), "CT", "Chest"),
		rec(day(2, 10), "MRI", "Head/Neck"),
	}

	out := Apply(records, Filter{})
	if len(out) != len(records) {
		t.Fatalf("got %d records, want %d", len(out), len(records))
	}
	out[0].Modality = "mutated"
	if records[0].Modality != "CT" {
		t.Error("Apply returned a view over the input slice")
	}
}

func TestApplyConjunction(t *testing.T) {
	records := []models.CanonicalRecord{
		rec(day(1, 9), "CT", "Chest"),
		rec(day(1, 22), "CT", "Chest"),
		rec(day(2, 9), "MRI", "Chest"),
		rec(day(5, 9), "CT", "Abdomen"),
		rec(day(9, 9), "CT", "Chest"),
	}

	start := day(1, 0)
	end := day(5, 0)
	startHour, endHour := 8, 17
	f := Filter{
		StartDate:  &start,
		EndDate:    &end,
		StartHour:  &startHour,
		EndHour:    &endHour,
		Modalities: []string{"CT"},
		BodyParts:  []string{"Chest"},
	}

	out := Apply(records, f)
	if len(out) != 1 {
		t.Fatalf("got %d records, want 1", len(out))
	}
	if !out[0].DictationDatetime.Equal(day(1, 9)) {
		t.Errorf("wrong record survived: %v", out[0].DictationDatetime)
	}
}

func TestApplyDateBoundsAreInclusive(t *testing.T) {
	records := []models.CanonicalRecord{
		rec(day(1, 23), "CT", "Chest"),
		rec(day(3, 0), "CT", "Chest"),
	}

	start := day(1, 12) // time component must not matter
	end := day(3, 1)
	out := Apply(records, Filter{StartDate: &start, EndDate: &end})
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
}

func TestApplyWeekdays(t *testing.T) {
	// 2024-01-01 was a Monday.
	records := []models.CanonicalRecord{
		rec(day(1, 9), "CT", "Chest"),
		rec(day(6, 9), "CT", "Chest"), // Saturday
	}

	out := Apply(records, Filter{Weekdays: []time.Weekday{time.Monday}})
	if len(out) != 1 || out[0].DictationDatetime.Weekday() != time.Monday {
		t.Fatalf("weekday filter failed: %d records", len(out))
	}
}

func TestClearingFilterRestoresFullSet(t *testing.T) {
	records := []models.CanonicalRecord{
		rec(day(1, 9), "CT", "Chest"),
		rec(day(2, 9), "MRI", "Head/Neck"),
	}

	narrowed := Apply(records, Filter{Modalities: []string{"CT"}})
	if len(narrowed) != 1 {
		t.Fatalf("narrowed to %d", len(narrowed))
	}
	restored := Apply(records, Filter{})
	if len(restored) != len(records) {
		t.Fatalf("restored %d, want %d", len(restored), len(records))
	}
}

func TestVocabulariesComeFromFullSet(t *testing.T) {
	records := []models.CanonicalRecord{
		rec(day(1, 9), "CT", "Chest"),
		rec(day(2, 9), "MRI", "Head/Neck"),
		rec(day(3, 9), "CT", "Abdomen"),
	}

	modalities, bodyParts := Vocabularies(records)
	if len(modalities) != 2 || modalities[0] != "CT" || modalities[1] != "MRI" {
		t.Errorf("modalities = %v", modalities)
	}
	if len(bodyParts) != 3 || bodyParts[0] != "Abdomen" {
		t.Errorf("bodyParts = %v", bodyParts)
	}
}
