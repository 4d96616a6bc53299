package models

import (
	"time"
)

// RawImportRow is one logical row handed over by a file/paste parser:
// timestamp text, exam description text and an RVU value that may arrive
// as a string or a number depending on the source format.
type RawImportRow struct {
	TimestampText   string `json:"timestamp_text"`
	ExamDescription string `json:"exam_description"`
	RVUText         string `json:"rvu_text"`
	ExamCode        string `json:"exam_code,omitempty"`
}

// CanonicalRecord is the structured, immutable form of a dictated exam.
// ExamDescription is preserved verbatim for display and audit; the
// classification fields are recomputed only by bulk reclassification.
type CanonicalRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	DictationDatetime time.Time `json:"dictation_datetime"`
	ExamDescription   string    `json:"exam_description"`
	WRVUEstimate      float64   `json:"wrvu_estimate"`
	Modality          string    `json:"modality"`
	BodyPart          string    `json:"body_part"`
	ExamType          string    `json:"exam_type"`
}

// FalseDuplicate reports two different studies colliding on the same
// (user, dictation timestamp) identity key. Surfaced as a warning, never
// an error; the stored record is left untouched.
type FalseDuplicate struct {
	DictationDatetime   time.Time `json:"dictation_datetime"`
	ExistingDescription string    `json:"existing_description"`
	ExistingRVU         float64   `json:"existing_rvu"`
	IncomingDescription string    `json:"incoming_description"`
	IncomingRVU         float64   `json:"incoming_rvu"`
}

// ImportSummary accounts for every row of an import batch. ParsedRows =
// FilteredOut + Inserted + DuplicatesSkipped + len(FalseDuplicates), so a
// caller can always explain "rows in file" vs "rows visible afterwards".
type ImportSummary struct {
	BatchID           string           `json:"batch_id"`
	UserID            string           `json:"user_id"`
	ParsedRows        int              `json:"parsed_rows"`
	FilteredOut       int              `json:"filtered_out"`
	Inserted          int              `json:"inserted"`
	DuplicatesSkipped int              `json:"duplicates_skipped"`
	FalseDuplicates   []FalseDuplicate `json:"false_duplicates,omitempty"`
	CompletedAt       time.Time        `json:"completed_at"`
}

// ReclassifySummary reports a bulk rule-set reapplication run. Partial
// failure is expected: failed records are counted, not fatal.
type ReclassifySummary struct {
	UserID  string `json:"user_id"`
	Scanned int    `json:"scanned"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // import-completed, reclassify-requested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
