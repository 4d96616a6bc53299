package filter

import (
	"sort"
	"time"

	"github.com/radmetrics/platform/pkg/common/models"
)

// Filter narrows a record set to the active subset metrics are computed
// over. All predicates are conjunctive; a nil/empty field imposes no
// restriction. The hour range compares the local hour component only and
// does not span midnight.
type Filter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	StartHour  *int
	EndHour    *int
	Modalities []string
	BodyParts  []string
	Weekdays   []time.Weekday
}

func (f Filter) IsZero() bool {
	return f.StartDate == nil && f.EndDate == nil &&
		f.StartHour == nil && f.EndHour == nil &&
		len(f.Modalities) == 0 && len(f.BodyParts) == 0 && len(f.Weekdays) == 0
}

// Apply returns the records matching every active predicate, preserving
// input order. It never mutates its input.
func Apply(records []models.CanonicalRecord, f Filter) []models.CanonicalRecord {
	if f.IsZero() {
		out := make([]models.CanonicalRecord, len(records))
		copy(out, records)
		return out
	}

	modalities := toSet(f.Modalities)
	bodyParts := toSet(f.BodyParts)
	weekdays := make(map[time.Weekday]struct{}, len(f.Weekdays))
	for _, d := range f.Weekdays {
		weekdays[d] = struct{}{}
	}

	out := make([]models.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		if !matchesDate(rec.DictationDatetime, f.StartDate, f.EndDate) {
			continue
		}
		if !matchesHour(rec.DictationDatetime.Hour(), f.StartHour, f.EndHour) {
			continue
		}
		if len(modalities) > 0 {
			if _, ok := modalities[rec.Modality]; !ok {
				continue
			}
		}
		if len(bodyParts) > 0 {
			if _, ok := bodyParts[rec.BodyPart]; !ok {
				continue
			}
		}
		if len(weekdays) > 0 {
			if _, ok := weekdays[rec.DictationDatetime.Weekday()]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// Vocabularies returns the distinct modality and body-part labels present
// in the full record set, sorted. Callers building filter UIs must derive
// options from the unfiltered set so choices don't disappear as filters
// narrow the active subset.
func Vocabularies(records []models.CanonicalRecord) (modalities, bodyParts []string) {
	modalitySet := make(map[string]struct{})
	bodyPartSet := make(map[string]struct{})
	for _, rec := range records {
		if rec.Modality != "" {
			modalitySet[rec.Modality] = struct{}{}
		}
		if rec.BodyPart != "" {
			bodyPartSet[rec.BodyPart] = struct{}{}
		}
	}
	modalities = sortedKeys(modalitySet)
	bodyParts = sortedKeys(bodyPartSet)
	return modalities, bodyParts
}

func matchesDate(ts time.Time, start, end *time.Time) bool {
	date := truncateToDate(ts)
	if start != nil && date.Before(truncateToDate(*start)) {
		return false
	}
	if end != nil && date.After(truncateToDate(*end)) {
		return false
	}
	return true
}

func matchesHour(hour int, start, end *int) bool {
	if start != nil && hour < *start {
		return false
	}
	if end != nil && hour > *end {
		return false
	}
	return true
}

func truncateToDate(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
