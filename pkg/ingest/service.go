package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/kafka"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/radmetrics/platform/pkg/normalize"
	"github.com/radmetrics/platform/pkg/store"
)

// Service runs the import and deduplication protocol. Identity of an
// observation is (user, dictation timestamp): an incoming row matching a
// stored record's key and description is skipped silently, while a key
// match with a different description is surfaced as a false duplicate and
// never overwrites the stored row.
type Service struct {
	store      store.RecordStore
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	audit      *AuditRepository
	producer   *kafka.Producer
	batchSize  int
	maxWorkers int
}

type Option func(*Service)

func WithAudit(audit *AuditRepository) Option {
	return func(s *Service) { s.audit = audit }
}

func WithProducer(producer *kafka.Producer) Option {
	return func(s *Service) { s.producer = producer }
}

func WithReclassifyBatch(batchSize, maxWorkers int) Option {
	return func(s *Service) {
		if batchSize > 0 {
			s.batchSize = batchSize
		}
		if maxWorkers > 0 {
			s.maxWorkers = maxWorkers
		}
	}
}

func NewService(recordStore store.RecordStore, normalizer *normalize.Normalizer, classifier *classify.Classifier, opts ...Option) *Service {
	svc := &Service{
		store:      recordStore,
		normalizer: normalizer,
		classifier: classifier,
		batchSize:  50,
		maxWorkers: 4,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Ingest normalizes raw rows and merges the survivors into the user's
// store. The returned summary accounts for every parsed row: ParsedRows =
// FilteredOut + Inserted + DuplicatesSkipped + len(FalseDuplicates).
// False duplicates never block the rest of the batch.
func (s *Service) Ingest(ctx context.Context, userID string, rows []models.RawImportRow) (*models.ImportSummary, error) {
	records, dropped, err := s.normalizer.Normalize(userID, rows)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DictationDatetime.Before(records[j].DictationDatetime)
	})

	existing, err := s.store.QueryByUser(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("loading existing records: %w", err)
	}
	byTimestamp := make(map[int64]models.CanonicalRecord, len(existing))
	for _, rec := range existing {
		byTimestamp[rec.DictationDatetime.UnixNano()] = rec
	}

	summary := &models.ImportSummary{
		BatchID:     uuid.New().String(),
		UserID:      userID,
		ParsedRows:  len(rows),
		FilteredOut: dropped,
	}

	toInsert := make([]models.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		key := rec.DictationDatetime.UnixNano()
		prior, seen := byTimestamp[key]
		if !seen {
			byTimestamp[key] = rec
			toInsert = append(toInsert, rec)
			continue
		}
		if prior.ExamDescription == rec.ExamDescription {
			summary.DuplicatesSkipped++
			continue
		}
		summary.FalseDuplicates = append(summary.FalseDuplicates, models.FalseDuplicate{
			DictationDatetime:   rec.DictationDatetime,
			ExistingDescription: prior.ExamDescription,
			ExistingRVU:         prior.WRVUEstimate,
			IncomingDescription: rec.ExamDescription,
			IncomingRVU:         rec.WRVUEstimate,
		})
	}

	inserted, err := s.store.InsertIfAbsent(ctx, toInsert)
	if err != nil {
		return nil, fmt.Errorf("inserting records: %w", err)
	}
	summary.Inserted = inserted
	// Rows lost to a concurrent import of the same key are duplicates, not
	// failures: the store's unique constraint is the backstop.
	summary.DuplicatesSkipped += len(toInsert) - inserted
	summary.CompletedAt = time.Now().UTC()

	if s.audit != nil {
		if err := s.audit.Record(ctx, summary); err != nil {
			logger.Log.WithError(err).Warn("failed to record import batch audit")
		}
	}
	s.publishImportEvent(ctx, summary)

	logger.Log.WithFields(map[string]interface{}{
		"user_id":          userID,
		"batch_id":         summary.BatchID,
		"parsed":           summary.ParsedRows,
		"inserted":         summary.Inserted,
		"duplicates":       summary.DuplicatesSkipped,
		"false_duplicates": len(summary.FalseDuplicates),
	}).Info("import batch completed")

	return summary, nil
}

func (s *Service) publishImportEvent(ctx context.Context, summary *models.ImportSummary) {
	if s.producer == nil {
		return
	}
	payload := map[string]interface{}{
		"batch_id":         summary.BatchID,
		"user_id":          summary.UserID,
		"parsed_rows":      summary.ParsedRows,
		"filtered_out":     summary.FilteredOut,
		"inserted":         summary.Inserted,
		"duplicates":       summary.DuplicatesSkipped,
		"false_duplicates": len(summary.FalseDuplicates),
	}
	// Events are advisory; a broker outage must not fail the import.
	if err := s.producer.PublishEvent(ctx, "import-completed", "rvu-service", payload); err != nil {
		logger.Log.WithError(err).Warn("failed to publish import event")
	}
}

// Reclassify reapplies the current rule set to a user's stored records in
// fixed-size batches with a bounded worker pool. Per-record failures are
// counted and never abort the remaining batches.
func (s *Service) Reclassify(ctx context.Context, userID string) (models.ReclassifySummary, error) {
	records, err := s.store.QueryByUser(ctx, userID, nil)
	if err != nil {
		return models.ReclassifySummary{}, err
	}

	summary := models.ReclassifySummary{UserID: userID, Scanned: len(records)}
	var mu sync.Mutex
	workers := make(chan struct{}, s.maxWorkers)

	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		var wg sync.WaitGroup
		for _, rec := range records[start:end] {
			result := s.classifier.Classify(rec.ExamDescription)
			bodyPart := result.BodyPartLabel()
			if rec.Modality == result.Modality && rec.BodyPart == bodyPart && rec.ExamType == result.ExamType {
				continue
			}

			wg.Add(1)
			workers <- struct{}{}
			go func(rec models.CanonicalRecord, result classify.Result, bodyPart string) {
				defer wg.Done()
				defer func() { <-workers }()

				err := s.store.UpdateClassification(ctx, rec.ID, result.Modality, bodyPart, result.ExamType)
				mu.Lock()
				if err != nil {
					summary.Failed++
				} else {
					summary.Updated++
				}
				mu.Unlock()
				if err != nil {
					logger.Log.WithError(err).WithField("record_id", rec.ID).Warn("reclassification update failed")
				}
			}(rec, result, bodyPart)
		}
		wg.Wait()
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": userID,
		"scanned": summary.Scanned,
		"updated": summary.Updated,
		"failed":  summary.Failed,
	}).Info("reclassification completed")

	return summary, nil
}
