package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/config"
	"github.com/radmetrics/platform/pkg/common/database"
	"github.com/radmetrics/platform/pkg/common/kafka"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/common/models"
	"github.com/radmetrics/platform/pkg/ingest"
	"github.com/radmetrics/platform/pkg/metrics"
	"github.com/radmetrics/platform/pkg/normalize"
	"github.com/radmetrics/platform/pkg/store"
)

// The worker consumes reclassification requests so rule-table updates can
// be rolled out across stored records without blocking the API.
func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	recordStore := store.NewGormStore(db)
	if err := recordStore.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate record tables")
	}

	classifier, err := loadClassifier(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load classification rules")
	}
	normalizer := normalize.NewNormalizer(classifier)

	svc := ingest.NewService(recordStore, normalizer, classifier,
		ingest.WithReclassifyBatch(cfg.ReclassifyBatchSize, cfg.ReclassifyWorkers),
	)
	cache := metrics.NewCache(database.GetRedis(), cfg.MetricsCacheTTL)

	consumer := kafka.NewConsumer(cfg.ReclassifyTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down reclassify worker...")
		cancel()
	}()

	handler := func(ctx context.Context, event models.Event) error {
		userID, _ := event.Data["user_id"].(string)
		if userID == "" {
			logger.Log.WithField("event_id", event.ID).Warn("discarding reclassify event without user_id")
			return nil
		}

		summary, err := svc.Reclassify(ctx, userID)
		if err != nil {
			return err
		}
		if summary.Updated > 0 {
			cache.Invalidate(ctx, userID)
		}
		return nil
	}

	logger.Log.WithField("topic", cfg.ReclassifyTopic).Info("Reclassify worker started")
	if err := consumer.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Error("consumer stopped")
	}

	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("Reclassify worker stopped")
}

func loadClassifier(cfg *config.Config) (*classify.Classifier, error) {
	modalityRules, err := classify.LoadRules(cfg.ModalityRulesPath, classify.DefaultModalityRules)
	if err != nil {
		return nil, fmt.Errorf("modality rules: %w", err)
	}
	bodyPartRules, err := classify.LoadRules(cfg.BodyPartRulesPath, classify.DefaultBodyPartRules)
	if err != nil {
		return nil, fmt.Errorf("body part rules: %w", err)
	}
	return classify.New(modalityRules, bodyPartRules, classify.DefaultBodyPartFallbackRules()), nil
}
