package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/radmetrics/platform/pkg/classify"
	"github.com/radmetrics/platform/pkg/common/config"
	"github.com/radmetrics/platform/pkg/common/database"
	"github.com/radmetrics/platform/pkg/common/kafka"
	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/ingest"
	"github.com/radmetrics/platform/pkg/metrics"
	"github.com/radmetrics/platform/pkg/normalize"
	"github.com/radmetrics/platform/pkg/store"
)

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
	audit := ingest.NewAuditRepository(db)
	if err := audit.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit tables")
	}

	classifier, err := loadClassifier(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load classification rules")
	}
	normalizer := normalize.NewNormalizer(classifier)

	producer := kafka.NewProducer(cfg.ImportEventsTopic)
	defer producer.Close()

	ingestSvc := ingest.NewService(recordStore, normalizer, classifier,
		ingest.WithAudit(audit),
		ingest.WithProducer(producer),
		ingest.WithReclassifyBatch(cfg.ReclassifyBatchSize, cfg.ReclassifyWorkers),
	)

	cache := metrics.NewCache(database.GetRedis(), cfg.MetricsCacheTTL)
	metricsSvc := metrics.NewService(recordStore, cache, cfg.DefaultDailyGoal, metrics.Options{
		CaseMixTopN: cfg.CaseMixTopN,
	})

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	ingest.NewHTTPHandler(ingestSvc, recordStore, metricsSvc, cfg.MaxRequestBody).Register(api)
	metrics.NewHTTPHandler(metricsSvc).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("RVU Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down RVU Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()
	logger.Log.Info("RVU Service stopped")
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
