package container

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go-ocr-enhancer/internal/analyzer"
	"go-ocr-enhancer/internal/config"
	"go-ocr-enhancer/internal/factory"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/internal/observer"
	"go-ocr-enhancer/internal/ocr"
	"go-ocr-enhancer/internal/recorder"
	"go-ocr-enhancer/internal/service"
	"go-ocr-enhancer/internal/storage"
	"go-ocr-enhancer/internal/transport"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config      *config.Config
	engine      ocr.Engine
	runLog      *recorder.CSVLog
	mysqlSink   *recorder.MySQLSink
	store       storage.ArtifactStore
	metrics     *observer.MetricsObserver
	ocrPipeline service.OCRPipelineService
	handler     http.Handler
}

// NewContainer creates a new dependency injection container.
// A configured MySQL mirror must be reachable at startup.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)
	components := factory.NewComponentFactory()

	engine, err := components.EngineFactory.CreateEngine(factory.EngineType(cfg.OCREngine), factory.EngineOptions{
		Command: cfg.TesseractCmd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}
	if factory.EngineType(cfg.OCREngine) == factory.GosseractEngine {
		checkLanguageData(cfg.OCRLanguage)
	}

	store, err := components.StorageFactory.CreateStorage(ctx, factory.StorageType(cfg.StorageBackend), factory.StorageOptions{
		UploadDir:      cfg.UploadDir,
		ResultDir:      cfg.ResultDir,
		AzureAccount:   cfg.AzureAccount,
		AzureKey:       cfg.AzureKey,
		AzureContainer: cfg.AzureContainer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact storage: %w", err)
	}

	runLog := recorder.NewCSVLog(cfg.ResultsCSV)
	var sinks []recorder.Sink
	var mysqlSink *recorder.MySQLSink
	if cfg.MySQLDSN != "" {
		mysqlSink, err = recorder.OpenMySQLSink(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open run history mirror: %w", err)
		}
		sinks = append(sinks, mysqlSink)
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher(logger.Logger)
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	engineCfg := ocr.EngineConfig{
		Language:    cfg.OCRLanguage,
		EngineMode:  cfg.OCREngineMode,
		PageSegMode: cfg.OCRPageSegMode,
	}
	ocrPipeline := service.NewOCRPipelineService(service.Dependencies{
		Recognizer:      ocr.NewRecognizer(engine, engineCfg),
		Recorder:        recorder.NewRecorder(runLog, sinks...),
		Analyzer:        analyzer.NewQualityAnalyzer(),
		Store:           store,
		Fetcher:         storage.NewHTTPImageFetcher(cfg.MaxRequestBodySize, cfg.ImageURLAllowedHosts...),
		Events:          events,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})

	handler := transport.NewHandler(transport.Handler{
		Service: ocrPipeline,
		RunLog:  runLog,
		Store:   store,
		Metrics: metrics,
		Config:  cfg,
	})

	return &Container{
		config:      cfg,
		engine:      engine,
		runLog:      runLog,
		mysqlSink:   mysqlSink,
		store:       store,
		metrics:     metrics,
		ocrPipeline: ocrPipeline,
		handler:     handler,
	}, nil
}

// checkLanguageData warns when libtesseract has no trained data for lang.
// Runs still fail with engine_unavailable in that case.
func checkLanguageData(lang string) {
	langs, err := ocr.AvailableLanguages()
	if err != nil {
		logger.WithError(err).Warn("Could not list tesseract language data")
		return
	}
	if !slices.Contains(langs, lang) {
		logger.WithFields(logrus.Fields{
			"language":  lang,
			"available": langs,
		}).Warn("Configured OCR language is not installed")
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the pipeline shared by the HTTP layer and the batch evaluator
func (c *Container) Service() service.OCRPipelineService {
	return c.ocrPipeline
}

// Metrics returns the run counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// RunLog returns the CSV run log
func (c *Container) RunLog() *recorder.CSVLog {
	return c.runLog
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases external connections
func (c *Container) Close() error {
	if c.mysqlSink != nil {
		return c.mysqlSink.Close()
	}
	return nil
}
