// Package app assembles the components selected by the configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"plower/internal/blobstore"
	"plower/internal/config"
	"plower/internal/docstore"
	"plower/internal/domain"
	"plower/internal/llmclient"
	"plower/internal/logger"
	"plower/internal/ocr"
	"plower/internal/prompt"
	"plower/internal/router"
	"plower/internal/service"
)

// App owns the long-lived resources behind the service.
type App struct {
	Config  *config.AppConfig
	Service *service.RAGServiceImpl
	Log     *logrus.Logger

	blobs     domain.BlobStore
	logCloser io.Closer
}

// New configures logging, opens the blob store and restores the saved
// documents. interactor answers credential prompts and confirmations.
func New(ctx context.Context, cfg *config.AppConfig, interactor domain.Interactor) (*App, error) {
	logCloser, err := logger.Configure(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	log := logger.GetLogger()

	blobs, err := blobstore.Open(ctx, cfg.Store)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}

	store := docstore.New(docstore.Config{
		DocumentsKey: cfg.Store.DocumentsKey,
		ExportDir:    cfg.Store.ExportDir,
		MaxFileBytes: cfg.Upload.MaxFileBytes,
	}, blobs, log)
	if err := store.Load(ctx); err != nil {
		_ = blobs.Close()
		_ = logCloser.Close()
		return nil, err
	}

	creds := router.NewCredentials(blobs, cfg.Store.CredentialKey, interactor)
	rt := router.New(router.Config{
		CloudModels:         cfg.Models.Cloud,
		LocalEndpoint:       cfg.Models.LocalEndpoint,
		CloudBaseURL:        cfg.Models.CloudBaseURL,
		Temperature:         cfg.Models.Temperature,
		LargeContextMarkers: cfg.Models.LargeContextMarkers,
		LargeContext:        cfg.Models.LargeContext,
		DefaultContext:      cfg.Models.DefaultContext,
	}, creds, log)
	client := llmclient.New(llmclient.Config{
		RetryMax: cfg.HTTP.RetryMax,
		Timeout:  time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
	}, log)

	svc := service.NewRAGService(service.Config{
		DefaultModel:    cfg.Models.Default,
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	}, store, rt, client, newRecognizer(cfg.OCR, creds), prompt.NewBuilder(cfg.Prompt.Language), log)

	log.WithFields(logrus.Fields{
		"store":     cfg.Store.Type,
		"documents": len(store.Durable()),
		"model":     cfg.Models.Default,
		"ocr":       cfg.OCR.Type,
	}).Info("plower started")
	return &App{Config: cfg, Service: svc, Log: log, blobs: blobs, logCloser: logCloser}, nil
}

func newRecognizer(cfg config.OCRConfig, creds *router.Credentials) ocr.Recognizer {
	if cfg.Type == "gemini" {
		return ocr.NewGemini(cfg.GeminiModel, creds)
	}
	return ocr.NewTesseract(cfg.Binary, cfg.Languages)
}

// Close releases the blob store and flushes the log file.
func (a *App) Close() error {
	err := a.blobs.Close()
	if cerr := a.logCloser.Close(); err == nil {
		err = cerr
	}
	return err
}
