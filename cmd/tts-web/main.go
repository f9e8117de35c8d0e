// main package for the tts-web service
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-web/internal/artifact"
	"github.com/book-expert/tts-web/internal/combiner"
	"github.com/book-expert/tts-web/internal/config"
	"github.com/book-expert/tts-web/internal/core"
	"github.com/book-expert/tts-web/internal/jobstore"
	"github.com/book-expert/tts-web/internal/notify"
	"github.com/book-expert/tts-web/internal/orchestrator"
	"github.com/book-expert/tts-web/internal/provider"
	"github.com/book-expert/tts-web/internal/server"
	"github.com/nats-io/nats.go"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-web.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// setupNats connects to NATS and returns the artifact store and completion
// notifier backed by it. Both are nil when no NATS URL is configured.
func setupNats(
	cfg *config.Config,
	log *logger.Logger,
) (core.ArtifactStore, core.CompletionNotifier, error) {
	if cfg.NATS.URL == "" {
		return nil, nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var artifacts core.ArtifactStore

	if cfg.NATS.AudioObjectStoreBucket != "" {
		jetstreamContext, jsErr := natsConnection.JetStream()
		if jsErr != nil {
			return nil, nil, fmt.Errorf("failed to get JetStream context: %w", jsErr)
		}

		artifacts, err = artifact.NewNatsStore(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create audio object store: %w", err)
		}

		log.Info("Audio artifacts stored in NATS bucket %s.", cfg.NATS.AudioObjectStoreBucket)
	}

	var notifier core.CompletionNotifier

	if cfg.NATS.AudioChunkCreatedSubject != "" {
		notifier = notify.NewNats(natsConnection, cfg.NATS.AudioChunkCreatedSubject)

		log.Info("Completion events published on %s.", cfg.NATS.AudioChunkCreatedSubject)
	}

	return artifacts, notifier, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	natsArtifacts, notifier, err := setupNats(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to set up NATS: %v", err)

		return err
	}

	artifacts := natsArtifacts
	if artifacts == nil {
		artifacts = artifact.NewFileStore(cfg.Server.AudioDir)
	}

	store := jobstore.New()
	synthesizer := provider.New(
		cfg.Provider.BaseURL,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
		finalLog,
	)
	audioCombiner := combiner.New(
		cfg.Combiner.TempDir,
		cfg.Combiner.FfmpegPath,
		cfg.Combiner.FfprobePath,
		finalLog,
	)

	orch := orchestrator.New(store, synthesizer, audioCombiner, artifacts, finalLog,
		orchestrator.Options{
			MaxChunkSize: cfg.Chunker.MaxChunkSize,
			Notifier:     notifier,
		})

	srv := server.New(orch, store, artifacts, cfg.Server.StaticDir, finalLog)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	finalLog.System("tts-web listening on %s", addr)

	err = srv.Listen(addr)
	if err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
