package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/apronworks/apron-agent/internal/agent"
	"github.com/apronworks/apron-agent/internal/airportdata"
	"github.com/apronworks/apron-agent/internal/audit"
	"github.com/apronworks/apron-agent/internal/config"
	"github.com/apronworks/apron-agent/internal/confirm"
	"github.com/apronworks/apron-agent/internal/db"
	"github.com/apronworks/apron-agent/internal/embeddings"
	"github.com/apronworks/apron-agent/internal/format"
	"github.com/apronworks/apron-agent/internal/llm"
	"github.com/apronworks/apron-agent/internal/memory"
	"github.com/apronworks/apron-agent/internal/metrics"
	"github.com/apronworks/apron-agent/internal/monitor"
	"github.com/apronworks/apron-agent/internal/notifications"
	"github.com/apronworks/apron-agent/internal/retrieval"
	"github.com/apronworks/apron-agent/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `apron-agent init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildLogger creates the process logger. Verbose mode switches to the
// human-readable development encoder at debug level.
func buildLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// buildPipeline wires the full agent from config. The returned audit store
// shares the pipeline's database; the cleanup function stops background
// loops and closes the database.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*agent.Pipeline, *audit.Store, func(), error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database %s: %w", cfg.DatabasePath, err)
	}
	data := airportdata.NewStore(database)
	audits := audit.NewStore(database)

	provider, err := llm.NewProvider(string(cfg.Model.Provider), cfg.Model.CompletionID)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("creating model provider: %w", err)
	}
	provider = llm.NewRateLimitedProvider(provider, cfg.Model.RPMLimit)
	embedder, err := embeddings.NewEmbedder(string(cfg.Model.Provider), cfg.Model.EmbeddingID)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	gateway := llm.NewGateway(provider, embedder, llm.GatewayOptions{
		CompletionModel: cfg.Model.CompletionID,
		EmbeddingModel:  cfg.Model.EmbeddingID,
		Timeout:         msToDuration(cfg.Model.TimeoutMS),
		MaxRetries:      cfg.Model.MaxRetries,
	}, logger)

	store, err := vectorStoreFromConfig(cfg, embedder, logger)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	workmem := memory.NewWorking(memory.Options{}, logger)
	longterm := memory.NewLongTerm(embedder, logger)

	retriever := retrieval.NewRetriever(data, store, longterm, workmem, retrieval.RetrieverOptions{
		VectorTopK:    cfg.Pipeline.Retrieval.MaxResults,
		SimilarityMin: float32(cfg.Pipeline.Retrieval.SimilarityThreshold),
	}, logger)

	confirms := confirm.NewStore(confirm.StoreOptions{
		TTL:           msToDuration(cfg.Confirmation.TTLMS),
		SweepInterval: msToDuration(cfg.Confirmation.SweepMS),
	}, logger)

	col := metrics.New(metrics.Options{
		HistogramBuckets: cfg.Metrics.HistogramBucketsMS,
		SamplingInterval: msToDuration(cfg.Metrics.SamplingMS),
		Retention:        msToDuration(cfg.Metrics.RetentionMS),
	}, logger)

	mon := monitor.New(monitor.Options{
		Interval:   msToDuration(cfg.Monitor.SampleMS),
		MaxSamples: cfg.Monitor.MaxSamples,
		Thresholds: monitor.Thresholds{
			SystemCPUPercent: cfg.Monitor.Thresholds.CPUPercent,
			SystemMemPercent: cfg.Monitor.Thresholds.MemoryPercent,
			HeapAllocBytes:   cfg.Monitor.Thresholds.HeapBytes,
			SchedulerLag:     msToDuration(cfg.Monitor.Thresholds.EventLoopMS),
			RequestLatency:   msToDuration(cfg.Monitor.Thresholds.RequestMS),
			Goroutines:       cfg.Monitor.Thresholds.Goroutines,
		},
		LatencySource: func() float64 { return col.GetPercentiles().P95 },
	}, logger)

	if len(cfg.Notify.Webhooks) > 0 {
		var hooks []notifications.Webhook
		for _, h := range cfg.Notify.Webhooks {
			hooks = append(hooks, notifications.Webhook{
				URL:         h.URL,
				MinSeverity: notifications.Severity(h.MinSeverity),
			})
		}
		notifications.NewDispatcher(hooks, logger).Subscribe(mon)
	}

	pipeline := agent.NewPipeline(agent.Deps{
		Gateway:   gateway,
		Retriever: retriever,
		Formatter: format.New(logger),
		Confirms:  confirms,
		WorkMem:   workmem,
		LongTerm:  longterm,
		Metrics:   col,
		Monitor:   mon,
		Audit:     audits,
	}, agent.PipelineOptions{
		HistoryLimit:  cfg.Pipeline.HistoryLimit,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
	}, logger)

	cleanup := func() {
		pipeline.Destroy()
		database.Close()
	}
	return pipeline, audits, cleanup, nil
}

// vectorStoreFromConfig builds the semantic store and loads any persisted
// index. A missing index is not fatal; search results are simply empty
// until documents are ingested.
func vectorStoreFromConfig(cfg *config.Config, embedder embeddings.Embedder, logger *zap.Logger) (retrieval.VectorSearcher, error) {
	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	dir := filepath.Join(cfg.DataDir, "vectordb")
	if _, statErr := os.Stat(dir); statErr == nil {
		if err := store.Load(context.Background(), dir); err != nil {
			logger.Warn("could not load vector store", zap.String("dir", dir), zap.Error(err))
		}
	}
	return store, nil
}
