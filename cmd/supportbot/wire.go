package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"supportbot/internal/config"
	"supportbot/internal/embedding"
	"supportbot/internal/embedding/hashed"
	"supportbot/internal/embedding/openai"
	"supportbot/internal/orders"
	"supportbot/internal/retrieval"
	"supportbot/internal/service"
	supporterr "supportbot/pkg/errors"
)

// loadConfig resolves the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")

	var cfg *config.AppConfig
	var err error
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	if dir, _ := flags.GetString("data-dir"); dir != "" {
		cfg.Data.Dir = dir
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newEmbedder(cfg *config.AppConfig, logger *slog.Logger) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case config.EmbedderHashed:
		return hashed.New(cfg.Embedder.Hashed.Dimension), nil
	case config.EmbedderOpenAI:
		o := cfg.Embedder.OpenAI
		return openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Dimension:  o.Dimension,
			Timeout:    o.Timeout(),
			BatchSize:  o.BatchSize,
			MaxRetries: o.MaxRetries,
			Logger:     logger,
		})
	default:
		return nil, supporterr.New(supporterr.CodeConfigValidate, "unknown embedder type",
			supporterr.Field("type", cfg.Embedder.Type))
	}
}

func newRetriever(cfg *config.AppConfig, logger *slog.Logger) (*retrieval.Retriever, error) {
	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	d := cfg.Data
	return retrieval.New(retrieval.Config{
		CorpusPath:   d.Path(d.Corpus),
		IndexPath:    d.Path(d.Index),
		MetadataPath: d.Path(d.Metadata),
	}, emb, retrieval.WithLogger(logger)), nil
}

func openOrders(cfg *config.AppConfig) (*orders.Store, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeCLISetupFailure, "creating data directory",
			supporterr.FieldPath(cfg.Data.Dir))
	}
	return orders.Open(cfg.Data.Path(cfg.Data.OrdersDB))
}

// openExistingOrders opens the order store only when it has been imported
// before; a missing store is not an error.
func openExistingOrders(cfg *config.AppConfig) (*orders.Store, error) {
	path := cfg.Data.Path(cfg.Data.OrdersDB)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return orders.Open(path)
}

// newService wires a started SupportService. The returned close func
// releases the order store.
func newService(cmd *cobra.Command, cfg *config.AppConfig, logger *slog.Logger) (*service.SupportService, func(), error) {
	r, err := newRetriever(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := openExistingOrders(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("closing order store", "error", err)
			}
		}
	}

	var lookup service.OrderLookup
	if store != nil {
		lookup = store
	} else {
		logger.Debug("no order store found, order lookups disabled", "path", cfg.Data.Path(cfg.Data.OrdersDB))
	}
	svc := service.NewSupportService(r, lookup, service.Config{
		TopK:             cfg.Retrieval.TopK,
		OverviewSentence: cfg.Summarizer.MaxSentences,
	}, logger)
	if err := svc.Start(cmd.Context()); err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}
