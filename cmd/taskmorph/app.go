package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/quailyquaily/taskmorph/assistant"
	"github.com/quailyquaily/taskmorph/db"
	"github.com/quailyquaily/taskmorph/internal/logutil"
	"github.com/quailyquaily/taskmorph/llm"
	"github.com/quailyquaily/taskmorph/providers/openai"
	"github.com/quailyquaily/taskmorph/store"
)

type appDeps struct {
	Logger     *slog.Logger
	Store      *store.Store
	Dispatcher *assistant.Dispatcher
}

// buildDeps wires the store and the assistant from viper. Both serve and
// telegram start from the same wiring.
func buildDeps() (*appDeps, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	dbCfg := db.DefaultConfig()
	dbCfg.DSN = viper.GetString("db.dsn")
	gdb, err := db.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	st := store.New(gdb)

	cfg := assistant.DefaultConfig()
	if v := viper.GetInt("assistant.history_max_messages"); v > 0 {
		cfg.HistoryLimit = v
	}
	if v := viper.GetInt("assistant.max_context_chars"); v > 0 {
		cfg.MaxContextChars = v
	}
	if v := viper.GetFloat64("assistant.warn_threshold"); v > 0 {
		cfg.WarnThreshold = v
	}
	if v := viper.GetFloat64("assistant.temperature"); v > 0 {
		cfg.Temperature = float32(v)
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.DefaultModel = v
	}

	endpoint := viper.GetString("llm.endpoint")
	dispatcher := &assistant.Dispatcher{
		Log:      st,
		Tasks:    st,
		Settings: st,
		NewLLM: func(apiKey string) llm.Client {
			return openai.New(apiKey, endpoint)
		},
		Config: cfg,
		Logger: logger,
	}

	return &appDeps{Logger: logger, Store: st, Dispatcher: dispatcher}, nil
}
