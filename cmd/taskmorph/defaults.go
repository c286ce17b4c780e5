package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// LLM
	viper.SetDefault("llm.endpoint", "https://api.openai.com")
	viper.SetDefault("llm.model", "gpt-4o")

	// Assistant context pipeline
	viper.SetDefault("assistant.history_max_messages", 30)
	viper.SetDefault("assistant.max_context_chars", 100000)
	viper.SetDefault("assistant.warn_threshold", 0.85)
	viper.SetDefault("assistant.temperature", 0.2)

	// HTTP server
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allow_anonymous", false)
	viper.SetDefault("server.jwt_secret", "")
	viper.SetDefault("server.token_ttl", 7*24*time.Hour)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.webhook_url", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_concurrency", 3)

	// Database
	viper.SetDefault("db.dsn", "")
}
