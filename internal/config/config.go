package config

import (
	"os"

	"github.com/pkg/errors"
)

// ErrConfiguration is the fatal startup failure class: the application
// renders only a configuration-error surface and performs no backend
// calls.
var ErrConfiguration = errors.New("configuration invalid")

type Config struct {
	ListenAddr      string
	DBPath          string
	WebDir          string
	BaseURL         string
	APIKey          string
	ChatModel       string
	ClassifierModel string
}

// FromEnv reads configuration from the environment, applying defaults
// for everything except the API key.
func FromEnv() Config {
	return Config{
		ListenAddr:      envOr("QUILL_LISTEN_ADDR", ":8100"),
		DBPath:          envOr("QUILL_DB_PATH", "quill.db"),
		WebDir:          envOr("QUILL_WEB_DIR", "web"),
		BaseURL:         envOr("QUILL_BASE_URL", "https://api.openai.com/v1"),
		APIKey:          os.Getenv("QUILL_API_KEY"),
		ChatModel:       envOr("QUILL_CHAT_MODEL", "gpt-4o-mini"),
		ClassifierModel: envOr("QUILL_CLASSIFIER_MODEL", "gpt-4o-mini"),
	}
}

// Validate is checked once at startup.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.Wrap(ErrConfiguration, "QUILL_API_KEY is not set")
	}
	if c.BaseURL == "" {
		return errors.Wrap(ErrConfiguration, "QUILL_BASE_URL is empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
