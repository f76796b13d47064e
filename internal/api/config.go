package api

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddr     string `toml:"listen_addr"`
	DatabaseURL    string `toml:"database_url"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	LogLevel       string `toml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":8080",
		MaxUploadBytes: 64 << 20,
		LogLevel:       "info",
	}
}

// LoadConfigFromEnv starts from the defaults, overlays the TOML file named by
// TUNELAB_CONFIG when set, then applies TUNELAB_* variables on top.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("TUNELAB_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getenvDefault("TUNELAB_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getenvDefault("TUNELAB_DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = getenvDefault("TUNELAB_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("TUNELAB_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TUNELAB_MAX_UPLOAD_BYTES: %q", v)
		}
		cfg.MaxUploadBytes = n
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
