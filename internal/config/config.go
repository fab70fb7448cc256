package config

import (
	"fmt"
	"os"
)

type Config struct {
	DBFile  string
	APIAddr string
}

func Load() (*Config, error) {
	cfg := &Config{
		DBFile:  getEnv("ARTEL_DB", "artel.db"),
		APIAddr: getEnv("API_ADDR", ":8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBFile == "" {
		return fmt.Errorf("ARTEL_DB must not be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
