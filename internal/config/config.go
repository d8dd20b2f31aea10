// Package config loads service configuration from an optional YAML
// file with environment-variable overrides. Env always wins so
// deployments can tweak a single knob without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string  `yaml:"addr"`
	DatabaseURL        string  `yaml:"databaseUrl"`
	RedisURL           string  `yaml:"redisUrl"`
	WeatherPollMinutes int     `yaml:"weatherPollMinutes"`
	RateRPS            float64 `yaml:"rateRps"`
	RateBurst          int     `yaml:"rateBurst"`
}

// Load reads CONFIG_FILE if set (or config.yaml if present), then
// applies env overrides: PORT, DATABASE_URL, REDIS_URL,
// WEATHER_POLL_MINUTES, RATE_RPS, RATE_BURST.
func Load() (Config, error) {
	cfg := Config{
		Addr:               ":8080",
		WeatherPollMinutes: 10,
		RateRPS:            5,
		RateBurst:          10,
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("WEATHER_POLL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WeatherPollMinutes = n
		}
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}
	return cfg, nil
}
