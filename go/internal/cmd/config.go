package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keyduel/keyduel/go/internal/models"
)

// Config is the YAML server configuration. Everything has a default so the
// server boots without a config file.
type Config struct {
	Passages struct {
		Texts []string `yaml:"texts"`
		Seed  int64    `yaml:"seed"`
	} `yaml:"passages"`

	Contest struct {
		CountdownTicks      int `yaml:"countdown_ticks"`
		TickIntervalSec     int `yaml:"tick_interval_sec"`
		InviteTimeoutSec    int `yaml:"invite_timeout_sec"`
		ForfeitGraceSec     int `yaml:"forfeit_grace_sec"`
		HeartbeatTimeoutSec int `yaml:"heartbeat_timeout_sec"`
	} `yaml:"contest"`
}

func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// contestSettings maps the config onto contest defaults, filling gaps.
func (c *Config) contestSettings() models.ContestSettings {
	settings := models.ContestSettings{
		CountdownTicks:   c.Contest.CountdownTicks,
		TickInterval:     time.Duration(c.Contest.TickIntervalSec) * time.Second,
		InviteTimeout:    time.Duration(c.Contest.InviteTimeoutSec) * time.Second,
		ForfeitGrace:     time.Duration(c.Contest.ForfeitGraceSec) * time.Second,
		HeartbeatTimeout: time.Duration(c.Contest.HeartbeatTimeoutSec) * time.Second,
	}
	if settings.CountdownTicks <= 0 {
		settings.CountdownTicks = 3
	}
	if settings.TickInterval <= 0 {
		settings.TickInterval = time.Second
	}
	if settings.InviteTimeout <= 0 {
		settings.InviteTimeout = 30 * time.Second
	}
	if settings.ForfeitGrace <= 0 {
		settings.ForfeitGrace = 10 * time.Second
	}
	if settings.HeartbeatTimeout <= 0 {
		settings.HeartbeatTimeout = 10 * time.Second
	}
	return settings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
