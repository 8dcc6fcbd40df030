package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken     string `env:"BOT_TOKEN,required"`
	QuestChannel string `env:"QUEST_CHANNEL_ID,required"`
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"asgard.json"`

	// Optional YAML quest line loaded into an empty game on first start
	SeedFile string `env:"SEED_FILE"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Game event logging to a Telegram chat (0 disables)
	LogChatID int64 `env:"LOG_CHAT_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
