package config

import "time"

const (
	// Per-chat message cooldown
	AnswerCooldown = 2 * time.Second

	// Leaderboard rows shown by /top
	LeaderboardLimit = 10

	// Telegram limits
	MaxMessageLen = 4096
)
