package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"github.com/kiwicki/asgardbot/internal/config"
)

// GameLogger mirrors notable game events into a Telegram chat so the people
// running the quest can watch it unfold. Disabled when no chat is configured.
type GameLogger struct {
	bot    *bot.Bot
	chatID int64
}

func NewGameLogger(b *bot.Bot, chatID int64) *GameLogger {
	return &GameLogger{bot: b, chatID: chatID}
}

func (l *GameLogger) log(message string) {
	if l.chatID == 0 {
		return
	}
	if len([]rune(message)) > config.MaxMessageLen {
		message = string([]rune(message)[:config.MaxMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: l.chatID,
		Text:   message,
	})
	if err != nil {
		slog.Error("failed to send game log", "error", err)
	}
}

func (l *GameLogger) LogSolve(playerID string, taskID, points, rank int) {
	l.log(fmt.Sprintf("🏆 Solve\n\nPlayer: %s\nTask: %d\nPoints: +%d\nRank: %d", playerID, taskID, points, rank))
}

func (l *GameLogger) LogAdminAction(adminID int64, action string) {
	l.log(fmt.Sprintf("🛠 Admin action\n\nAdmin: %d\n%s", adminID, action))
}

func (l *GameLogger) LogError(err error, where string) {
	l.log(fmt.Sprintf("❌ Error\n\nContext: %s\nError: %s\nTime: %s",
		where, err.Error(), time.Now().Format("2006-01-02 15:04:05")))
}
