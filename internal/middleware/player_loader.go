package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kiwicki/asgardbot/internal/game"
	"github.com/kiwicki/asgardbot/internal/messenger"
)

// PlayerLoader returns middleware that registers the sender as a player and
// records channel membership in the roster. Registration is idempotent, so
// every update may pass through it. The engine is resolved through a getter
// because it is constructed after the bot it is attached to.
func PlayerLoader(engine func() *game.Engine, roster *messenger.Roster) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			eng := engine()
			if eng == nil {
				next(ctx, b, update)
				return
			}

			var from *models.User
			var chatID int64

			if update.Message != nil {
				from = update.Message.From
				chatID = update.Message.Chat.ID
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chatID = update.CallbackQuery.Message.Message.Chat.ID
				}
			}

			if from != nil && !from.IsBot {
				playerID := strconv.FormatInt(from.ID, 10)
				if err := eng.AddPlayer(playerID); err != nil {
					slog.Error("register player", "player", playerID, "error", err)
				}
				if chatID != 0 {
					roster.Observe(strconv.FormatInt(chatID, 10), playerID)
				}
			}

			next(ctx, b, update)
		}
	}
}
