package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kiwicki/asgardbot/internal/config"
)

// throttleGate tracks the last message time per key inside a sliding window.
type throttleGate struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
	window   time.Duration
}

func newThrottleGate(window time.Duration) *throttleGate {
	return &throttleGate{lastSeen: make(map[int64]time.Time), window: window}
}

// allow reports whether a message under key may pass at now, recording it if
// so.
func (g *throttleGate) allow(key int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, seen := g.lastSeen[key]; seen && now.Sub(last) < g.window {
		return false
	}
	g.lastSeen[key] = now
	return true
}

// throttleKey picks the sender as the throttle key, falling back to the chat
// for channel posts that carry no sender. Keying by sender keeps one player's
// guess from throttling another player in the shared quest channel.
func throttleKey(msg *models.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

// Cooldown returns middleware that drops messages from a sender arriving
// faster than the answer cooldown. Keeps one rapid-fire player from flooding
// the engine with duplicate guesses.
func Cooldown() bot.Middleware {
	gate := newThrottleGate(config.AnswerCooldown)

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only messages are throttled, not callbacks.
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			key := throttleKey(update.Message)
			if !gate.allow(key, time.Now()) {
				slog.Debug("message throttled", "key", key)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: update.Message.Chat.ID,
					Text:   "⏳ Easy, warrior. One guess at a time.",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
