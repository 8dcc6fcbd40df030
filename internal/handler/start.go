package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const welcomeText = `⚔️ Welcome to the Asgard quest!

Tasks will arrive in the quest channel or right here. Reply to a task message
with your answer. Right answers earn points, wrong ones are counted too.

/score — your standing
/top — the leaderboard
/help — this message again`

const helpText = `⚔️ How the quest works:

• Reply to a task message with your answer.
• Each task is worth points; solve it once, keep the points forever.
• Some tasks unlock a follow-up task the moment you solve them.

/score — your standing
/top — the leaderboard`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	// PlayerLoader middleware has already registered the sender.
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   welcomeText,
	})
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   helpText,
	})
}
