package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kiwicki/asgardbot/internal/config"
	"github.com/kiwicki/asgardbot/internal/domain"
)

func (h *Handler) handleScore(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	playerID := strconv.FormatInt(update.Message.From.ID, 10)

	player, err := h.engine.PlayerByID(playerID)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   "You have not joined the quest yet. Send /start first.",
			})
			return
		}
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🛡 Your standing\n\nScore: %d\nTasks solved: %d\n", player.Score, len(player.CompletedTask))

	if len(player.SolveRank) > 0 {
		sb.WriteString("\nSolves:\n")
		ids := make([]int, 0, len(player.SolveRank))
		for id := range player.SolveRank {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Fprintf(&sb, "• Task %d — you were solver #%d\n", id, player.SolveRank[id])
		}
	}
	if wrong := totalWrong(player.WrongAttempts); wrong > 0 {
		fmt.Fprintf(&sb, "\nWrong guesses along the way: %d\n", wrong)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
}

func (h *Handler) handleTop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	standings := h.engine.Leaderboard()
	if len(standings) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "The halls are empty. No players yet.",
		})
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Leaderboard\n\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, s := range standings {
		if i >= config.LeaderboardLimit {
			break
		}
		mark := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			mark = medals[i]
		}
		fmt.Fprintf(&sb, "%s %s — %d points (%d solved)\n", mark, s.PlayerID, s.Score, s.Solved)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
}

func totalWrong(attempts map[int]int) int {
	total := 0
	for _, n := range attempts {
		total += n
	}
	return total
}
