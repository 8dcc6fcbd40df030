package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kiwicki/asgardbot/internal/game"
)

// HandleText is the default text handler: every non-command message lands
// here. A reply to a delivered task message carries that task's context;
// anything else in a private chat is ambient chatter for the engine's outer
// branch. Group chatter without task context is left alone.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		return
	}

	playerID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	taskID := h.resolveTaskContext(msg, playerID, chatID)

	if taskID == nil && msg.Chat.Type != "private" {
		return
	}

	res, err := h.engine.HandleAnswer(ctx, game.Event{
		Text:      msg.Text,
		PlayerID:  playerID,
		ChannelID: chatID,
		TaskID:    taskID,
	})
	if err != nil {
		// Snapshot write failed; the in-memory state may now be ahead
		// of disk. Loud log, generic notice.
		slog.Error("handle answer", "player", playerID, "error", err)
		h.gameLog.LogError(err, "handle answer")
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: msg.Chat.ID, Text: genericFailure})
		return
	}

	reply := res.Reply
	if res.Kind == game.RightAnswer && taskID != nil {
		if player, perr := h.engine.PlayerByID(playerID); perr == nil {
			rank := player.SolveRank[*taskID]
			reply = fmt.Sprintf("%s\n\nYou were solver #%d of this task. Your score: %d.", reply, rank, player.Score)
			if task, terr := h.engine.TaskByID(*taskID); terr == nil {
				h.gameLog.LogSolve(playerID, *taskID, task.Points, rank)
			}
		}
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            reply,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		// The answer is already scored; only the notification was lost.
		slog.Error("send answer reply", "player", playerID, "error", err)
	}
}

// resolveTaskContext maps a reply to a bot message back to a task id.
// Direct deliveries record the recipient as the receipt chat, broadcasts
// record the channel, so both are tried.
func (h *Handler) resolveTaskContext(msg *models.Message, playerID, chatID string) *int {
	if msg.ReplyToMessage == nil {
		return nil
	}
	replyID := msg.ReplyToMessage.ID
	if id, ok := h.engine.ResolveReceipt(playerID, replyID); ok {
		return &id
	}
	if id, ok := h.engine.ResolveReceipt(chatID, replyID); ok {
		return &id
	}
	if id, ok := h.engine.ResolveReceipt(h.cfg.QuestChannel, replyID); ok {
		return &id
	}
	return nil
}
