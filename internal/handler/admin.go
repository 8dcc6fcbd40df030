package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/kiwicki/asgardbot/internal/content"
	"github.com/kiwicki/asgardbot/internal/domain"
	tg "github.com/kiwicki/asgardbot/internal/telegram"
)

const newTaskUsage = `Usage: /newtask <points> <answers> <description...>

answers: pipe-separated accepted answers, or "-" for an announcement-only task.
Optional key=value tokens before the description:
  requires=<id>  mode=direct  case=strict  at=<RFC3339>`

// adminOnly returns the sender if the update is a message from an admin,
// nil otherwise.
func (h *Handler) adminOnly(ctx context.Context, b *bot.Bot, update *models.Update) *models.User {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}
	from := update.Message.From
	if !h.cfg.IsAdmin(from.ID) {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "🚫 Only the Allfather's chosen may do that.",
		})
		return nil
	}
	return from
}

func (h *Handler) handleNewTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID
	parts := strings.Fields(update.Message.Text)

	if len(parts) < 4 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: newTaskUsage})
		return
	}

	points, err := strconv.Atoi(parts[1])
	if err != nil || points < 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Points must be a non-negative number."})
		return
	}

	var answers []string
	if parts[2] != "-" {
		answers = strings.Split(parts[2], "|")
	}

	task := &domain.Task{
		Points:         points,
		CorrectAnswers: answers,
		DeliveryMode:   domain.DeliveryBroadcast,
	}

	rest := parts[3:]
	for len(rest) > 0 {
		token := rest[0]
		switch {
		case strings.HasPrefix(token, "requires="):
			id, err := strconv.Atoi(strings.TrimPrefix(token, "requires="))
			if err != nil {
				b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Bad requires= value."})
				return
			}
			task.PrerequisiteID = &id
		case token == "mode=direct":
			task.DeliveryMode = domain.DeliveryDirect
		case token == "mode=broadcast":
			task.DeliveryMode = domain.DeliveryBroadcast
		case token == "case=strict":
			task.CaseSensitive = true
		case strings.HasPrefix(token, "at="):
			at, err := time.Parse(time.RFC3339, strings.TrimPrefix(token, "at="))
			if err != nil {
				b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Bad at= value, want RFC3339."})
				return
			}
			task.ScheduledAt = &at
		default:
			task.Description = strings.Join(rest, " ")
			rest = nil
			continue
		}
		rest = rest[1:]
	}

	if task.Description == "" {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: newTaskUsage})
		return
	}

	id, err := h.engine.AddTask(task)
	if err != nil {
		slog.Error("add task", "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	h.gameLog.LogAdminAction(admin.ID, fmt.Sprintf("Created task %d (%d points)", id, points))
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Task %d created. Send it with /sendtask %d", id, id),
	})
}

func (h *Handler) handleEditTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID
	parts := strings.Fields(update.Message.Text)

	if len(parts) < 4 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Usage: /edittask <id> <points|answers|case|mode|requires|schedule|desc> <value...>",
		})
		return
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Bad task id."})
		return
	}

	patch, perr := buildPatch(parts[2], parts[3:])
	if perr != "" {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: perr})
		return
	}

	task, err := h.engine.EditTask(id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ No such task."})
			return
		}
		slog.Error("edit task", "task", id, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	// Rewrite already delivered copies so players see the edited text.
	updated := 0
	for _, r := range task.DeliveryReceipts {
		if r.ScheduleID != "" {
			continue
		}
		if err := h.messenger.Update(ctx, r, task.Render()); err != nil {
			slog.Warn("update delivered task message", "task", id, "error", err)
			continue
		}
		updated++
	}

	h.gameLog.LogAdminAction(admin.ID, fmt.Sprintf("Edited task %d (%s)", id, parts[2]))
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Task %d updated (%d delivered copies rewritten).", id, updated),
	})
}

// buildPatch turns an /edittask field+value into a typed patch. Returns a
// user-facing error message when the input is unusable.
func buildPatch(field string, values []string) (domain.TaskPatch, string) {
	var patch domain.TaskPatch
	raw := strings.Join(values, " ")

	switch field {
	case "points":
		points, err := strconv.Atoi(raw)
		if err != nil || points < 0 {
			return patch, "❌ Points must be a non-negative number."
		}
		patch.Points = &points
	case "answers":
		if raw == "-" {
			patch.CorrectAnswers = []string{}
		} else {
			patch.CorrectAnswers = strings.Split(raw, "|")
		}
	case "case":
		strict := raw == "strict"
		if !strict && raw != "any" {
			return patch, "❌ case wants strict or any."
		}
		patch.CaseSensitive = &strict
	case "mode":
		mode := domain.DeliveryMode(raw)
		if mode != domain.DeliveryBroadcast && mode != domain.DeliveryDirect {
			return patch, "❌ mode wants broadcast or direct."
		}
		patch.DeliveryMode = &mode
	case "requires":
		if raw == "-" {
			patch.ClearPrereq = true
		} else {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return patch, "❌ requires wants a task id or -."
			}
			patch.PrerequisiteID = &id
		}
	case "schedule":
		if raw == "-" {
			patch.ClearSchedule = true
		} else {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return patch, "❌ schedule wants RFC3339 or -."
			}
			patch.ScheduledAt = &at
		}
	case "desc":
		patch.Description = &raw
	default:
		return patch, "❌ Unknown field. Use points, answers, case, mode, requires, schedule or desc."
	}
	return patch, ""
}

func (h *Handler) handleDeleteTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID

	id, ok := parseTaskIDArg(update.Message.Text)
	if !ok {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /deltask <id>"})
		return
	}

	h.deleteTask(ctx, b, chatID, admin.ID, id)
}

func (h *Handler) handleSendTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID

	id, ok := parseTaskIDArg(update.Message.Text)
	if !ok {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /sendtask <id>"})
		return
	}

	h.sendTask(ctx, b, chatID, admin.ID, id)
}

func (h *Handler) handleResetTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID

	id, ok := parseTaskIDArg(update.Message.Text)
	if !ok {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /resettask <id>"})
		return
	}

	if err := h.engine.ResetTaskDeliveries(id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ No such task."})
			return
		}
		slog.Error("reset task deliveries", "task", id, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	h.gameLog.LogAdminAction(admin.ID, fmt.Sprintf("Reset deliveries of task %d", id))
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Task %d delivery receipts cleared. It can be sent again.", id),
	})
}

func (h *Handler) handleComplete(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID
	parts := strings.Fields(update.Message.Text)

	if len(parts) != 3 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /complete <player_id> <task_id>"})
		return
	}

	playerID := parts[1]
	taskID, err := strconv.Atoi(parts[2])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Bad task id."})
		return
	}

	res, err := h.engine.CompleteForPlayer(ctx, playerID, taskID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ No such task."})
		case errors.Is(err, domain.ErrTaskAlreadyDone):
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "That player already completed this task."})
		default:
			slog.Error("complete for player", "player", playerID, "task", taskID, "error", err)
			b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		}
		return
	}

	h.gameLog.LogAdminAction(admin.ID, fmt.Sprintf("Manually completed task %d for %s", taskID, playerID))
	b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: res.Reply})
}

func (h *Handler) handleLoadTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID
	parts := strings.Fields(update.Message.Text)

	if len(parts) != 2 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Usage: /loadtasks <path to YAML seed file>"})
		return
	}

	seeds, err := content.Load(parts[1])
	if err != nil {
		slog.Error("load task seeds", "path", parts[1], "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("❌ Could not load seeds: %v", err),
		})
		return
	}

	ids, err := content.Import(h.engine, seeds)
	if err != nil {
		slog.Error("import task seeds", "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	h.gameLog.LogAdminAction(admin.ID, fmt.Sprintf("Imported %d tasks from %s", len(ids), parts[1]))
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Imported %d tasks: %s", len(ids), joinInts(ids)),
	})
}

func (h *Handler) handleRoster(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID

	members, err := h.messenger.ListChannelMembers(ctx, h.cfg.QuestChannel)
	if err != nil || len(members) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "No members seen in the quest channel yet."})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("👥 Seen in the quest channel (%d):\n%s", len(members), strings.Join(members, "\n")),
	})
}

func (h *Handler) handleTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin := h.adminOnly(ctx, b, update)
	if admin == nil {
		return
	}
	chatID := update.Message.Chat.ID

	tasks := h.engine.Tasks()
	if len(tasks) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "📋 No tasks yet. Create one with /newtask."})
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Tasks\n\n")
	var rows [][]models.InlineKeyboardButton
	for _, t := range tasks {
		status := "not delivered"
		if t.Delivered() {
			status = fmt.Sprintf("delivered ×%d", len(t.DeliveryReceipts))
		}
		prereq := ""
		if t.PrerequisiteID != nil {
			prereq = fmt.Sprintf(", unlocked by %d", *t.PrerequisiteID)
		}
		fmt.Fprintf(&sb, "• %d: %dp, %s, %s%s, solved by %d\n",
			t.ID, t.Points, t.DeliveryMode, status, prereq, t.SolvedCount)
		rows = append(rows, tg.ButtonRow(
			tg.InlineButton(fmt.Sprintf("📨 Send %d", t.ID), fmt.Sprintf("send_task_%d", t.ID)),
			tg.InlineButton(fmt.Sprintf("🗑 Delete %d", t.ID), fmt.Sprintf("del_task_%d", t.ID)),
		))
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        sb.String(),
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

func (h *Handler) handleSendTaskCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	adminID, chatID, id, ok := h.taskCallback(ctx, b, update, "send_task_")
	if !ok {
		return
	}
	h.sendTask(ctx, b, chatID, adminID, id)
}

func (h *Handler) handleDeleteTaskCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	adminID, chatID, id, ok := h.taskCallback(ctx, b, update, "del_task_")
	if !ok {
		return
	}
	h.deleteTask(ctx, b, chatID, adminID, id)
}

// taskCallback acknowledges a task-list callback and extracts the task id,
// enforcing admin access.
func (h *Handler) taskCallback(ctx context.Context, b *bot.Bot, update *models.Update, prefix string) (int64, int64, int, bool) {
	cb := update.CallbackQuery
	if cb == nil {
		return 0, 0, 0, false
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID})

	if !h.cfg.IsAdmin(cb.From.ID) {
		return 0, 0, 0, false
	}

	var chatID int64
	if msg := cb.Message.Message; msg != nil {
		chatID = msg.Chat.ID
	}
	id, err := strconv.Atoi(strings.TrimPrefix(cb.Data, prefix))
	if err != nil {
		return 0, 0, 0, false
	}
	return cb.From.ID, chatID, id, true
}

func (h *Handler) sendTask(ctx context.Context, b *bot.Bot, chatID, adminID int64, id int) {
	err := h.engine.SendTask(ctx, id)
	switch {
	case err == nil:
		h.gameLog.LogAdminAction(adminID, fmt.Sprintf("Sent task %d", id))
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: fmt.Sprintf("✅ Task %d is on its way.", id)})
	case errors.Is(err, domain.ErrTaskNotFound):
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ No such task."})
	case errors.Is(err, domain.ErrAlreadyDelivered):
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "That task was already posted. /resettask first to repost."})
	case errors.Is(err, domain.ErrNoRecipients):
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "No players to send a direct task to yet."})
	case errors.Is(err, domain.ErrTaskNotSendable):
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ That task has no description."})
	default:
		slog.Error("send task", "task", id, "error", err)
		h.gameLog.LogError(err, "send task")
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
	}
}

func (h *Handler) deleteTask(ctx context.Context, b *bot.Bot, chatID, adminID int64, id int) {
	task, err := h.engine.TaskByID(id)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ No such task."})
		return
	}

	if err := h.engine.DeleteTask(id); err != nil {
		slog.Error("delete task", "task", id, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: genericFailure})
		return
	}

	// Take down what was already posted; cancels pending scheduled sends too.
	removed := 0
	for _, r := range task.DeliveryReceipts {
		if err := h.messenger.Delete(ctx, r); err != nil {
			slog.Warn("delete task message", "task", id, "error", err)
			continue
		}
		removed++
	}

	h.gameLog.LogAdminAction(adminID, fmt.Sprintf("Deleted task %d", id))
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Task %d deleted (%d delivered messages removed).", id, removed),
	})
}

func parseTaskIDArg(text string) (int, bool) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

func joinInts(ids []int) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	return strings.Join(strs, ", ")
}
