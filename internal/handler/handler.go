package handler

import (
	"github.com/go-telegram/bot"

	"github.com/kiwicki/asgardbot/internal/config"
	"github.com/kiwicki/asgardbot/internal/game"
	"github.com/kiwicki/asgardbot/internal/messenger"
	"github.com/kiwicki/asgardbot/internal/telegram"
)

// genericFailure is what players see when a collaborator call or the
// snapshot write fails. Details go to the logs, not the chat.
const genericFailure = "⚡ Something went wrong in the halls of Asgard. Try again later."

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot       *bot.Bot
	cfg       *config.Config
	engine    *game.Engine
	messenger *messenger.Telegram
	gameLog   *telegram.GameLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot       *bot.Bot
	Cfg       *config.Config
	Engine    *game.Engine
	Messenger *messenger.Telegram
	GameLog   *telegram.GameLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:       deps.Bot,
		cfg:       deps.Cfg,
		engine:    deps.Engine,
		messenger: deps.Messenger,
		gameLog:   deps.GameLog,
	}
}

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Player commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleHelp)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/score", bot.MatchTypePrefix, h.handleScore)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/top", bot.MatchTypePrefix, h.handleTop)

	// Admin commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/tasks", bot.MatchTypePrefix, h.handleTasks)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/newtask", bot.MatchTypePrefix, h.handleNewTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/edittask", bot.MatchTypePrefix, h.handleEditTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/deltask", bot.MatchTypePrefix, h.handleDeleteTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/sendtask", bot.MatchTypePrefix, h.handleSendTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/resettask", bot.MatchTypePrefix, h.handleResetTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/complete", bot.MatchTypePrefix, h.handleComplete)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/loadtasks", bot.MatchTypePrefix, h.handleLoadTasks)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/roster", bot.MatchTypePrefix, h.handleRoster)

	// Task list callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "send_task_", bot.MatchTypePrefix, h.handleSendTaskCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "del_task_", bot.MatchTypePrefix, h.handleDeleteTaskCallback)
}
