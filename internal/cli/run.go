package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kiwicki/asgardbot/internal/config"
	"github.com/kiwicki/asgardbot/internal/content"
	"github.com/kiwicki/asgardbot/internal/game"
	"github.com/kiwicki/asgardbot/internal/handler"
	"github.com/kiwicki/asgardbot/internal/messenger"
	"github.com/kiwicki/asgardbot/internal/middleware"
	"github.com/kiwicki/asgardbot/internal/store"
	"github.com/kiwicki/asgardbot/internal/telegram"
)

// NewRunCmd builds the CLI subcommand that starts the bot.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the quest bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(parent context.Context) error {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load game state
	st := store.New(cfg.SnapshotPath)
	g, err := st.Load()
	if err != nil {
		slog.Error("failed to load game snapshot", "path", cfg.SnapshotPath, "error", err)
		return err
	}
	slog.Info("game loaded", "tasks", len(g.Tasks), "players", len(g.Players))

	roster := messenger.NewRoster()

	// Engine and handler are built after the bot, so the middleware and the
	// default handler resolve them through closures.
	var eng *game.Engine
	var h *handler.Handler

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.Cooldown(),
			middleware.PlayerLoader(func() *game.Engine { return eng }, roster),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		return err
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		return err
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	tg := messenger.NewTelegram(b, roster)
	eng = game.NewEngine(g, tg, st, cfg.QuestChannel, nil)
	tg.OnScheduledSent(func(scheduleID, _ string, messageID int) {
		if err := eng.ConfirmScheduledSend(scheduleID, messageID); err != nil {
			slog.Error("failed to confirm scheduled send", "schedule_id", scheduleID, "error", err)
		}
	})

	// First start with an empty game: load the configured quest line.
	if cfg.SeedFile != "" && len(g.Tasks) == 0 {
		seeds, err := content.Load(cfg.SeedFile)
		if err != nil {
			slog.Error("failed to load seed file", "path", cfg.SeedFile, "error", err)
			return err
		}
		ids, err := content.Import(eng, seeds)
		if err != nil {
			slog.Error("failed to import seeds", "error", err)
			return err
		}
		slog.Info("quest line imported", "path", cfg.SeedFile, "tasks", len(ids))
	}

	gameLog := telegram.NewGameLogger(b, cfg.LogChatID)

	h = handler.New(handler.Deps{
		Bot:       b,
		Cfg:       cfg,
		Engine:    eng,
		Messenger: tg,
		GameLog:   gameLog,
	})
	h.Register()

	slog.Info("starting bot", "username", me.Username, "channel", cfg.QuestChannel)
	b.Start(ctx)

	// Graceful shutdown: one last snapshot.
	if err := eng.Flush(); err != nil {
		slog.Error("final snapshot failed", "error", err)
		return err
	}
	slog.Info("bot stopped gracefully")
	return nil
}
