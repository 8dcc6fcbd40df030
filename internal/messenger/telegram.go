package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"

	"github.com/kiwicki/asgardbot/internal/domain"
)

const sendTimeout = 10 * time.Second

// Telegram sends game messages through the Bot API. It implements the
// engine's Messenger interface and the wider collaborator surface the
// handlers use: update, delete, member listing.
//
// The Bot API offers neither server-side scheduled sends nor member listing
// for ordinary chats, so both are kept locally: deferred sends live in a
// uuid-keyed timer table, and channel membership is a roster of users the bot
// has seen (maintained by middleware).
type Telegram struct {
	bot    *bot.Bot
	roster *Roster

	mu      sync.Mutex
	pending map[string]*time.Timer
	onSent  func(scheduleID, chat string, messageID int)
}

// NewTelegram wraps a bot client.
func NewTelegram(b *bot.Bot, roster *Roster) *Telegram {
	return &Telegram{
		bot:     b,
		roster:  roster,
		pending: make(map[string]*time.Timer),
	}
}

// OnScheduledSent registers a callback invoked when a deferred send fires,
// carrying the message id of the posted message. Allows the caller to upgrade
// the schedule-only receipt it recorded at scheduling time.
func (t *Telegram) OnScheduledSent(fn func(scheduleID, chat string, messageID int)) {
	t.mu.Lock()
	t.onSent = fn
	t.mu.Unlock()
}

// SendDirect sends text to each recipient individually. Delivery to one
// recipient failing does not stop the rest; the receipts of the successful
// sends are returned alongside the joined errors.
func (t *Telegram) SendDirect(ctx context.Context, text string, recipients []string) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	var errs []error
	for _, recipient := range recipients {
		msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID(recipient),
			Text:   text,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", recipient, err))
			continue
		}
		receipts = append(receipts, domain.Receipt{Chat: recipient, MessageID: msg.ID})
	}
	return receipts, errors.Join(errs...)
}

// SendToChannel posts text to a channel. When at is set and in the future the
// send is deferred on a local timer and the receipt carries only the schedule
// id; the message id exists once the timer fires.
func (t *Telegram) SendToChannel(ctx context.Context, text, channel string, at *time.Time) (domain.Receipt, error) {
	if at != nil {
		if delay := time.Until(*at); delay > 0 {
			return t.schedule(text, channel, delay), nil
		}
	}
	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID(channel),
		Text:   text,
	})
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("send to channel %s: %w", channel, err)
	}
	return domain.Receipt{Chat: channel, MessageID: msg.ID}, nil
}

// Update rewrites a previously sent message. Pending scheduled sends cannot
// be edited; cancel and resend instead.
func (t *Telegram) Update(ctx context.Context, r domain.Receipt, text string) error {
	if r.ScheduleID != "" {
		return fmt.Errorf("update scheduled message %s: not yet sent", r.ScheduleID)
	}
	_, err := t.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID(r.Chat),
		MessageID: r.MessageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("update message %d in %s: %w", r.MessageID, r.Chat, err)
	}
	return nil
}

// Delete removes a sent message, or cancels the timer of a pending scheduled
// send.
func (t *Telegram) Delete(ctx context.Context, r domain.Receipt) error {
	if r.ScheduleID != "" {
		t.mu.Lock()
		timer, ok := t.pending[r.ScheduleID]
		if ok {
			timer.Stop()
			delete(t.pending, r.ScheduleID)
		}
		t.mu.Unlock()
		if !ok {
			return fmt.Errorf("scheduled message %s: already sent or cancelled", r.ScheduleID)
		}
		return nil
	}
	_, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID(r.Chat),
		MessageID: r.MessageID,
	})
	if err != nil {
		return fmt.Errorf("delete message %d in %s: %w", r.MessageID, r.Chat, err)
	}
	return nil
}

// ListChannelMembers returns the roster of users seen in the channel.
func (t *Telegram) ListChannelMembers(_ context.Context, channel string) ([]string, error) {
	return t.roster.Members(channel), nil
}

func (t *Telegram) schedule(text, channel string, delay time.Duration) domain.Receipt {
	id := uuid.NewString()
	t.mu.Lock()
	t.pending[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID(channel),
			Text:   text,
		})
		if err != nil {
			slog.Error("scheduled send failed", "schedule_id", id, "channel", channel, "error", err)
			return
		}
		t.mu.Lock()
		onSent := t.onSent
		t.mu.Unlock()
		if onSent != nil {
			onSent(id, channel, msg.ID)
		}
	})
	t.mu.Unlock()
	slog.Info("send scheduled", "schedule_id", id, "channel", channel, "delay", delay)
	return domain.Receipt{Chat: channel, ScheduleID: id}
}

// chatID converts a stored chat reference to the Bot API's chat id form:
// numeric ids become int64, @usernames pass through.
func chatID(ref string) any {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id
	}
	return ref
}
