package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"fleetbook/internal/domain"
	"fleetbook/internal/events"
)

// Sender is the telegram surface the notifier needs; satisfied by
// tgbotapi.BotAPI and by mocks in tests.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Per-chat quota; counted in the state repository so it survives restarts
// and is shared across instances when redis backs the store.
const (
	chatRateLimit  = 30
	chatRateWindow = time.Minute
)

// TelegramNotifier renders domain events into messages for the dispatch
// channel. The local limiter paces individual sends below the bot API rate;
// the state repository caps the per-chat volume, dropping the overflow.
type TelegramNotifier struct {
	sender     Sender
	chatID     int64
	limiter    *rate.Limiter
	state      domain.StateRepository
	rateLimit  int
	rateWindow time.Duration
	logger     *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, chatID int64, state domain.StateRepository, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		// Telegram allows roughly 30 messages per second per bot.
		limiter:    rate.NewLimiter(rate.Limit(25), 5),
		state:      state,
		rateLimit:  chatRateLimit,
		rateWindow: chatRateWindow,
		logger:     logger,
	}
}

// SubscribeAll wires the notifier to every event type it can render.
func (n *TelegramNotifier) SubscribeAll(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingApproved, n.handleApproval)
	bus.Subscribe(events.EventBookingRejected, n.handleApproval)
	bus.Subscribe(events.EventAssignmentCreated, n.handleAssignment)
	bus.Subscribe(events.EventAssignmentUpdated, n.handleAssignment)
	bus.Subscribe(events.EventBookingPendingTooLong, n.handleReminder)
}

func (n *TelegramNotifier) handleApproval(event *events.Event) error {
	var payload events.ApprovalNotification
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode approval payload: %w", err)
	}

	text := fmt.Sprintf("Booking #%d %s by manager %d", payload.BookingID, payload.Verb, payload.ApproverID)
	if payload.Reason != "" {
		text += fmt.Sprintf("\nReason: %s", payload.Reason)
	}
	return n.send(text)
}

func (n *TelegramNotifier) handleAssignment(event *events.Event) error {
	var payload events.AssignmentNotification
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode assignment payload: %w", err)
	}

	text := fmt.Sprintf("Booking #%d %s: vehicle %d, driver %d", payload.BookingID, payload.Kind, payload.VehicleID, payload.DriverID)
	if payload.PreviousVehicleID != nil || payload.PreviousDriverID != nil {
		prevVehicle, prevDriver := int64(0), int64(0)
		if payload.PreviousVehicleID != nil {
			prevVehicle = *payload.PreviousVehicleID
		}
		if payload.PreviousDriverID != nil {
			prevDriver = *payload.PreviousDriverID
		}
		text += fmt.Sprintf("\nWas: vehicle %d, driver %d", prevVehicle, prevDriver)
	}
	if payload.Notes != "" {
		text += fmt.Sprintf("\nNotes: %s", payload.Notes)
	}
	return n.send(text)
}

func (n *TelegramNotifier) handleReminder(event *events.Event) error {
	var payload events.PendingReminderPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode reminder payload: %w", err)
	}

	text := fmt.Sprintf("Booking #%d has been waiting for approval for %d hours", payload.BookingID, payload.HoursWaiting)
	return n.send(text)
}

func (n *TelegramNotifier) send(text string) error {
	ctx := context.Background()
	if n.state != nil {
		key := fmt.Sprintf("notify:%d", n.chatID)
		allowed, err := n.state.CheckRateLimit(ctx, key, n.rateLimit, n.rateWindow)
		if err != nil {
			n.logger.Warn().Err(err).Msg("notification rate limit check failed")
		} else if !allowed {
			n.logger.Warn().Int64("chat_id", n.chatID).Msg("chat quota exhausted, notification dropped")
			return nil
		}
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("failed to send telegram notification")
		return err
	}
	return nil
}
