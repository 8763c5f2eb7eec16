package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram шлёт уведомления в админский чат.
type Telegram struct {
	api       *tgbotapi.BotAPI
	adminChat int64
	log       *slog.Logger
}

func NewTelegram(token string, adminChat int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{api: api, adminChat: adminChat, log: log}, nil
}

var eventTitles = map[Event]string{
	EventBookingConfirmed:     "✅ Бронь подтверждена",
	EventSubscriptionCreated:  "🆕 Новый абонемент",
	EventSubscriptionPaused:   "⏸ Абонемент приостановлен",
	EventSubscriptionResumed:  "▶️ Абонемент возобновлён",
	EventSubscriptionCanceled: "🚫 Абонемент отменён",
	EventPaymentReminder:      "💳 Напоминание об оплате",
	EventLockerRented:         "🔒 Шкафчик сдан",
}

func (t *Telegram) Notify(ctx context.Context, event Event, payload map[string]any) bool {
	title, ok := eventTitles[event]
	if !ok {
		title = string(event)
	}

	// Сортируем ключи, чтобы текст был стабильным.
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(title)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: %v", k, payload[k]))
	}

	if _, err := t.api.Send(tgbotapi.NewMessage(t.adminChat, b.String())); err != nil {
		t.log.Error("notify send failed", "event", string(event), "err", err)
		return false
	}
	return true
}
