// Package notify — уведомления «выстрелил и забыл»: неуспех логируем,
// но бизнес-операцию никогда не блокируем и не откатываем.
package notify

import "context"

type Event string

const (
	EventBookingConfirmed     Event = "booking_confirmed"
	EventSubscriptionCreated  Event = "subscription_created"
	EventSubscriptionPaused   Event = "subscription_paused"
	EventSubscriptionResumed  Event = "subscription_resumed"
	EventSubscriptionCanceled Event = "subscription_cancelled"
	EventPaymentReminder      Event = "payment_reminder"
	EventLockerRented         Event = "locker_rented"
)

type Notifier interface {
	Notify(ctx context.Context, event Event, payload map[string]any) bool
}

// Noop — заглушка для тестов и запуска без телеграма.
type Noop struct{}

func (Noop) Notify(context.Context, Event, map[string]any) bool { return true }
