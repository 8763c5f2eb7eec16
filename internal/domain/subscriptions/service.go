package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
	"github.com/Spok95/studio-bot/internal/infra/metrics"
	"github.com/Spok95/studio-bot/internal/infra/notify"
)

var (
	ErrValidation = errors.New("subscriptions: validation")
	ErrNotFound   = errors.New("subscriptions: not found")
	// ErrConflict — запись изменили параллельно; нужно перечитать и повторить.
	ErrConflict          = errors.New("subscriptions: concurrent update")
	ErrInvalidTransition = errors.New("subscriptions: invalid transition")
)

// Store — хранилище абонементов. Update и Create пишут запись и её
// историю атомарно: на каждую мутацию ровно одна запись аудита.
// Update сверяет UpdatedAt и возвращает ErrConflict при гонке.
type Store interface {
	Get(ctx context.Context, id int64) (*Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
	Create(ctx context.Context, s *Subscription, entry HistoryEntry) error
	Update(ctx context.Context, s *Subscription, entry HistoryEntry) error
	History(ctx context.Context, subscriptionID int64) ([]HistoryEntry, error)
}

// Service — жизненный цикл абонементов.
type Service struct {
	store    Store
	catalog  *pricing.Catalog
	log      *slog.Logger
	notifier notify.Notifier
	mx       *metrics.Metrics
	now      func() time.Time
}

func NewService(store Store, catalog *pricing.Catalog, log *slog.Logger, notifier notify.Notifier, mx *metrics.Metrics) *Service {
	return &Service{
		store: store, catalog: catalog, log: log,
		notifier: notifier, mx: mx, now: time.Now,
	}
}

type CreateSpec struct {
	CustomerName string
	Phone        string
	StudioID     int64
	Schedule     []SlotRef
	StartDate    time.Time
	Type         Type
	MonthlyPrice float64 // 0 — взять из каталога с учётом скидки
	Notes        string
	Actor        string
}

func (s *Service) Create(ctx context.Context, spec CreateSpec) (*Subscription, error) {
	name := strings.TrimSpace(spec.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty customer name", ErrValidation)
	}
	typ := spec.Type
	if typ == "" {
		typ = TypeMonthly
	}
	switch typ {
	case TypeMonthly, TypeYearly, TypeStudent:
	default:
		return nil, fmt.Errorf("%w: unknown subscription type %q", ErrValidation, spec.Type)
	}
	seen := map[time.Weekday]bool{}
	for _, sl := range spec.Schedule {
		if seen[sl.Weekday] {
			return nil, fmt.Errorf("%w: duplicate weekday %s in schedule", ErrValidation, sl.Weekday)
		}
		seen[sl.Weekday] = true
	}
	if _, err := s.catalog.Studio(spec.StudioID); err != nil {
		return nil, fmt.Errorf("%w: studio id=%d", ErrValidation, spec.StudioID)
	}

	price := spec.MonthlyPrice
	if price == 0 {
		p, err := s.catalog.MonthlyPriceFor(spec.StudioID, string(typ))
		if err != nil {
			return nil, err
		}
		price = p
	}

	now := s.now()
	start := utcDate(spec.StartDate)
	if spec.StartDate.IsZero() {
		start = utcDate(now)
	}

	sub := &Subscription{
		CustomerName: name,
		Phone:        strings.TrimSpace(spec.Phone),
		StudioID:     spec.StudioID,
		Schedule:     append([]SlotRef(nil), spec.Schedule...),
		StartDate:    start,
		NextBilling:  start.AddDate(0, 1, 0),
		MonthlyPrice: price,
		Status:       StatusActive,
		Type:         typ,
		Notes:        spec.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	entry := s.entry(0, ActionCreated, spec.Actor, fmt.Sprintf("абонемент %s, студия %d", typ, spec.StudioID), "", string(StatusActive))
	if err := s.store.Create(ctx, sub, entry); err != nil {
		return nil, err
	}

	s.mx.IncOp("subscription", "create")
	s.send(ctx, notify.EventSubscriptionCreated, map[string]any{
		"id": sub.ID, "клиент": sub.CustomerName, "цена": sub.MonthlyPrice,
	})
	return sub, nil
}

// Pause — только из active.
func (s *Service) Pause(ctx context.Context, id int64, reason, actor string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusActive {
		return nil, transitionErr(sub.Status, "pause")
	}
	paused := utcDate(s.now())
	sub.Status = StatusPaused
	sub.PauseReason = strings.TrimSpace(reason)
	sub.PausedAt = &paused

	entry := s.entry(id, ActionPaused, actor, sub.PauseReason, string(StatusActive), string(StatusPaused))
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "pause")
	s.send(ctx, notify.EventSubscriptionPaused, map[string]any{"id": id, "клиент": sub.CustomerName})
	return sub, nil
}

// Resume — только из paused; следующее списание сдвигается
// на календарный месяц от текущего момента.
func (s *Service) Resume(ctx context.Context, id int64, actor string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusPaused {
		return nil, transitionErr(sub.Status, "resume")
	}
	sub.Status = StatusActive
	sub.PauseReason = ""
	sub.PausedAt = nil
	sub.NextBilling = utcDate(s.now()).AddDate(0, 1, 0)

	entry := s.entry(id, ActionResumed, actor, "", string(StatusPaused), string(StatusActive))
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "resume")
	s.send(ctx, notify.EventSubscriptionResumed, map[string]any{"id": id, "клиент": sub.CustomerName})
	return sub, nil
}

// Cancel — из любого нетерминального статуса; причина обязательна.
func (s *Service) Cancel(ctx context.Context, id int64, reason, actor string) (*Subscription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: cancel reason is required", ErrValidation)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == StatusCancelled {
		return nil, transitionErr(sub.Status, "cancel")
	}
	old := sub.Status
	cancelled := utcDate(s.now())
	sub.Status = StatusCancelled
	sub.CancelReason = reason
	sub.CancelledAt = &cancelled

	entry := s.entry(id, ActionCancelled, actor, reason, string(old), string(StatusCancelled))
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "cancel")
	s.send(ctx, notify.EventSubscriptionCanceled, map[string]any{"id": id, "клиент": sub.CustomerName, "причина": reason})
	return sub, nil
}

// AddNote — статус не меняет, текст дописывается к заметкам с отметкой времени.
func (s *Service) AddNote(ctx context.Context, id int64, text, actor string) (*Subscription, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty note", ErrValidation)
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	line := fmt.Sprintf("[%s] %s", s.now().UTC().Format("2006-01-02 15:04"), text)
	if sub.Notes == "" {
		sub.Notes = line
	} else {
		sub.Notes += "\n" + line
	}

	entry := s.entry(id, ActionNoteAdded, actor, text, "", "")
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "add_note")
	return sub, nil
}

// UpdateSpec — свободная правка полей; nil-поле не трогаем.
type UpdateSpec struct {
	CustomerName *string
	Phone        *string
	MonthlyPrice *float64
	Type         *Type
}

func (s *Service) Update(ctx context.Context, id int64, upd UpdateSpec, actor string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var changed []string
	if upd.CustomerName != nil {
		name := strings.TrimSpace(*upd.CustomerName)
		if name == "" {
			return nil, fmt.Errorf("%w: empty customer name", ErrValidation)
		}
		sub.CustomerName = name
		changed = append(changed, "имя")
	}
	if upd.Phone != nil {
		sub.Phone = strings.TrimSpace(*upd.Phone)
		changed = append(changed, "телефон")
	}
	if upd.MonthlyPrice != nil {
		if *upd.MonthlyPrice < 0 {
			return nil, fmt.Errorf("%w: negative price", ErrValidation)
		}
		sub.MonthlyPrice = *upd.MonthlyPrice
		changed = append(changed, "цена")
	}
	if upd.Type != nil {
		switch *upd.Type {
		case TypeMonthly, TypeYearly, TypeStudent:
			sub.Type = *upd.Type
			changed = append(changed, "тип")
		default:
			return nil, fmt.Errorf("%w: unknown subscription type %q", ErrValidation, *upd.Type)
		}
	}

	entry := s.entry(id, ActionUpdated, actor, strings.Join(changed, ", "), "", "")
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "update")
	return sub, nil
}

// MarkOverdue — точка входа для биллинга: пропущено списание.
// Сам движок этот статус никогда не выставляет.
func (s *Service) MarkOverdue(ctx context.Context, id int64, actor string) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != StatusActive {
		return nil, transitionErr(sub.Status, "mark overdue")
	}
	sub.Status = StatusOverdue

	entry := s.entry(id, ActionMarkedOverdue, actor, "", string(StatusActive), string(StatusOverdue))
	if err := s.store.Update(ctx, sub, entry); err != nil {
		return nil, err
	}
	s.mx.IncOp("subscription", "mark_overdue")
	s.send(ctx, notify.EventPaymentReminder, map[string]any{"id": id, "клиент": sub.CustomerName})
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Subscription, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Subscription, error) {
	return s.store.List(ctx)
}

func (s *Service) History(ctx context.Context, id int64) ([]HistoryEntry, error) {
	return s.store.History(ctx, id)
}

func (s *Service) entry(subID int64, action, actor, details, oldVal, newVal string) HistoryEntry {
	return HistoryEntry{
		SubscriptionID: subID,
		Action:         action,
		At:             s.now(),
		Actor:          actor,
		Details:        details,
		OldValue:       oldVal,
		NewValue:       newVal,
	}
}

func (s *Service) send(ctx context.Context, ev notify.Event, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Notify(ctx, ev, payload) {
		s.log.Warn("notification failed", "event", string(ev))
	}
}

// transitionErr — в ошибке всегда текущий статус, чтобы вызывающая
// сторона могла пересинхронизировать своё представление.
func transitionErr(current Status, action string) error {
	return fmt.Errorf("%w: cannot %s subscription in status %q", ErrInvalidTransition, action, current)
}

// Все хранимые даты нормализуем к полуночи UTC.
func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
