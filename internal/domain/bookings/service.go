package bookings

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
	ErrValidation        = errors.New("bookings: validation")
	ErrNotFound          = errors.New("bookings: not found")
	ErrConflict          = errors.New("bookings: concurrent update")
	ErrInvalidTransition = errors.New("bookings: invalid transition")
)

type Store interface {
	Get(ctx context.Context, id int64) (*Booking, error)
	List(ctx context.Context) ([]Booking, error)
	// ListBetween — брони с датой в [from, to).
	ListBetween(ctx context.Context, from, to time.Time) ([]Booking, error)
	Create(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error // оптимистично по UpdatedAt
}

// SlotKey — адрес слота в сетке доступности.
type SlotKey struct {
	StudioID int64
	Weekday  time.Weekday
	Slot     Slot
}

// ScheduleFunc отдаёт слоты, занятые расписаниями действующих
// абонементов: их не предлагаем разовым клиентам.
type ScheduleFunc func(ctx context.Context) (map[SlotKey]struct{}, error)

type Service struct {
	store    Store
	catalog  *pricing.Catalog
	sched    ScheduleFunc // может быть nil
	log      *slog.Logger
	notifier notify.Notifier
	mx       *metrics.Metrics
	now      func() time.Time
}

func NewService(store Store, catalog *pricing.Catalog, sched ScheduleFunc, log *slog.Logger, notifier notify.Notifier, mx *metrics.Metrics) *Service {
	return &Service{
		store: store, catalog: catalog, sched: sched,
		log: log, notifier: notifier, mx: mx, now: time.Now,
	}
}

type CreateSpec struct {
	CustomerName  string
	Phone         string
	StudioID      int64
	Date          time.Time
	Slot          Slot
	DurationHours int
	Type          Type
	Notes         string
}

// Create — бронь создаётся в статусе pending, цена считается по каталогу:
// почасовая — hourlyRate x часы, дневная — дневной тариф за каждую
// начатую смену (3 часа).
func (s *Service) Create(ctx context.Context, spec CreateSpec) (*Booking, error) {
	name := strings.TrimSpace(spec.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty customer name", ErrValidation)
	}
	if spec.DurationHours <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if !validSlot(spec.Slot) {
		return nil, fmt.Errorf("%w: unknown slot %q", ErrValidation, spec.Slot)
	}
	if spec.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}

	var price float64
	switch spec.Type {
	case TypeHourly:
		rate, err := s.catalog.RateFor(spec.StudioID, pricing.UnitHour)
		if err != nil {
			return nil, err
		}
		price = rate * float64(spec.DurationHours)
	case TypeDaily:
		rate, err := s.catalog.RateFor(spec.StudioID, pricing.UnitDay)
		if err != nil {
			return nil, err
		}
		parts := (spec.DurationHours + slotHours - 1) / slotHours
		price = rate * float64(parts)
	default:
		return nil, fmt.Errorf("%w: unknown booking type %q", ErrValidation, spec.Type)
	}

	now := s.now()
	b := &Booking{
		CustomerName:  name,
		Phone:         strings.TrimSpace(spec.Phone),
		StudioID:      spec.StudioID,
		Date:          utcDate(spec.Date),
		Slot:          spec.Slot,
		DurationHours: spec.DurationHours,
		Type:          spec.Type,
		Price:         price,
		Status:        StatusPending,
		Notes:         spec.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.mx.IncOp("booking", "create")
	return b, nil
}

// SetStatus — переходы задаёт вызывающая сторона; движок запрещает
// только выход из терминальных статусов, причём с ошибкой, а не тихо.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (*Booking, error) {
	switch status {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("%w: booking is already %q", ErrInvalidTransition, b.Status)
	}
	b.Status = status
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}

	s.mx.IncOp("booking", "set_status")
	if status == StatusConfirmed {
		s.send(ctx, notify.EventBookingConfirmed, map[string]any{
			"id": b.ID, "клиент": b.CustomerName,
			"дата": b.Date.Format("2006-01-02"), "смена": string(b.Slot),
		})
	}
	return b, nil
}

// AvailableSlots — сетка доступности на windowDays вперёд (по умолчанию 7).
// Слот занят, если на эту студию/дату/смену есть неотменённая бронь
// либо смена закреплена за абонементом. Детерминированная проверка
// пересечений, без случайностей.
func (s *Service) AvailableSlots(ctx context.Context, windowDays int) ([]AvailabilitySlot, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	from := utcDate(s.now())
	to := from.AddDate(0, 0, windowDays)

	existing, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var committed map[SlotKey]struct{}
	if s.sched != nil {
		committed, err = s.sched(ctx)
		if err != nil {
			return nil, err
		}
	}

	studios := s.catalog.Studios()
	out := make([]AvailabilitySlot, 0, windowDays*len(studios)*len(availabilitySlots()))
	for day := 0; day < windowDays; day++ {
		date := from.AddDate(0, 0, day)
		for _, st := range studios {
			for _, slot := range availabilitySlots() {
				free := true
				for _, b := range existing {
					if b.Status != StatusCancelled && b.StudioID == st.ID &&
						b.Date.Equal(date) && b.Slot.blocks(slot) {
						free = false
						break
					}
				}
				if free && committed != nil {
					if _, ok := committed[SlotKey{StudioID: st.ID, Weekday: date.Weekday(), Slot: slot}]; ok {
						free = false
					}
				}
				out = append(out, AvailabilitySlot{
					StudioID: st.ID, Date: date, Slot: slot, Available: free,
				})
			}
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Booking, error) { return s.store.Get(ctx, id) }

func (s *Service) List(ctx context.Context) ([]Booking, error) { return s.store.List(ctx) }

func (s *Service) send(ctx context.Context, ev notify.Event, payload map[string]any) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Notify(ctx, ev, payload) {
		s.log.Warn("notification failed", "event", string(ev))
	}
}

func validSlot(sl Slot) bool {
	for _, v := range Slots() {
		if v == sl {
			return true
		}
	}
	return false
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
