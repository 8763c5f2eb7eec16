package lockers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
	"github.com/Spok95/studio-bot/internal/infra/metrics"
	"github.com/Spok95/studio-bot/internal/infra/notify"
)

var (
	ErrValidation = errors.New("lockers: validation")
	ErrNotFound   = errors.New("lockers: not found")
	// ErrCapacity — номер занят или вне диапазона каталога.
	ErrCapacity = errors.New("lockers: capacity")
	ErrConflict = errors.New("lockers: concurrent update")
)

// Store — хранилище аренд. Delete удаляет запись физически:
// расторжение шкафчика, в отличие от абонемента, не архивируется.
type Store interface {
	Get(ctx context.Context, id int64) (*Rental, error)
	List(ctx context.Context) ([]Rental, error)
	Create(ctx context.Context, r *Rental) error
	Update(ctx context.Context, r *Rental) error // оптимистично по UpdatedAt
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	store    Store
	catalog  *pricing.Catalog
	log      *slog.Logger
	notifier notify.Notifier
	mx       *metrics.Metrics
	now      func() time.Time

	// rentMu сериализует проверку занятости и вставку в Rent:
	// без него два конкурирующих Rent на один номер оба проходят
	// проверку и оба вставляют запись.
	rentMu sync.Mutex
}

func NewService(store Store, catalog *pricing.Catalog, log *slog.Logger, notifier notify.Notifier, mx *metrics.Metrics) *Service {
	return &Service{store: store, catalog: catalog, log: log, notifier: notifier, mx: mx, now: time.Now}
}

// AvailableNumbers — номера 1..N без тех, что заняты действующими
// арендами (active и expiring-soon; у истёкших номер уже свободен).
func (s *Service) AvailableNumbers(ctx context.Context) ([]int, error) {
	total := s.catalog.Snapshot().Lockers.Total
	taken, err := s.occupied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, total)
	for n := 1; n <= total; n++ {
		if !taken[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

type RentSpec struct {
	Number         int
	CustomerName   string
	Phone          string
	StartDate      time.Time
	DurationMonths int
	MonthlyRate    float64 // 0 — тариф из каталога
	Notes          string
}

func (s *Service) Rent(ctx context.Context, spec RentSpec) (*Rental, error) {
	name := strings.TrimSpace(spec.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: empty customer name", ErrValidation)
	}
	if spec.DurationMonths <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	cfg := s.catalog.Snapshot()
	if spec.Number < 1 || spec.Number > cfg.Lockers.Total {
		return nil, fmt.Errorf("%w: locker %d is out of range 1..%d", ErrCapacity, spec.Number, cfg.Lockers.Total)
	}

	s.rentMu.Lock()
	defer s.rentMu.Unlock()

	taken, err := s.occupied(ctx)
	if err != nil {
		return nil, err
	}
	if taken[spec.Number] {
		return nil, fmt.Errorf("%w: locker %d is occupied", ErrCapacity, spec.Number)
	}

	rate := spec.MonthlyRate
	if rate == 0 {
		rate = cfg.Lockers.MonthlyRate
	}
	now := s.now()
	start := utcDate(spec.StartDate)
	if spec.StartDate.IsZero() {
		start = utcDate(now)
	}

	r := &Rental{
		Number:       spec.Number,
		CustomerName: name,
		Phone:        strings.TrimSpace(spec.Phone),
		StartDate:    start,
		EndDate:      start.AddDate(0, spec.DurationMonths, 0),
		MonthlyRate:  rate,
		Payment:      PaymentPending,
		Notes:        spec.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}

	s.mx.IncOp("locker", "rent")
	s.updateOccupancyGauge(ctx)
	s.send(ctx, notify.EventLockerRented, map[string]any{
		"номер": r.Number, "клиент": r.CustomerName, "до": r.EndDate.Format("2006-01-02"),
	})
	return r, nil
}

// Extend сдвигает дату окончания вперёд; статус при следующем чтении
// пересчитается сам (истёкшая аренда снова станет действующей).
func (s *Service) Extend(ctx context.Context, id int64, months int) (*Rental, error) {
	if months <= 0 {
		return nil, fmt.Errorf("%w: months must be positive", ErrValidation)
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.EndDate = r.EndDate.AddDate(0, months, 0)
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}
	s.mx.IncOp("locker", "extend")
	s.updateOccupancyGauge(ctx)
	return r, nil
}

// Terminate — жёсткое удаление: номер сразу свободен, записи больше нет.
func (s *Service) Terminate(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mx.IncOp("locker", "terminate")
	s.updateOccupancyGauge(ctx)
	return nil
}

func (s *Service) SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) (*Rental, error) {
	switch status {
	case PaymentPaid, PaymentPending, PaymentOverdue:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Payment = status
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}
	s.mx.IncOp("locker", "set_payment")
	if status == PaymentOverdue {
		s.send(ctx, notify.EventPaymentReminder, map[string]any{"шкафчик": r.Number, "клиент": r.CustomerName})
	}
	return r, nil
}

// OccupancyRate — занятость в процентах от общего числа шкафчиков.
func (s *Service) OccupancyRate(ctx context.Context) (float64, error) {
	total := s.catalog.Snapshot().Lockers.Total
	if total == 0 {
		return 0, nil
	}
	taken, err := s.occupied(ctx)
	if err != nil {
		return 0, err
	}
	return float64(len(taken)) / float64(total) * 100, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Rental, error) { return s.store.Get(ctx, id) }

func (s *Service) List(ctx context.Context) ([]Rental, error) { return s.store.List(ctx) }

func (s *Service) occupied(ctx context.Context) (map[int]bool, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	taken := map[int]bool{}
	for _, r := range list {
		if r.StatusAt(now) != StatusExpired {
			taken[r.Number] = true
		}
	}
	return taken, nil
}

func (s *Service) updateOccupancyGauge(ctx context.Context) {
	if pct, err := s.OccupancyRate(ctx); err == nil {
		s.mx.SetLockerOccupancy(pct)
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
