package lockers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	catalog := pricing.NewCatalog(pricing.Config{
		Studios: []pricing.Studio{{ID: 1, Name: "Студия A", HourlyRate: 10}},
		Lockers: pricing.LockerCatalog{Total: 8, MonthlyRate: 40},
	}, nil)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewMemStore(), catalog, log, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

// Статус — чистая функция от (endDate, now).
func TestStatusAt(t *testing.T) {
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"far before end", end.AddDate(0, 0, -90), StatusActive},
		{"31 days before", end.AddDate(0, 0, -31), StatusActive},
		{"exactly 30 days before", end.AddDate(0, 0, -30), StatusExpiringSoon},
		{"one day before", end.AddDate(0, 0, -1), StatusExpiringSoon},
		{"on end date", end, StatusExpired},
		{"after end", end.AddDate(0, 0, 10), StatusExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StatusAt(end, tc.now); got != tc.want {
				t.Fatalf("StatusAt = %s, want %s", got, tc.want)
			}
		})
	}
}

// Время суток роли не играет: даты приводятся к полуночи UTC.
func TestStatusAtNormalizesTime(t *testing.T) {
	end := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 5, 2, 23, 59, 0, 0, time.UTC)
	if got := StatusAt(end, now); got != StatusExpiringSoon {
		t.Fatalf("StatusAt = %s, want expiring-soon", got)
	}
}

func TestRent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	free, err := svc.AvailableNumbers(ctx)
	if err != nil {
		t.Fatalf("AvailableNumbers: %v", err)
	}
	if len(free) != 8 || free[0] != 1 || free[7] != 8 {
		t.Fatalf("available = %v, want 1..8", free)
	}

	r, err := svc.Rent(ctx, RentSpec{Number: 3, CustomerName: "Анна", DurationMonths: 2})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}
	if r.Payment != PaymentPending {
		t.Errorf("payment = %s, want pending", r.Payment)
	}
	wantEnd := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	if !r.EndDate.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", r.EndDate, wantEnd)
	}
	if r.MonthlyRate != 40 {
		t.Errorf("rate = %v, want 40 from catalog", r.MonthlyRate)
	}
	if r.StatusAt(testNow) != StatusActive {
		t.Errorf("status = %s, want active", r.StatusAt(testNow))
	}

	free, _ = svc.AvailableNumbers(ctx)
	for _, n := range free {
		if n == 3 {
			t.Fatalf("number 3 still available after rent")
		}
	}

	if _, err := svc.Rent(ctx, RentSpec{Number: 3, CustomerName: "Борис", DurationMonths: 1}); !errors.Is(err, ErrCapacity) {
		t.Fatalf("occupied number: err = %v, want ErrCapacity", err)
	}
	if _, err := svc.Rent(ctx, RentSpec{Number: 9, CustomerName: "Борис", DurationMonths: 1}); !errors.Is(err, ErrCapacity) {
		t.Fatalf("out of range: err = %v, want ErrCapacity", err)
	}

	occ, _ := svc.OccupancyRate(ctx)
	if occ != 12.5 {
		t.Fatalf("occupancy = %v, want 12.5", occ)
	}
}

func TestExtendRevivesExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	r, err := svc.Rent(ctx, RentSpec{Number: 1, CustomerName: "Анна", DurationMonths: 1})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}

	// сдвигаем часы за дату окончания — аренда истекла, номер свободен
	svc.now = func() time.Time { return testNow.AddDate(0, 2, 0) }
	got, _ := svc.Get(ctx, r.ID)
	if got.StatusAt(svc.now()) != StatusExpired {
		t.Fatalf("status = %s, want expired", got.StatusAt(svc.now()))
	}
	free, _ := svc.AvailableNumbers(ctx)
	if free[0] != 1 {
		t.Fatalf("expired locker number must be available, got %v", free)
	}

	// продление возвращает аренду в строй
	got, err = svc.Extend(ctx, r.ID, 3)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got.StatusAt(svc.now()) != StatusActive {
		t.Fatalf("status after extend = %s, want active", got.StatusAt(svc.now()))
	}
	free, _ = svc.AvailableNumbers(ctx)
	for _, n := range free {
		if n == 1 {
			t.Fatalf("number 1 available after extend")
		}
	}
}

// Расторжение — жёсткое удаление без архива: записи больше нет, номер
// сразу свободен. Абонементы, наоборот, при отмене остаются в базе —
// асимметрия намеренная.
func TestTerminateFreesNumber(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	r, err := svc.Rent(ctx, RentSpec{Number: 5, CustomerName: "Анна", DurationMonths: 6})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}
	if err := svc.Terminate(ctx, r.ID); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	if _, err := svc.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record must be gone, err = %v", err)
	}
	free, _ := svc.AvailableNumbers(ctx)
	found := false
	for _, n := range free {
		if n == 5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("number 5 must be available again, got %v", free)
	}

	if err := svc.Terminate(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second terminate: err = %v, want ErrNotFound", err)
	}
}

func TestSetPaymentStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	r, err := svc.Rent(ctx, RentSpec{Number: 2, CustomerName: "Анна", DurationMonths: 1})
	if err != nil {
		t.Fatalf("Rent: %v", err)
	}

	got, err := svc.SetPaymentStatus(ctx, r.ID, PaymentPaid)
	if err != nil {
		t.Fatalf("SetPaymentStatus: %v", err)
	}
	if got.Payment != PaymentPaid {
		t.Fatalf("payment = %s, want paid", got.Payment)
	}

	if _, err := svc.SetPaymentStatus(ctx, r.ID, PaymentStatus("unknown")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: err = %v, want ErrValidation", err)
	}
}

// Конкурирующие Rent на один номер: проходит ровно один,
// остальные получают ErrCapacity, дублей в хранилище нет.
func TestRentConcurrentSameNumber(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Rent(ctx, RentSpec{Number: 4, CustomerName: "Анна", DurationMonths: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, capacity int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacity):
			capacity++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || capacity != workers-1 {
		t.Fatalf("ok=%d capacity=%d, want 1/%d", ok, capacity, workers-1)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	holders := 0
	for _, r := range list {
		if r.Number == 4 {
			holders++
		}
	}
	if holders != 1 {
		t.Fatalf("rentals holding locker 4 = %d, want 1", holders)
	}
}

func TestRentValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Rent(ctx, RentSpec{Number: 1, CustomerName: " ", DurationMonths: 1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Rent(ctx, RentSpec{Number: 1, CustomerName: "Анна", DurationMonths: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero duration: err = %v, want ErrValidation", err)
	}
}
