package subscriptions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
)

var testNow = time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	catalog := pricing.NewCatalog(pricing.Config{
		Studios: []pricing.Studio{
			{ID: 1, Name: "Студия A", HourlyRate: 10, DayRate: 40, MonthlyRate: 160},
		},
		Discounts: pricing.Discounts{StudentPct: 20, YearlyPct: 10},
	}, nil)
	store := NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, catalog, log, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func mustCreate(t *testing.T, svc *Service) *Subscription {
	t.Helper()
	sub, err := svc.Create(context.Background(), CreateSpec{
		CustomerName: "Иван Петров",
		StudioID:     1,
		Type:         TypeMonthly,
		Schedule: []SlotRef{
			{Weekday: time.Monday, Slot: "morning"},
			{Weekday: time.Thursday, Slot: "evening"},
		},
		Actor: "admin",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sub
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)

	if sub.Status != StatusActive {
		t.Errorf("status = %s, want active", sub.Status)
	}
	if sub.MonthlyPrice != 160 {
		t.Errorf("price = %v, want 160 from catalog", sub.MonthlyPrice)
	}
	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !sub.StartDate.Equal(wantStart) {
		t.Errorf("start = %v, want %v", sub.StartDate, wantStart)
	}
	if !sub.NextBilling.Equal(wantStart.AddDate(0, 1, 0)) {
		t.Errorf("next billing = %v, want +1 month", sub.NextBilling)
	}

	hist, _ := svc.History(context.Background(), sub.ID)
	if len(hist) != 1 || hist[0].Action != ActionCreated {
		t.Fatalf("history = %+v, want single created entry", hist)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateSpec{CustomerName: " ", StudioID: 1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Create(ctx, CreateSpec{CustomerName: "X", StudioID: 99}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown studio: err = %v, want ErrValidation", err)
	}
	_, err := svc.Create(ctx, CreateSpec{
		CustomerName: "X", StudioID: 1,
		Schedule: []SlotRef{
			{Weekday: time.Monday, Slot: "morning"},
			{Weekday: time.Monday, Slot: "evening"},
		},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate weekday: err = %v, want ErrValidation", err)
	}
}

func TestCreateStudentDiscount(t *testing.T) {
	svc, _ := newTestService(t)
	sub, err := svc.Create(context.Background(), CreateSpec{
		CustomerName: "Студент", StudioID: 1, Type: TypeStudent,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.MonthlyPrice != 128 {
		t.Fatalf("student price = %v, want 128", sub.MonthlyPrice)
	}
}

// На каждую пару (статус, действие) — либо определённый новый статус
// плюс ровно одна запись истории, либо ErrInvalidTransition. Тихих
// no-op не бывает.
func TestTransitionTable(t *testing.T) {
	type action struct {
		name string
		call func(svc *Service, id int64) error
	}
	actions := []action{
		{"pause", func(svc *Service, id int64) error { _, err := svc.Pause(context.Background(), id, "отпуск", "admin"); return err }},
		{"resume", func(svc *Service, id int64) error { _, err := svc.Resume(context.Background(), id, "admin"); return err }},
		{"cancel", func(svc *Service, id int64) error { _, err := svc.Cancel(context.Background(), id, "переезд", "admin"); return err }},
		{"markOverdue", func(svc *Service, id int64) error { _, err := svc.MarkOverdue(context.Background(), id, "billing"); return err }},
	}
	allowed := map[Status]map[string]Status{
		StatusActive:    {"pause": StatusPaused, "cancel": StatusCancelled, "markOverdue": StatusOverdue},
		StatusPaused:    {"resume": StatusActive, "cancel": StatusCancelled},
		StatusOverdue:   {"cancel": StatusCancelled},
		StatusCancelled: {},
	}

	prepare := map[Status]func(t *testing.T, svc *Service) int64{
		StatusActive: func(t *testing.T, svc *Service) int64 { return mustCreate(t, svc).ID },
		StatusPaused: func(t *testing.T, svc *Service) int64 {
			id := mustCreate(t, svc).ID
			if _, err := svc.Pause(context.Background(), id, "", "admin"); err != nil {
				t.Fatalf("prepare paused: %v", err)
			}
			return id
		},
		StatusOverdue: func(t *testing.T, svc *Service) int64 {
			id := mustCreate(t, svc).ID
			if _, err := svc.MarkOverdue(context.Background(), id, "billing"); err != nil {
				t.Fatalf("prepare overdue: %v", err)
			}
			return id
		},
		StatusCancelled: func(t *testing.T, svc *Service) int64 {
			id := mustCreate(t, svc).ID
			if _, err := svc.Cancel(context.Background(), id, "переезд", "admin"); err != nil {
				t.Fatalf("prepare cancelled: %v", err)
			}
			return id
		},
	}

	for from, table := range allowed {
		for _, act := range actions {
			t.Run(string(from)+"/"+act.name, func(t *testing.T) {
				svc, _ := newTestService(t)
				id := prepare[from](t, svc)
				before, _ := svc.History(context.Background(), id)

				err := act.call(svc, id)
				after, _ := svc.History(context.Background(), id)
				sub, _ := svc.Get(context.Background(), id)

				if want, ok := table[act.name]; ok {
					if err != nil {
						t.Fatalf("%s from %s: unexpected error %v", act.name, from, err)
					}
					if sub.Status != want {
						t.Fatalf("status = %s, want %s", sub.Status, want)
					}
					if len(after) != len(before)+1 {
						t.Fatalf("history grew by %d, want 1", len(after)-len(before))
					}
					last := after[len(after)-1]
					if last.OldValue != string(from) || last.NewValue != string(want) {
						t.Fatalf("history values %q->%q, want %q->%q", last.OldValue, last.NewValue, from, want)
					}
				} else {
					if !errors.Is(err, ErrInvalidTransition) {
						t.Fatalf("%s from %s: err = %v, want ErrInvalidTransition", act.name, from, err)
					}
					if !strings.Contains(err.Error(), string(from)) {
						t.Fatalf("error %q must report current status %q", err, from)
					}
					if len(after) != len(before) {
						t.Fatalf("rejected action wrote history: %d -> %d", len(before), len(after))
					}
					if sub.Status != from {
						t.Fatalf("rejected action changed status to %s", sub.Status)
					}
				}
			})
		}
	}
}

func TestCancelRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)

	_, err := svc.Cancel(context.Background(), sub.ID, "   ", "admin")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("blank reason: err = %v, want ErrValidation", err)
	}
	hist, _ := svc.History(context.Background(), sub.ID)
	if len(hist) != 1 {
		t.Fatalf("failed cancel must not append history, got %d entries", len(hist))
	}
}

func TestResumeAdvancesBilling(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.Pause(ctx, sub.ID, "отпуск", "admin"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	got, err := svc.Resume(ctx, sub.ID, "admin")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	want := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	if !got.NextBilling.Equal(want) {
		t.Fatalf("next billing = %v, want %v", got.NextBilling, want)
	}
	if got.PauseReason != "" || got.PausedAt != nil {
		t.Fatalf("pause fields not cleared: %+v", got)
	}
}

func TestAddNote(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.AddNote(ctx, sub.ID, "  ", "admin"); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty note: err = %v, want ErrValidation", err)
	}

	got, err := svc.AddNote(ctx, sub.ID, "просил перенести смену", "admin")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if !strings.Contains(got.Notes, "[2025-03-10 12:30] просил перенести смену") {
		t.Fatalf("notes = %q, want timestamped line", got.Notes)
	}
	if got.Status != StatusActive {
		t.Fatalf("note changed status to %s", got.Status)
	}

	hist, _ := svc.History(ctx, sub.ID)
	if hist[len(hist)-1].Action != ActionNoteAdded {
		t.Fatalf("last history action = %s, want note_added", hist[len(hist)-1].Action)
	}
}

func TestUpdateFields(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)

	price := 180.0
	typ := TypeYearly
	got, err := svc.Update(context.Background(), sub.ID, UpdateSpec{MonthlyPrice: &price, Type: &typ}, "admin")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.MonthlyPrice != 180 || got.Type != TypeYearly {
		t.Fatalf("update not applied: %+v", got)
	}

	hist, _ := svc.History(context.Background(), sub.ID)
	if len(hist) != 2 || hist[1].Action != ActionUpdated {
		t.Fatalf("history = %+v, want created+updated", hist)
	}
}

// История строго растёт: на каждую мутацию ровно одна запись,
// прежние записи не меняются.
func TestHistoryAppendOnly(t *testing.T) {
	svc, _ := newTestService(t)
	sub := mustCreate(t, svc)
	ctx := context.Background()

	var snapshots [][]HistoryEntry
	snap := func() {
		h, _ := svc.History(ctx, sub.ID)
		snapshots = append(snapshots, h)
	}
	snap()
	_, _ = svc.Pause(ctx, sub.ID, "отпуск", "admin")
	snap()
	_, _ = svc.Resume(ctx, sub.ID, "admin")
	snap()
	_, _ = svc.AddNote(ctx, sub.ID, "заметка", "admin")
	snap()
	_, _ = svc.Cancel(ctx, sub.ID, "переезд", "admin")
	snap()

	for i := 1; i < len(snapshots); i++ {
		if len(snapshots[i]) != len(snapshots[i-1])+1 {
			t.Fatalf("step %d: history %d -> %d, want +1", i, len(snapshots[i-1]), len(snapshots[i]))
		}
		for j := range snapshots[i-1] {
			if snapshots[i][j] != snapshots[i-1][j] {
				t.Fatalf("step %d: entry %d rewritten", i, j)
			}
		}
	}
}

// Проигравший при конкурентной записи получает ErrConflict,
// а не молчаливую потерю своей записи аудита.
func TestConcurrentUpdateConflict(t *testing.T) {
	svc, store := newTestService(t)
	sub := mustCreate(t, svc)
	ctx := context.Background()

	first, _ := store.Get(ctx, sub.ID)
	second, _ := store.Get(ctx, sub.ID)

	first.Notes = "первый"
	if err := store.Update(ctx, first, HistoryEntry{Action: ActionUpdated, At: testNow}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	second.Notes = "второй"
	err := store.Update(ctx, second, HistoryEntry{Action: ActionUpdated, At: testNow})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update: err = %v, want ErrConflict", err)
	}

	hist, _ := store.History(ctx, sub.ID)
	if len(hist) != 2 { // created + первый update
		t.Fatalf("history = %d entries, want 2", len(hist))
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
