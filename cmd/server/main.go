package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/studio-bot/internal/config"
	"github.com/Spok95/studio-bot/internal/domain/bookings"
	"github.com/Spok95/studio-bot/internal/domain/finance"
	"github.com/Spok95/studio-bot/internal/domain/lockers"
	"github.com/Spok95/studio-bot/internal/domain/pricing"
	"github.com/Spok95/studio-bot/internal/domain/reports"
	"github.com/Spok95/studio-bot/internal/domain/subscriptions"
	"github.com/Spok95/studio-bot/internal/infra/configfile"
	"github.com/Spok95/studio-bot/internal/infra/db"
	httpx "github.com/Spok95/studio-bot/internal/infra/http"
	"github.com/Spok95/studio-bot/internal/infra/logger"
	"github.com/Spok95/studio-bot/internal/infra/metrics"
	"github.com/Spok95/studio-bot/internal/infra/notify"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	bizStore := configfile.New(cfg.Business.ConfigPath)
	bizCfg, err := bizStore.Load(ctx)
	if err != nil {
		log.Error("business config load failed", "err", err)
		return
	}
	catalog := pricing.NewCatalog(bizCfg, bizStore)

	var mx *metrics.Metrics
	if cfg.Metrics.Enabled {
		mx = metrics.New()
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminChatID, log)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		notifier = tg
	}

	subsSvc := subscriptions.NewService(subscriptions.NewRepo(pool), catalog, log, notifier, mx)
	lockSvc := lockers.NewService(lockers.NewRepo(pool), catalog, log, notifier, mx)
	bookSvc := bookings.NewService(bookings.NewRepo(pool), catalog, scheduleFromSubs(subsSvc), log, notifier, mx)

	logStartupSummary(ctx, log, catalog, lockSvc, bookSvc)

	report := reports.Handler(func(ctx context.Context) (reports.Input, error) {
		subs, err := subsSvc.List(ctx)
		if err != nil {
			return reports.Input{}, err
		}
		books, err := bookSvc.List(ctx)
		if err != nil {
			return reports.Input{}, err
		}
		rentals, err := lockSvc.List(ctx)
		if err != nil {
			return reports.Input{}, err
		}
		return reports.Input{
			Config:        catalog.Snapshot(),
			Subscriptions: subs,
			Bookings:      books,
			Rentals:       rentals,
		}, nil
	}, log)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, func(ctx context.Context) error {
		return pool.Ping(ctx)
	}, report)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

// scheduleFromSubs отдаёт слоты, занятые неотменёнными абонементами:
// их не предлагаем разовым клиентам в сетке доступности.
func scheduleFromSubs(svc *subscriptions.Service) bookings.ScheduleFunc {
	return func(ctx context.Context) (map[bookings.SlotKey]struct{}, error) {
		list, err := svc.List(ctx)
		if err != nil {
			return nil, err
		}
		out := map[bookings.SlotKey]struct{}{}
		for _, s := range list {
			if s.Status == subscriptions.StatusCancelled {
				continue
			}
			for _, sl := range s.Schedule {
				out[bookings.SlotKey{
					StudioID: s.StudioID,
					Weekday:  sl.Weekday,
					Slot:     bookings.Slot(sl.Slot),
				}] = struct{}{}
			}
		}
		return out, nil
	}
}

func logStartupSummary(ctx context.Context, log *slog.Logger, catalog *pricing.Catalog, lockSvc *lockers.Service, bookSvc *bookings.Service) {
	snap := catalog.Snapshot()

	if be, err := finance.BreakEvenOccupancy(snap); err == nil {
		log.Info("break-even occupancy", "pct", be, "target_pct", snap.BreakEvenTargetPct)
	}
	if occ, err := lockSvc.OccupancyRate(ctx); err == nil {
		log.Info("locker occupancy", "pct", occ)
	}
	if slots, err := bookSvc.AvailableSlots(ctx, 7); err == nil {
		free := 0
		for _, s := range slots {
			if s.Available {
				free++
			}
		}
		log.Info("booking grid", "free_slots_week", free, "total_slots_week", len(slots))
	}
}
