// Package reports собирает месячные агрегаты по трём леджерам
// и выгружает их в CSV и Excel.
package reports

import (
	"time"

	"github.com/Spok95/studio-bot/internal/domain/bookings"
	"github.com/Spok95/studio-bot/internal/domain/finance"
	"github.com/Spok95/studio-bot/internal/domain/lockers"
	"github.com/Spok95/studio-bot/internal/domain/pricing"
	"github.com/Spok95/studio-bot/internal/domain/subscriptions"
)

// MonthlyAggregate — одна строка отчёта. Subscriptions/Bookings/Lockers —
// составляющие выручки, Revenue — их сумма.
type MonthlyAggregate struct {
	Month         string // YYYY-MM
	Revenue       float64
	Subscriptions float64
	Bookings      float64
	Lockers       float64
	Expenses      float64
	Profit        float64
	OccupancyPct  float64
}

// Input — снимки данных для построения отчёта.
type Input struct {
	Config        pricing.Config
	Subscriptions []subscriptions.Subscription
	Bookings      []bookings.Booking
	Rentals       []lockers.Rental
}

// BuildMonthly строит по одной строке на каждый месяц из [from; to]
// (границы — любые даты внутри первого и последнего месяца).
func BuildMonthly(in Input, from, to time.Time) []MonthlyAggregate {
	start := monthStart(from)
	end := monthStart(to)
	expenses := finance.TotalMonthlyCosts(in.Config.Costs)
	subsCap := len(in.Config.Studios) * 4

	var out []MonthlyAggregate
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		next := m.AddDate(0, 1, 0)
		row := MonthlyAggregate{Month: m.Format("2006-01"), Expenses: expenses}

		var activeSubs int
		for _, s := range in.Subscriptions {
			if s.StartDate.Before(next) && (s.CancelledAt == nil || !s.CancelledAt.Before(m)) {
				row.Subscriptions += s.MonthlyPrice
				activeSubs++
			}
		}
		for _, b := range in.Bookings {
			if b.Status != bookings.StatusCancelled && !b.Date.Before(m) && b.Date.Before(next) {
				row.Bookings += b.Price
			}
		}
		for _, r := range in.Rentals {
			if r.StartDate.Before(next) && !r.EndDate.Before(m) {
				row.Lockers += r.MonthlyRate
			}
		}

		row.Revenue = row.Subscriptions + row.Bookings + row.Lockers
		row.Profit = row.Revenue - row.Expenses
		if subsCap > 0 {
			row.OccupancyPct = float64(activeSubs) / float64(subsCap) * 100
		}
		out = append(out, row)
	}
	return out
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
