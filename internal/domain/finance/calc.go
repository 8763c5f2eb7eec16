// Package finance — чистая арифметика над снапшотом бизнес-конфига:
// расходы, потолок выручки, точка безубыточности, сценарии загрузки.
// Никакого состояния, только функции.
package finance

import (
	"errors"
	"math"

	"github.com/Spok95/studio-bot/internal/domain/pricing"
)

var ErrNoStudios = errors.New("finance: no studios configured")

// Плановые константы модели: 4 абонемента на студию,
// 8 разовых смен на студию в месяц, всего 20 смен в месяце,
// 30% свободных смен выкупается разовыми клиентами.
const (
	subsPerStudio     = 4
	casualPerStudio   = 8
	dayPartsPerMonth  = 20
	casualUptakeShare = 0.3
)

// TotalMonthlyCosts — сумма всех статей расходов.
func TotalMonthlyCosts(costs pricing.CostStructure) float64 {
	var sum float64
	for _, v := range costs {
		sum += v
	}
	return sum
}

// MaxMonthlyRevenue — теоретический потолок выручки в месяц.
func MaxMonthlyRevenue(cfg pricing.Config) float64 {
	var total float64
	for _, s := range cfg.Studios {
		total += s.MonthlyRate * subsPerStudio
		total += s.DayRate * casualPerStudio
	}
	total += float64(cfg.Lockers.Total) * cfg.Lockers.MonthlyRate
	return total
}

// BreakEvenOccupancy — какая доля абонементной ёмкости (в %) покрывает
// фиксированные расходы. Без студий не определена.
func BreakEvenOccupancy(cfg pricing.Config) (float64, error) {
	var subsCap float64
	for _, s := range cfg.Studios {
		subsCap += s.MonthlyRate * subsPerStudio
	}
	if subsCap == 0 {
		return 0, ErrNoStudios
	}
	return TotalMonthlyCosts(cfg.Costs) / subsCap * 100, nil
}

func MonthlyProfit(cfg pricing.Config, actualRevenue float64) float64 {
	return actualRevenue - TotalMonthlyCosts(cfg.Costs)
}

// ProfitPerPartner — доля одного партнёра от месячной прибыли.
func ProfitPerPartner(cfg pricing.Config, monthlyProfit float64) float64 {
	if cfg.Partners.Count < 1 {
		return 0
	}
	return monthlyProfit * cfg.Partners.SharePct / 100 / float64(cfg.Partners.Count)
}

// ScenarioResult — проекция выручки при заданной загрузке.
type ScenarioResult struct {
	SubscriptionPct     float64
	LockerPct           float64
	SubscriptionRevenue float64
	CasualRevenue       float64
	LockerRevenue       float64
	TotalRevenue        float64
	Profit              float64
	ProfitPerPartner    float64
}

// Scenario считает выручку при загрузке абонементов subPct и шкафчиков
// lockerPct (оба в процентах). Достижимое число абонентов распределяется
// жадно по студиям в порядке каталога, до 4 на студию; свободные смены
// студии частично выкупаются разовыми клиентами.
func Scenario(cfg pricing.Config, subPct, lockerPct float64) ScenarioResult {
	res := ScenarioResult{SubscriptionPct: subPct, LockerPct: lockerPct}

	remaining := int(math.Round(float64(len(cfg.Studios)*subsPerStudio) * subPct / 100))
	for _, s := range cfg.Studios {
		take := subsPerStudio
		if remaining < take {
			take = remaining
		}
		remaining -= take
		res.SubscriptionRevenue += float64(take) * s.MonthlyRate

		free := math.Max(0, dayPartsPerMonth-float64(take)*subsPerStudio)
		res.CasualRevenue += math.Round(free*casualUptakeShare) * s.DayRate
	}

	res.LockerRevenue = math.Floor(float64(cfg.Lockers.Total)*lockerPct/100) * cfg.Lockers.MonthlyRate

	res.TotalRevenue = res.SubscriptionRevenue + res.CasualRevenue + res.LockerRevenue
	res.Profit = MonthlyProfit(cfg, res.TotalRevenue)
	res.ProfitPerPartner = ProfitPerPartner(cfg, res.Profit)
	return res
}
