package pricing

// Studio — тарифная карта одной студии.
// DayRate и MonthlyRate выводятся из HourlyRate при создании
// (x4 и x16), но дальше могут редактироваться независимо.
type Studio struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	AreaM2      float64 `yaml:"area_m2"`
	HourlyRate  float64 `yaml:"hourly_rate"`
	DayRate     float64 `yaml:"day_rate"`
	MonthlyRate float64 `yaml:"monthly_rate"`
	Capacity    int     `yaml:"capacity"`
}

// LockerCatalog — шкафчики для хранения: сколько всего, тариф в месяц, габариты.
type LockerCatalog struct {
	Total       int     `yaml:"total"`
	MonthlyRate float64 `yaml:"monthly_rate"`
	Size        string  `yaml:"size"`
}

// CostStructure — фиксированные месячные расходы по статьям.
type CostStructure map[string]float64

// PartnerSplit — сколько партнёров и какая доля прибыли у каждого (в %).
type PartnerSplit struct {
	Count    int     `yaml:"count"`
	SharePct float64 `yaml:"share_pct"`
}

// Discounts — скидки на абонементы по типу, в процентах от месячного тарифа.
type Discounts struct {
	StudentPct float64 `yaml:"student_pct"`
	YearlyPct  float64 `yaml:"yearly_pct"`
}

// Config — полный бизнес-конфиг. Хранится и заменяется целиком
// как один документ (см. infra/configfile).
type Config struct {
	Studios            []Studio      `yaml:"studios"`
	Lockers            LockerCatalog `yaml:"lockers"`
	Costs              CostStructure `yaml:"costs"`
	Partners           PartnerSplit  `yaml:"partners"`
	Discounts          Discounts     `yaml:"discounts"`
	BreakEvenTargetPct float64       `yaml:"break_even_target_pct"`
}

// Clone — глубокая копия: снапшот можно отдавать наружу без гонок.
func (c Config) Clone() Config {
	out := c
	out.Studios = make([]Studio, len(c.Studios))
	copy(out.Studios, c.Studios)
	out.Costs = make(CostStructure, len(c.Costs))
	for k, v := range c.Costs {
		out.Costs[k] = v
	}
	return out
}
