package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrValidation = errors.New("pricing: validation")
	ErrNotFound   = errors.New("pricing: studio not found")
	// ErrCapacity — нельзя удалить последнюю студию: каталог не бывает пустым.
	ErrCapacity = errors.New("pricing: capacity")
)

// RateUnit — единица аренды для выбора тарифа.
type RateUnit string

const (
	UnitHour  RateUnit = "hour"
	UnitDay   RateUnit = "day"
	UnitMonth RateUnit = "month"
)

// Store сохраняет бизнес-конфиг как один документ целиком.
type Store interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// Catalog — тарифный каталог. Все мутации идут через него и
// сразу пишутся в Store (replace-on-write всего документа).
// Мутация готовится на копии и публикуется только после удачного
// сохранения: упавший Save не оставляет расхождения между памятью
// и документом.
type Catalog struct {
	mu     sync.Mutex
	cfg    Config
	store  Store
	nextID int64
}

func NewCatalog(cfg Config, store Store) *Catalog {
	var next int64 = 1
	for _, s := range cfg.Studios {
		if s.ID >= next {
			next = s.ID + 1
		}
	}
	return &Catalog{cfg: cfg.Clone(), store: store, nextID: next}
}

// StudioSpec — входные данные для создания студии.
type StudioSpec struct {
	Name       string
	AreaM2     float64
	HourlyRate float64
	Capacity   int
}

// StudioUpdate — частичное обновление; nil-поле не трогаем.
type StudioUpdate struct {
	Name        *string
	AreaM2      *float64
	HourlyRate  *float64
	DayRate     *float64
	MonthlyRate *float64
	Capacity    *int
}

func (c *Catalog) AddStudio(ctx context.Context, spec StudioSpec) (Studio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Studio{}, fmt.Errorf("%w: empty studio name", ErrValidation)
	}
	for _, s := range c.cfg.Studios {
		if strings.EqualFold(s.Name, name) {
			return Studio{}, fmt.Errorf("%w: duplicate studio %q", ErrValidation, name)
		}
	}
	if spec.HourlyRate < 0 {
		return Studio{}, fmt.Errorf("%w: negative hourly rate", ErrValidation)
	}

	s := Studio{
		ID:          c.nextID,
		Name:        name,
		AreaM2:      spec.AreaM2,
		HourlyRate:  spec.HourlyRate,
		DayRate:     spec.HourlyRate * 4,
		MonthlyRate: spec.HourlyRate * 16,
		Capacity:    spec.Capacity,
	}
	cand := c.cfg.Clone()
	cand.Studios = append(cand.Studios, s)
	if err := c.commit(ctx, cand); err != nil {
		return Studio{}, err
	}
	c.nextID++
	return s, nil
}

// UpdateStudio применяет частичное обновление. Дневной и месячный
// тарифы пересчитываются только при смене часового; явно переданные
// значения из upd имеют приоритет над пересчётом.
func (c *Catalog) UpdateStudio(ctx context.Context, id int64, upd StudioUpdate) (Studio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return Studio{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	cand := c.cfg.Clone()
	s := cand.Studios[idx]

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Studio{}, fmt.Errorf("%w: empty studio name", ErrValidation)
		}
		s.Name = name
	}
	if upd.AreaM2 != nil {
		s.AreaM2 = *upd.AreaM2
	}
	if upd.Capacity != nil {
		s.Capacity = *upd.Capacity
	}
	if upd.HourlyRate != nil && *upd.HourlyRate != s.HourlyRate {
		s.HourlyRate = *upd.HourlyRate
		s.DayRate = s.HourlyRate * 4
		s.MonthlyRate = s.HourlyRate * 16
	}
	if upd.DayRate != nil {
		s.DayRate = *upd.DayRate
	}
	if upd.MonthlyRate != nil {
		s.MonthlyRate = *upd.MonthlyRate
	}

	cand.Studios[idx] = s
	if err := c.commit(ctx, cand); err != nil {
		return Studio{}, err
	}
	return s, nil
}

func (c *Catalog) RemoveStudio(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if len(c.cfg.Studios) == 1 {
		return fmt.Errorf("%w: cannot remove the last studio", ErrCapacity)
	}
	cand := c.cfg.Clone()
	cand.Studios = append(cand.Studios[:idx], cand.Studios[idx+1:]...)
	return c.commit(ctx, cand)
}

// RateFor — тариф студии для единицы аренды.
func (c *Catalog) RateFor(studioID int64, unit RateUnit) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(studioID)
	if idx < 0 {
		return 0, fmt.Errorf("%w: id=%d", ErrNotFound, studioID)
	}
	s := c.cfg.Studios[idx]
	switch unit {
	case UnitHour:
		return s.HourlyRate, nil
	case UnitDay:
		return s.DayRate, nil
	case UnitMonth:
		return s.MonthlyRate, nil
	default:
		return 0, fmt.Errorf("%w: unknown rate unit %q", ErrValidation, unit)
	}
}

// MonthlyPriceFor — месячная цена абонемента данного типа
// со скидкой из конфига ("monthly" — без скидки).
func (c *Catalog) MonthlyPriceFor(studioID int64, subType string) (float64, error) {
	base, err := c.RateFor(studioID, UnitMonth)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch subType {
	case "student":
		return base * (100 - c.cfg.Discounts.StudentPct) / 100, nil
	case "yearly":
		return base * (100 - c.cfg.Discounts.YearlyPct) / 100, nil
	default:
		return base, nil
	}
}

func (c *Catalog) Studio(id int64) (Studio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOf(id)
	if idx < 0 {
		return Studio{}, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return c.cfg.Studios[idx], nil
}

func (c *Catalog) Studios() []Studio {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Studio, len(c.cfg.Studios))
	copy(out, c.cfg.Studios)
	return out
}

// Snapshot — копия всего бизнес-конфига для калькулятора и отчётов.
func (c *Catalog) Snapshot() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

func (c *Catalog) indexOf(id int64) int {
	for i, s := range c.cfg.Studios {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) commit(ctx context.Context, cfg Config) error {
	if c.store != nil {
		if err := c.store.Save(ctx, cfg); err != nil {
			return err
		}
	}
	c.cfg = cfg
	return nil
}
