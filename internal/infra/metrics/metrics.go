package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счётчики операций и гейджи загрузки.
// Nil-безопасен: сервисы можно собирать без метрик.
type Metrics struct {
	ops             *prometheus.CounterVec
	lockerOccupancy prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		ops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiobot",
			Name:      "operations_total",
			Help:      "Успешные операции движка по сущностям и действиям.",
		}, []string{"entity", "action"}),
		lockerOccupancy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "studiobot",
			Name:      "locker_occupancy_pct",
			Help:      "Текущая занятость шкафчиков, %.",
		}),
	}
}

func (m *Metrics) IncOp(entity, action string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(entity, action).Inc()
}

func (m *Metrics) SetLockerOccupancy(pct float64) {
	if m == nil {
		return
	}
	m.lockerOccupancy.Set(pct)
}
