package lockers

import "time"

// Status шкафчика — чистая проекция (endDate, now), нигде не хранится.
type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpired      Status = "expired"
)

// Окно «скоро истекает»: 30 дней до конца аренды включительно.
const expiringWindowDays = 30

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentOverdue PaymentStatus = "overdue"
)

// Rental — аренда шкафчика. В отличие от абонементов запись
// при расторжении удаляется насовсем, без архива.
type Rental struct {
	ID           int64
	Number       int
	CustomerName string
	Phone        string
	StartDate    time.Time
	EndDate      time.Time
	MonthlyRate  float64
	Payment      PaymentStatus
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusAt — статус по дате окончания на момент now.
// Обе даты приводятся к полуночи UTC, считаем целые дни.
func StatusAt(endDate, now time.Time) Status {
	days := int(utcDate(endDate).Sub(utcDate(now)).Hours() / 24)
	switch {
	case days <= 0:
		return StatusExpired
	case days <= expiringWindowDays:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

func (r Rental) StatusAt(now time.Time) Status { return StatusAt(r.EndDate, now) }

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
