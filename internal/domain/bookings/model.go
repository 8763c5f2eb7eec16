package bookings

import "time"

// Slot — фиксированная смена. SlotDouble — сдвоенная (вечер+поздняя),
// в списках доступности не показывается.
type Slot string

const (
	SlotMorning   Slot = "morning"   // 09:00–12:00
	SlotAfternoon Slot = "afternoon" // 12:00–15:00
	SlotEvening   Slot = "evening"   // 15:00–18:00
	SlotLate      Slot = "late"      // 18:00–21:00
	SlotDouble    Slot = "double"    // 15:00–21:00
)

// Часов в одной смене; дневная бронь тарифицируется посменно.
const slotHours = 3

// Slots — полный каталог смен.
func Slots() []Slot {
	return []Slot{SlotMorning, SlotAfternoon, SlotEvening, SlotLate, SlotDouble}
}

// availabilitySlots — смены, которые предлагаем при бронировании.
func availabilitySlots() []Slot {
	return []Slot{SlotMorning, SlotAfternoon, SlotEvening, SlotLate}
}

// blocks — занимает ли существующая бронь смену slot.
// Сдвоенная смена закрывает обе свои половины.
func (s Slot) blocks(slot Slot) bool {
	if s == slot {
		return true
	}
	return s == SlotDouble && (slot == SlotEvening || slot == SlotLate)
}

type Type string

const (
	TypeHourly Type = "hourly"
	TypeDaily  Type = "daily"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed" // терминальный
	StatusCancelled Status = "cancelled" // терминальный
)

func (st Status) Terminal() bool {
	return st == StatusCompleted || st == StatusCancelled
}

type Booking struct {
	ID            int64
	CustomerName  string
	Phone         string
	StudioID      int64
	Date          time.Time // полночь UTC
	Slot          Slot
	DurationHours int
	Type          Type
	Price         float64
	Status        Status
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailabilitySlot — вычисляемая строка доступности, нигде не хранится.
type AvailabilitySlot struct {
	StudioID  int64
	Date      time.Time
	Slot      Slot
	Available bool
}
