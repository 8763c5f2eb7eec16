package subscriptions

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled" // терминальный
)

type Type string

const (
	TypeMonthly Type = "monthly"
	TypeYearly  Type = "yearly"
	TypeStudent Type = "student"
)

// SlotRef — один слот недельного расписания: день недели + смена.
// В одном абонементе день недели не повторяется.
type SlotRef struct {
	Weekday time.Weekday `json:"weekday"`
	Slot    string       `json:"slot"`
}

// Subscription — абонемент. Физически не удаляется никогда:
// отмена — терминальный статус, запись остаётся ради истории.
type Subscription struct {
	ID           int64
	CustomerName string
	Phone        string
	StudioID     int64
	Schedule     []SlotRef
	StartDate    time.Time
	NextBilling  time.Time
	MonthlyPrice float64
	Status       Status
	Type         Type
	Notes        string
	PauseReason  string
	PausedAt     *time.Time
	CancelReason string
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Действия в журнале истории.
const (
	ActionCreated       = "created"
	ActionPaused        = "paused"
	ActionResumed       = "resumed"
	ActionCancelled     = "cancelled"
	ActionNoteAdded     = "note_added"
	ActionUpdated       = "updated"
	ActionMarkedOverdue = "marked_overdue"
)

// HistoryEntry — запись аудита. Только добавляется, никогда
// не правится и не удаляется.
type HistoryEntry struct {
	ID             int64
	SubscriptionID int64
	Action         string
	At             time.Time
	Actor          string
	Details        string
	OldValue       string
	NewValue       string
}
