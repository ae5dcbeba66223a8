package reminder

import "time"

// Reminder is a per-(thread, recipient) nudge consumed by an external
// delivery worker. The unique pair makes scheduling an upsert.
type Reminder struct {
	ID           uint64    `json:"id" gorm:"primaryKey"`
	ThreadID     uint64    `json:"thread_id" gorm:"not null;uniqueIndex:idx_reminders_thread_recipient"`
	TriggeredFor uint64    `json:"triggered_for" gorm:"not null;uniqueIndex:idx_reminders_thread_recipient"`
	RemindAt     time.Time `json:"remind_at" gorm:"not null"`
	Sent         bool      `json:"sent" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Reminder) TableName() string {
	return "reminders"
}
