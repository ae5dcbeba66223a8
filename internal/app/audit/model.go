package audit

import "time"

const (
	ActionThreadCreated  = "THREAD_CREATED"
	ActionMessageSent    = "MESSAGE_SENT"
	ActionMessageFlagged = "MESSAGE_FLAGGED"
)

// AuditLog rows are append-only; nothing in this core updates or deletes
// them.
type AuditLog struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	Action    string    `json:"action" gorm:"type:varchar(32);not null;index"`
	ActorID   uint64    `json:"actor_id" gorm:"not null"`
	ThreadID  *uint64   `json:"thread_id,omitempty" gorm:"index"`
	Detail    string    `json:"detail" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
