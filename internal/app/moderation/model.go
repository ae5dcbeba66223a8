package moderation

import "time"

// Report is created inside the send transaction when a message is
// flagged; the reporter is the sender.
type Report struct {
	ID         uint64    `json:"id" gorm:"primaryKey"`
	MessageID  uint64    `json:"message_id" gorm:"not null;index"`
	ReporterID uint64    `json:"reporter_id" gorm:"not null"`
	Reason     string    `json:"reason" gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Report) TableName() string {
	return "reports"
}
