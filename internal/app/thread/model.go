package thread

import "time"

const (
	TypeDirect = "DIRECT"
	TypeGroup  = "GROUP"
)

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

type Thread struct {
	ID            uint64         `json:"id" gorm:"primaryKey"`
	Type          string         `json:"type" gorm:"type:varchar(16);not null;default:'DIRECT'"`
	ContextType   string         `json:"context_type" gorm:"type:varchar(32);not null;index:idx_threads_context"`
	ContextID     string         `json:"context_id" gorm:"type:varchar(64);not null;index:idx_threads_context"`
	Title         *string        `json:"title,omitempty" gorm:"type:varchar(255)"`
	CreatedBy     uint64         `json:"created_by" gorm:"not null"`
	LastMessageID *uint64        `json:"last_message_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"index"`
	Participants  []*Participant `json:"participants,omitempty" gorm:"foreignKey:ThreadID"`
}

func (Thread) TableName() string {
	return "threads"
}

// Participant is a user's membership in a thread. Deactivation flips
// IsActive instead of deleting so history survives.
type Participant struct {
	ID                uint64     `json:"id" gorm:"primaryKey"`
	ThreadID          uint64     `json:"thread_id" gorm:"not null;uniqueIndex:idx_participants_thread_user"`
	UserID            uint64     `json:"user_id" gorm:"not null;uniqueIndex:idx_participants_thread_user"`
	Role              string     `json:"role" gorm:"type:varchar(16);not null;default:'MEMBER'"`
	IsActive          bool       `json:"is_active" gorm:"not null;default:true"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	LastReadMessageID *uint64    `json:"last_read_message_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Participant) TableName() string {
	return "participants"
}

type CreateThreadRequest struct {
	ContextType    string   `json:"context_type" binding:"required"`
	ContextID      string   `json:"context_id" binding:"required"`
	ParticipantIDs []uint64 `json:"participant_ids" binding:"required"`
	Title          *string  `json:"title,omitempty"`
	Type           string   `json:"type,omitempty"`
}

type ThreadListResponse struct {
	Threads    []*Thread `json:"threads"`
	NextCursor *uint64   `json:"next_cursor,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
