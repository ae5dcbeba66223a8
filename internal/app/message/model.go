package message

import (
	"time"

	"gorm.io/datatypes"
)

const (
	KindText       = "TEXT"
	KindAttachment = "ATTACHMENT"
	KindSystem     = "SYSTEM"
)

const (
	ModerationApproved = "APPROVED"
	ModerationFlagged  = "FLAGGED"
)

const (
	ReceiptSent      = "SENT"
	ReceiptDelivered = "DELIVERED"
	ReceiptRead      = "READ"
)

const (
	ScanPending  = "PENDING"
	ScanClean    = "CLEAN"
	ScanRejected = "REJECTED"
)

type Message struct {
	ID              uint64            `json:"id" gorm:"primaryKey"`
	ThreadID        uint64            `json:"thread_id" gorm:"not null;index:idx_messages_thread_sent"`
	SenderID        uint64            `json:"sender_id" gorm:"not null"`
	Content         *string           `json:"content,omitempty" gorm:"type:text"`
	Kind            string            `json:"kind" gorm:"type:varchar(16);not null;default:'TEXT'"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	SentAt          time.Time         `json:"sent_at" gorm:"not null;index:idx_messages_thread_sent"`
	ModerationState string            `json:"moderation_state" gorm:"type:varchar(16);not null;default:'APPROVED'"`
	Attachments     []*Attachment     `json:"attachments,omitempty" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}

// Attachment rows are owned by their message and go away with it.
type Attachment struct {
	ID         uint64    `json:"id" gorm:"primaryKey"`
	MessageID  uint64    `json:"message_id" gorm:"not null;index"`
	URL        string    `json:"url" gorm:"type:varchar(500);not null"`
	FileName   string    `json:"file_name" gorm:"not null"`
	MimeType   string    `json:"mime_type" gorm:"type:varchar(100);not null"`
	Size       int64     `json:"size" gorm:"not null"`
	ScanStatus string    `json:"scan_status" gorm:"type:varchar(16);not null;default:'PENDING'"`
	ObjectName string    `json:"object_name,omitempty" gorm:"type:varchar(500)"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

// Receipt is unique per (message, participant, status); repeats refresh
// OccurredAt instead of adding rows.
type Receipt struct {
	ID            uint64    `json:"id" gorm:"primaryKey"`
	MessageID     uint64    `json:"message_id" gorm:"not null;uniqueIndex:idx_receipts_msg_part_status"`
	ParticipantID uint64    `json:"participant_id" gorm:"not null;uniqueIndex:idx_receipts_msg_part_status"`
	Status        string    `json:"status" gorm:"type:varchar(16);not null;uniqueIndex:idx_receipts_msg_part_status"`
	OccurredAt    time.Time `json:"occurred_at" gorm:"not null"`
}

func (Receipt) TableName() string {
	return "receipts"
}

// Block is a directed edge; a block in either direction between two users
// refuses sends between them.
type Block struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	IssuerID  uint64    `json:"issuer_id" gorm:"not null;uniqueIndex:idx_blocks_issuer_target"`
	TargetID  uint64    `json:"target_id" gorm:"not null;uniqueIndex:idx_blocks_issuer_target"`
	CreatedAt time.Time `json:"created_at"`
}

func (Block) TableName() string {
	return "blocks"
}

type AttachmentInput struct {
	URL        string `json:"url" binding:"required"`
	FileName   string `json:"file_name" binding:"required"`
	MimeType   string `json:"mime_type" binding:"required"`
	Size       int64  `json:"size" binding:"required"`
	ObjectName string `json:"object_name,omitempty"`
}

type SendMessageRequest struct {
	Content     *string                `json:"content,omitempty"`
	Kind        string                 `json:"kind,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Attachments []AttachmentInput      `json:"attachments,omitempty"`
}

type AcknowledgeRequest struct {
	Status string `json:"status" binding:"required"`
}

type BlockRequest struct {
	TargetID uint64 `json:"target_id" binding:"required"`
}

type MessageListResponse struct {
	Messages   []*Message `json:"messages"`
	NextCursor *uint64    `json:"next_cursor,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
