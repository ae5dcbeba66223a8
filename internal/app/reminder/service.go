package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service interface {
	Schedule(ctx context.Context, threadID, recipientID uint64, delay time.Duration) error
	GetByThreadAndRecipient(ctx context.Context, threadID, recipientID uint64) (*Reminder, error)
}

type service struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewService(db *gorm.DB, logger *zap.Logger) Service {
	return &service{
		db:     db,
		logger: logger.Sugar(),
	}
}

// Schedule upserts the reminder row so a repeat send just pushes the nudge
// out and re-arms it.
func (s *service) Schedule(ctx context.Context, threadID, recipientID uint64, delay time.Duration) error {
	now := time.Now().UTC()
	remindAt := now.Add(delay)

	err := s.db.WithContext(ctx).Exec(`
		INSERT INTO reminders (thread_id, triggered_for, remind_at, sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (thread_id, triggered_for) DO UPDATE SET
			remind_at = EXCLUDED.remind_at,
			sent = EXCLUDED.sent,
			updated_at = EXCLUDED.updated_at
	`, threadID, recipientID, remindAt, false, now, now).Error
	if err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}

	s.logger.Debugw("Reply reminder scheduled",
		"thread_id", threadID,
		"triggered_for", recipientID,
		"remind_at", remindAt,
	)
	return nil
}

func (s *service) GetByThreadAndRecipient(ctx context.Context, threadID, recipientID uint64) (*Reminder, error) {
	var rem Reminder
	err := s.db.WithContext(ctx).
		Where("thread_id = ? AND triggered_for = ?", threadID, recipientID).
		First(&rem).Error
	if err != nil {
		return nil, err
	}
	return &rem, nil
}
