package message

import (
	"context"
	"errors"
	"time"

	"backend/internal/apperr"

	"gorm.io/gorm"
)

type Repository interface {
	GetByID(ctx context.Context, id uint64) (*Message, error)
	ListByThread(ctx context.Context, threadID uint64, take int, cursor *uint64) ([]*Message, error)
	HasBlockBetween(ctx context.Context, userID uint64, otherIDs []uint64) (bool, error)
	UpsertBlock(ctx context.Context, issuerID, targetID uint64) error
	DeleteBlock(ctx context.Context, issuerID, targetID uint64) error
	GetReceipt(ctx context.Context, messageID, participantID uint64, status string) (*Receipt, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uint64) (*Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("messages.id = ?", id).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByThread walks backward from the cursor (or from now) and returns
// at most take messages in descending (sent_at, id) order. Callers reverse
// the slice for chronological display.
func (r *repository) ListByThread(ctx context.Context, threadID uint64, take int, cursor *uint64) ([]*Message, error) {
	query := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("messages.thread_id = ?", threadID)

	if cursor != nil {
		var pivot Message
		err := r.db.WithContext(ctx).Where("id = ?", *cursor).First(&pivot).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		query = query.Where(
			"messages.sent_at < ? OR (messages.sent_at = ? AND messages.id < ?)",
			pivot.SentAt, pivot.SentAt, pivot.ID,
		)
	}

	var messages []*Message
	err := query.
		Order("messages.sent_at DESC, messages.id DESC").
		Limit(take).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repository) HasBlockBetween(ctx context.Context, userID uint64, otherIDs []uint64) (bool, error) {
	if len(otherIDs) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&Block{}).
		Where("(issuer_id = ? AND target_id IN ?) OR (target_id = ? AND issuer_id IN ?)",
			userID, otherIDs, userID, otherIDs).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpsertBlock(ctx context.Context, issuerID, targetID uint64) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO blocks (issuer_id, target_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (issuer_id, target_id) DO NOTHING
	`, issuerID, targetID, time.Now().UTC()).Error
}

func (r *repository) DeleteBlock(ctx context.Context, issuerID, targetID uint64) error {
	return r.db.WithContext(ctx).
		Where("issuer_id = ? AND target_id = ?", issuerID, targetID).
		Delete(&Block{}).Error
}

func (r *repository) GetReceipt(ctx context.Context, messageID, participantID uint64, status string) (*Receipt, error) {
	var receipt Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND participant_id = ? AND status = ?", messageID, participantID, status).
		First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
