package thread

import (
	"context"
	"errors"
	"time"

	"backend/internal/apperr"

	"gorm.io/gorm"
)

type Repository interface {
	GetByID(ctx context.Context, id uint64) (*Thread, error)
	FindByContext(ctx context.Context, contextType, contextID string) ([]*Thread, error)
	ListByUser(ctx context.Context, userID uint64, take int, cursor *uint64) ([]*Thread, error)
	ActiveParticipants(ctx context.Context, threadID uint64) ([]*Participant, error)
	GetActiveParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error)
	UpdateReadCursor(ctx context.Context, participantID, messageID uint64, at time.Time) error
	DeactivateParticipant(ctx context.Context, threadID, userID uint64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uint64) (*Thread, error) {
	var t Thread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("threads.id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) FindByContext(ctx context.Context, contextType, contextID string) ([]*Thread, error) {
	var threads []*Thread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("context_type = ? AND context_id = ?", contextType, contextID).
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uint64, take int, cursor *uint64) ([]*Thread, error) {
	query := r.db.WithContext(ctx).
		Table("threads").
		Joins("JOIN participants ON participants.thread_id = threads.id").
		Where("participants.user_id = ? AND participants.is_active = ?", userID, true)

	if cursor != nil {
		var pivot Thread
		if err := r.db.WithContext(ctx).Where("id = ?", *cursor).First(&pivot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.ErrNotFound
			}
			return nil, err
		}
		query = query.Where(
			"threads.updated_at < ? OR (threads.updated_at = ? AND threads.id < ?)",
			pivot.UpdatedAt, pivot.UpdatedAt, pivot.ID,
		)
	}

	var threads []*Thread
	err := query.
		Order("threads.updated_at DESC, threads.id DESC").
		Limit(take).
		Select("threads.*").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *repository) ActiveParticipants(ctx context.Context, threadID uint64) ([]*Participant, error) {
	var participants []*Participant
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND is_active = ?", threadID, true).
		Order("id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *repository) GetActiveParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error) {
	var p Participant
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ? AND is_active = ?", threadID, userID, true).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateReadCursor only moves the cursor forward; an acknowledgement for
// an older message never rewinds it.
func (r *repository) UpdateReadCursor(ctx context.Context, participantID, messageID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE participants SET
			last_read_at = ?,
			last_read_message_id = ?,
			updated_at = ?
		WHERE id = ? AND (last_read_message_id IS NULL OR last_read_message_id < ?)
	`, at, messageID, at, participantID, messageID).Error
}

func (r *repository) DeactivateParticipant(ctx context.Context, threadID, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&Participant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error
}
