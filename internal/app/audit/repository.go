package audit

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByThread(ctx context.Context, threadID uint64, limit int) ([]*AuditLog, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, entry *AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByThread(ctx context.Context, threadID uint64, limit int) ([]*AuditLog, error) {
	var entries []*AuditLog
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
