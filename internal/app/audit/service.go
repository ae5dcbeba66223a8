package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Service interface {
	Record(ctx context.Context, action string, actorID uint64, threadID *uint64, detail string) error
}

type service struct {
	repo   Repository
	logger *zap.SugaredLogger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger.Sugar(),
	}
}

func (s *service) Record(ctx context.Context, action string, actorID uint64, threadID *uint64, detail string) error {
	entry := &AuditLog{
		Action:   action,
		ActorID:  actorID,
		ThreadID: threadID,
		Detail:   detail,
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	s.logger.Debugw("Audit entry recorded",
		"action", action,
		"actor_id", actorID,
	)
	return nil
}
