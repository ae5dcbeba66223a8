package thread

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backend/internal/apperr"
	"backend/internal/app/audit"
	"backend/internal/eventbus"
	"backend/internal/workers"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service interface {
	CreateThread(ctx context.Context, req *CreateThreadRequest, creatorID uint64) (*Thread, error)
	ListThreads(ctx context.Context, userID uint64, take int, cursor *uint64) ([]*Thread, *uint64, error)
	GetThreadByID(ctx context.Context, threadID uint64) (*Thread, error)
	IsActiveParticipant(ctx context.Context, threadID, userID uint64) (bool, error)
	ActiveParticipants(ctx context.Context, threadID uint64) ([]*Participant, error)
	GetActiveParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error)
	AdvanceReadCursor(ctx context.Context, participantID, messageID uint64) error
}

type service struct {
	repo     Repository
	dbConn   *gorm.DB
	eventBus eventbus.Bus
	pool     *workers.Pool
	auditSvc audit.Service
	logger   *zap.SugaredLogger
}

func NewService(
	repo Repository,
	dbConn *gorm.DB,
	eventBus eventbus.Bus,
	pool *workers.Pool,
	auditSvc audit.Service,
	logger *zap.Logger,
) Service {
	return &service{
		repo:     repo,
		dbConn:   dbConn,
		eventBus: eventBus,
		pool:     pool,
		auditSvc: auditSvc,
		logger:   logger.Sugar(),
	}
}

// CreateThread is idempotent on (context, active participant set): a
// repeat call with the same context and the same set returns the existing
// thread instead of creating a sibling.
func (s *service) CreateThread(ctx context.Context, req *CreateThreadRequest, creatorID uint64) (*Thread, error) {
	if req.ContextType == "" {
		return nil, apperr.Validation("context_type", "must not be empty")
	}
	if req.ContextID == "" {
		return nil, apperr.Validation("context_id", "must not be empty")
	}
	if len(req.ParticipantIDs) == 0 {
		return nil, apperr.Validation("participant_ids", "must not be empty")
	}

	memberIDs := normalizeParticipants(req.ParticipantIDs, creatorID)

	threadType := req.Type
	switch threadType {
	case "":
		threadType = TypeDirect
		if len(memberIDs) > 2 {
			threadType = TypeGroup
		}
	case TypeDirect, TypeGroup:
	default:
		return nil, apperr.Validation("type", "must be DIRECT or GROUP")
	}

	existing, err := s.repo.FindByContext(ctx, req.ContextType, req.ContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to search existing threads: %w", err)
	}
	for _, t := range existing {
		if activeSetEquals(t.Participants, memberIDs) {
			s.logger.Debugw("Thread creation matched existing thread",
				"thread_id", t.ID,
				"context_type", req.ContextType,
				"context_id", req.ContextID,
			)
			return t, nil
		}
	}

	now := time.Now().UTC()
	t := &Thread{
		Type:        threadType,
		ContextType: req.ContextType,
		ContextID:   req.ContextID,
		Title:       req.Title,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		for _, userID := range memberIDs {
			role := RoleMember
			if userID == creatorID {
				role = RoleAdmin
			}
			p := &Participant{
				ThreadID:  t.ID,
				UserID:    userID,
				Role:      role,
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			t.Participants = append(t.Participants, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	s.eventBus.Publish(ctx, eventbus.NewEvent(eventbus.EventThreadUpdated, t.ID, creatorID, map[string]interface{}{
		"thread": t,
	}))

	threadID := t.ID
	s.pool.Submit("audit.thread_created", func(ctx context.Context) error {
		return s.auditSvc.Record(ctx, audit.ActionThreadCreated, creatorID, &threadID,
			fmt.Sprintf("context=%s:%s participants=%d", t.ContextType, t.ContextID, len(memberIDs)))
	})

	s.logger.Infow("Thread created",
		"thread_id", t.ID,
		"type", t.Type,
		"context_type", t.ContextType,
		"context_id", t.ContextID,
	)

	return t, nil
}

func (s *service) ListThreads(ctx context.Context, userID uint64, take int, cursor *uint64) ([]*Thread, *uint64, error) {
	if take < 1 {
		take = 20
	}
	if take > 100 {
		take = 100
	}

	threads, err := s.repo.ListByUser(ctx, userID, take, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var nextCursor *uint64
	if len(threads) == take {
		last := threads[len(threads)-1].ID
		nextCursor = &last
	}
	return threads, nextCursor, nil
}

func (s *service) GetThreadByID(ctx context.Context, threadID uint64) (*Thread, error) {
	return s.repo.GetByID(ctx, threadID)
}

func (s *service) IsActiveParticipant(ctx context.Context, threadID, userID uint64) (bool, error) {
	_, err := s.repo.GetActiveParticipant(ctx, threadID, userID)
	if err == apperr.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) ActiveParticipants(ctx context.Context, threadID uint64) ([]*Participant, error) {
	return s.repo.ActiveParticipants(ctx, threadID)
}

func (s *service) GetActiveParticipant(ctx context.Context, threadID, userID uint64) (*Participant, error) {
	return s.repo.GetActiveParticipant(ctx, threadID, userID)
}

func (s *service) AdvanceReadCursor(ctx context.Context, participantID, messageID uint64) error {
	return s.repo.UpdateReadCursor(ctx, participantID, messageID, time.Now().UTC())
}

func normalizeParticipants(ids []uint64, creatorID uint64) []uint64 {
	seen := map[uint64]bool{creatorID: true}
	out := []uint64{creatorID}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func activeSetEquals(participants []*Participant, memberIDs []uint64) bool {
	active := make(map[uint64]bool)
	for _, p := range participants {
		if p.IsActive {
			active[p.UserID] = true
		}
	}
	if len(active) != len(memberIDs) {
		return false
	}
	for _, id := range memberIDs {
		if !active[id] {
			return false
		}
	}
	return true
}
