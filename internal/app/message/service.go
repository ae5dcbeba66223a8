package message

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"backend/internal/apperr"
	"backend/internal/app/audit"
	"backend/internal/app/moderation"
	"backend/internal/app/notify"
	"backend/internal/app/reminder"
	"backend/internal/app/thread"
	"backend/internal/eventbus"
	miniop "backend/internal/providers/minio"
	"backend/internal/workers"

	"gorm.io/datatypes"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxContentRunes = 9999

type Service interface {
	SendMessage(ctx context.Context, threadID, senderID uint64, req *SendMessageRequest) (*Message, error)
	Acknowledge(ctx context.Context, messageID, userID uint64, status string) error
	ListMessages(ctx context.Context, threadID, userID uint64, take int, cursor *uint64) ([]*Message, *uint64, error)
	BlockUser(ctx context.Context, issuerID, targetID uint64) error
	UnblockUser(ctx context.Context, issuerID, targetID uint64) error
}

type Options struct {
	MaxAttachmentSize  int64
	MaxAttachmentsSent int
	ReminderDelay      time.Duration
}

type service struct {
	repo        Repository
	threadSvc   thread.Service
	dbConn      *gorm.DB
	eventBus    eventbus.Bus
	pool        *workers.Pool
	auditSvc    audit.Service
	notifier    notify.Dispatcher
	reminderSvc reminder.Service
	minioP      *miniop.MinioProvider
	opts        Options
	logger      *zap.SugaredLogger
}

func NewService(
	repo Repository,
	threadSvc thread.Service,
	dbConn *gorm.DB,
	eventBus eventbus.Bus,
	pool *workers.Pool,
	auditSvc audit.Service,
	notifier notify.Dispatcher,
	reminderSvc reminder.Service,
	minioP *miniop.MinioProvider,
	opts Options,
	logger *zap.Logger,
) Service {
	if opts.MaxAttachmentSize <= 0 {
		opts.MaxAttachmentSize = 5 * 1024 * 1024
	}
	if opts.MaxAttachmentsSent <= 0 {
		opts.MaxAttachmentsSent = 5
	}
	if opts.ReminderDelay <= 0 {
		opts.ReminderDelay = 2 * time.Hour
	}
	return &service{
		repo:        repo,
		threadSvc:   threadSvc,
		dbConn:      dbConn,
		eventBus:    eventBus,
		pool:        pool,
		auditSvc:    auditSvc,
		notifier:    notifier,
		reminderSvc: reminderSvc,
		minioP:      minioP,
		opts:        opts,
		logger:      logger.Sugar(),
	}
}

// SendMessage validates, moderates and persists the message, attachments,
// receipts and report in one transaction, then hands every side effect to
// the bus and the worker pool. A flagged verdict degrades visibility for
// staff; it never blocks delivery.
func (s *service) SendMessage(ctx context.Context, threadID, senderID uint64, req *SendMessageRequest) (*Message, error) {
	content, kind, err := s.validateSend(req)
	if err != nil {
		return nil, err
	}

	t, err := s.threadSvc.GetThreadByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	participants, err := s.threadSvc.ActiveParticipants(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	var sender *thread.Participant
	var others []*thread.Participant
	for _, p := range participants {
		if p.UserID == senderID {
			sender = p
		} else {
			others = append(others, p)
		}
	}
	if sender == nil {
		return nil, apperr.ErrUnauthorized
	}
	if len(others) == 0 {
		return nil, apperr.ErrNoRecipients
	}

	otherIDs := make([]uint64, 0, len(others))
	for _, p := range others {
		otherIDs = append(otherIDs, p.UserID)
	}

	blocked, err := s.repo.HasBlockBetween(ctx, senderID, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocks: %w", err)
	}
	if blocked {
		return nil, apperr.ErrBlocked
	}

	verdict := moderation.Verdict{}
	if content != nil {
		verdict = moderation.Scan(*content)
	}
	moderationState := ModerationApproved
	if verdict.Flagged {
		moderationState = ModerationFlagged
	}

	now := time.Now().UTC()
	msg := &Message{
		ThreadID:        threadID,
		SenderID:        senderID,
		Content:         content,
		Kind:            kind,
		SentAt:          now,
		ModerationState: moderationState,
	}
	if len(req.Metadata) > 0 {
		msg.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err = s.dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		for _, input := range req.Attachments {
			att := &Attachment{
				MessageID:  msg.ID,
				URL:        input.URL,
				FileName:   input.FileName,
				MimeType:   input.MimeType,
				Size:       input.Size,
				ScanStatus: ScanPending,
				ObjectName: input.ObjectName,
				CreatedAt:  now,
			}
			if err := tx.Create(att).Error; err != nil {
				return err
			}
			msg.Attachments = append(msg.Attachments, att)
		}

		if err := tx.Exec(`
			UPDATE threads SET last_message_id = ?, updated_at = ? WHERE id = ?
		`, msg.ID, now, threadID).Error; err != nil {
			return err
		}

		// Duplicate fan-out is safe: the unique triple turns repeats
		// into no-ops.
		for _, p := range others {
			if err := tx.Exec(`
				INSERT INTO receipts (message_id, participant_id, status, occurred_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (message_id, participant_id, status) DO NOTHING
			`, msg.ID, p.ID, ReceiptSent, now).Error; err != nil {
				return err
			}
		}

		if verdict.Flagged {
			report := &moderation.Report{
				MessageID:  msg.ID,
				ReporterID: senderID,
				Reason:     strings.Join(verdict.MatchedTerms, ","),
				CreatedAt:  now,
			}
			if err := tx.Create(report).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	t.LastMessageID = &msg.ID
	t.UpdatedAt = now

	s.eventBus.Publish(ctx, eventbus.NewEvent(eventbus.EventMessageCreated, threadID, senderID, map[string]interface{}{
		"message": msg,
	}))
	s.eventBus.Publish(ctx, eventbus.NewEvent(eventbus.EventThreadUpdated, threadID, senderID, map[string]interface{}{
		"thread": t,
	}))

	s.submitSideEffects(msg, senderID, otherIDs, verdict)

	s.logger.Infow("Message sent",
		"message_id", msg.ID,
		"thread_id", threadID,
		"sender_id", senderID,
		"kind", msg.Kind,
		"moderation_state", msg.ModerationState,
	)

	return msg, nil
}

func (s *service) validateSend(req *SendMessageRequest) (*string, string, error) {
	var content *string
	if req.Content != nil {
		trimmed := strings.TrimSpace(*req.Content)
		if trimmed != "" {
			if utf8.RuneCountInString(trimmed) > maxContentRunes {
				return nil, "", apperr.Validation("content", fmt.Sprintf("must be at most %d characters", maxContentRunes))
			}
			content = &trimmed
		}
	}

	if content == nil && len(req.Attachments) == 0 {
		return nil, "", apperr.Validation("content", "message requires content or at least one attachment")
	}

	kind := req.Kind
	switch kind {
	case "":
		if content != nil {
			kind = KindText
		} else {
			kind = KindAttachment
		}
	case KindText, KindSystem:
	case KindAttachment:
		if content != nil {
			return nil, "", apperr.Validation("content", "not allowed for ATTACHMENT kind")
		}
	default:
		return nil, "", apperr.Validation("kind", "must be TEXT, ATTACHMENT or SYSTEM")
	}

	if len(req.Attachments) > s.opts.MaxAttachmentsSent {
		return nil, "", apperr.Validation("attachments", fmt.Sprintf("at most %d attachments per message", s.opts.MaxAttachmentsSent))
	}
	for _, att := range req.Attachments {
		if att.Size <= 0 || att.Size > s.opts.MaxAttachmentSize {
			return nil, "", apperr.Validation("attachments", fmt.Sprintf("size must be between 1 and %d bytes", s.opts.MaxAttachmentSize))
		}
		if _, err := url.ParseRequestURI(att.URL); err != nil {
			return nil, "", apperr.Validation("attachments", "invalid url")
		}
		if att.MimeType == "" {
			return nil, "", apperr.Validation("attachments", "mime_type must not be empty")
		}
	}

	return content, kind, nil
}

// submitSideEffects runs everything that must not fail or delay the send:
// audit, notification job, reply reminders and attachment promotion.
func (s *service) submitSideEffects(msg *Message, senderID uint64, otherIDs []uint64, verdict moderation.Verdict) {
	threadID := msg.ThreadID
	messageID := msg.ID

	s.pool.Submit("audit.message_sent", func(ctx context.Context) error {
		return s.auditSvc.Record(ctx, audit.ActionMessageSent, senderID, &threadID,
			fmt.Sprintf("message=%d kind=%s", messageID, msg.Kind))
	})

	if verdict.Flagged {
		matched := strings.Join(verdict.MatchedTerms, ",")
		s.pool.Submit("audit.message_flagged", func(ctx context.Context) error {
			return s.auditSvc.Record(ctx, audit.ActionMessageFlagged, senderID, &threadID,
				fmt.Sprintf("message=%d terms=%s", messageID, matched))
		})
	}

	preview := ""
	if msg.Content != nil {
		preview = *msg.Content
		if utf8.RuneCountInString(preview) > 80 {
			preview = string([]rune(preview)[:80])
		}
	}
	s.pool.Submit("notify.message", func(ctx context.Context) error {
		return s.notifier.Enqueue(ctx, notify.Job{
			ThreadID:     threadID,
			RecipientIDs: otherIDs,
			MessageID:    messageID,
			Preview:      preview,
			Type:         "message.created",
		})
	})

	for _, recipientID := range otherIDs {
		recipientID := recipientID
		s.pool.Submit("reminder.schedule", func(ctx context.Context) error {
			return s.reminderSvc.Schedule(ctx, threadID, recipientID, s.opts.ReminderDelay)
		})
	}

	if s.minioP != nil && len(msg.Attachments) > 0 {
		attachments := msg.Attachments
		s.pool.Submit("attachments.promote", func(ctx context.Context) error {
			return s.promoteAttachments(ctx, attachments)
		})
	}
}

// promoteAttachments moves tmp objects to their permanent location and
// marks them scanned so the stale-tmp sweep cannot reap a sent file.
func (s *service) promoteAttachments(ctx context.Context, attachments []*Attachment) error {
	for _, att := range attachments {
		if strings.HasPrefix(att.ObjectName, "tmp/") {
			objectName, publicURL, err := s.minioP.ConfirmTmpObject(att.ObjectName)
			if err != nil {
				return fmt.Errorf("failed to promote attachment %d: %w", att.ID, err)
			}
			att.ObjectName = objectName
			att.URL = publicURL
		}
		att.ScanStatus = ScanClean

		err := s.dbConn.WithContext(ctx).
			Model(&Attachment{}).
			Where("id = ?", att.ID).
			Updates(map[string]interface{}{
				"object_name": att.ObjectName,
				"url":         att.URL,
				"scan_status": att.ScanStatus,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Acknowledge upserts the receipt; repeating the same acknowledgement only
// refreshes occurred_at.
func (s *service) Acknowledge(ctx context.Context, messageID, userID uint64, status string) error {
	switch status {
	case ReceiptSent, ReceiptDelivered, ReceiptRead:
	default:
		return apperr.Validation("status", "must be SENT, DELIVERED or READ")
	}

	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	participant, err := s.threadSvc.GetActiveParticipant(ctx, msg.ThreadID, userID)
	if err == apperr.ErrNotFound {
		return apperr.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}

	now := time.Now().UTC()
	err = s.dbConn.WithContext(ctx).Exec(`
		INSERT INTO receipts (message_id, participant_id, status, occurred_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (message_id, participant_id, status) DO UPDATE SET
			occurred_at = EXCLUDED.occurred_at
	`, messageID, participant.ID, status, now).Error
	if err != nil {
		return fmt.Errorf("failed to upsert receipt: %w", err)
	}

	if status == ReceiptRead {
		if err := s.threadSvc.AdvanceReadCursor(ctx, participant.ID, messageID); err != nil {
			s.logger.Warnw("Failed to advance read cursor",
				"participant_id", participant.ID,
				"message_id", messageID,
				"error", err,
			)
		}
	}

	s.eventBus.Publish(ctx, eventbus.NewEvent(eventbus.EventMessageReceipt, msg.ThreadID, userID, map[string]interface{}{
		"message_id": messageID,
		"status":     status,
	}))

	return nil
}

func (s *service) ListMessages(ctx context.Context, threadID, userID uint64, take int, cursor *uint64) ([]*Message, *uint64, error) {
	if take < 1 {
		take = 20
	}
	if take > 100 {
		take = 100
	}

	if _, err := s.threadSvc.GetThreadByID(ctx, threadID); err != nil {
		return nil, nil, err
	}

	isMember, err := s.threadSvc.IsActiveParticipant(ctx, threadID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, nil, apperr.ErrForbidden
	}

	messages, err := s.repo.ListByThread(ctx, threadID, take, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var nextCursor *uint64
	if len(messages) == take {
		oldest := messages[len(messages)-1].ID
		nextCursor = &oldest
	}

	// Stored walk is newest-first; flip to chronological for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nextCursor, nil
}

func (s *service) BlockUser(ctx context.Context, issuerID, targetID uint64) error {
	if issuerID == targetID {
		return apperr.Validation("target_id", "cannot block yourself")
	}
	return s.repo.UpsertBlock(ctx, issuerID, targetID)
}

func (s *service) UnblockUser(ctx context.Context, issuerID, targetID uint64) error {
	return s.repo.DeleteBlock(ctx, issuerID, targetID)
}
