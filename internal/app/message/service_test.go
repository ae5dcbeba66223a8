package message

import (
	"context"
	"sync"
	"testing"
	"time"

	"backend/internal/apperr"
	"backend/internal/app/audit"
	"backend/internal/app/moderation"
	"backend/internal/app/notify"
	"backend/internal/app/reminder"
	"backend/internal/app/thread"
	"backend/internal/eventbus"
	"backend/internal/workers"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type messageTestEnv struct {
	db        *gorm.DB
	bus       *eventbus.MemoryBus
	pool      *workers.Pool
	threadSvc thread.Service
	svc       Service

	drainOnce sync.Once
}

// drain waits for every queued side effect (audit, reminders) to finish.
func (e *messageTestEnv) drain() {
	e.drainOnce.Do(e.pool.Stop)
}

func newMessageTestEnv(t *testing.T) *messageTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&thread.Thread{}, &thread.Participant{},
		&Message{}, &Attachment{}, &Receipt{}, &Block{},
		&moderation.Report{}, &audit.AuditLog{}, &reminder.Reminder{},
	))

	zlog := zap.NewNop()
	bus := eventbus.NewMemoryBus(zlog)
	pool := workers.NewPool(1, 256, zlog)
	pool.Start(context.Background())

	auditSvc := audit.NewService(audit.NewRepository(db), zlog)
	reminderSvc := reminder.NewService(db, zlog)
	threadSvc := thread.NewService(thread.NewRepository(db), db, bus, pool, auditSvc, zlog)

	svc := NewService(
		NewRepository(db), threadSvc, db, bus, pool,
		auditSvc, notify.NewNoop(), reminderSvc, nil,
		Options{MaxAttachmentSize: 1024, MaxAttachmentsSent: 2, ReminderDelay: time.Hour},
		zlog,
	)

	env := &messageTestEnv{db: db, bus: bus, pool: pool, threadSvc: threadSvc, svc: svc}
	t.Cleanup(env.drain)
	return env
}

func (e *messageTestEnv) createThread(t *testing.T, contextID string, creatorID uint64, memberIDs ...uint64) *thread.Thread {
	t.Helper()
	if len(memberIDs) == 0 {
		memberIDs = []uint64{creatorID}
	}
	created, err := e.threadSvc.CreateThread(context.Background(), &thread.CreateThreadRequest{
		ContextType:    "order",
		ContextID:      contextID,
		ParticipantIDs: memberIDs,
	}, creatorID)
	require.NoError(t, err)
	return created
}

func str(s string) *string {
	return &s
}

func TestSendMessageRequiresContentOrAttachment(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)

	_, err := env.svc.SendMessage(context.Background(), created.ID, 1, &SendMessageRequest{})
	assert.True(t, apperr.IsValidation(err))

	_, err = env.svc.SendMessage(context.Background(), created.ID, 1, &SendMessageRequest{Content: str("   ")})
	assert.True(t, apperr.IsValidation(err))
}

func TestSendMessageAttachmentValidation(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	valid := AttachmentInput{
		URL: "https://cdn.example.com/a.png", FileName: "a.png", MimeType: "image/png", Size: 100,
	}

	oversized := valid
	oversized.Size = 2048
	_, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Attachments: []AttachmentInput{oversized}})
	assert.True(t, apperr.IsValidation(err))

	badURL := valid
	badURL.URL = "not a url"
	_, err = env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Attachments: []AttachmentInput{badURL}})
	assert.True(t, apperr.IsValidation(err))

	_, err = env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{
		Attachments: []AttachmentInput{valid, valid, valid},
	})
	assert.True(t, apperr.IsValidation(err))

	// ATTACHMENT kind carries no text.
	_, err = env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{
		Kind:        KindAttachment,
		Content:     str("hello"),
		Attachments: []AttachmentInput{valid},
	})
	assert.True(t, apperr.IsValidation(err))

	msg, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Attachments: []AttachmentInput{valid}})
	require.NoError(t, err)
	assert.Equal(t, KindAttachment, msg.Kind)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, ScanPending, msg.Attachments[0].ScanStatus)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)

	_, err := env.svc.SendMessage(context.Background(), created.ID, 99, &SendMessageRequest{Content: str("halo")})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSendMessageRejectsThreadWithoutRecipients(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1)

	_, err := env.svc.SendMessage(context.Background(), created.ID, 1, &SendMessageRequest{Content: str("halo")})
	assert.ErrorIs(t, err, apperr.ErrNoRecipients)
}

func TestSendMessageUnknownThread(t *testing.T) {
	env := newMessageTestEnv(t)

	_, err := env.svc.SendMessage(context.Background(), 404, 1, &SendMessageRequest{Content: str("halo")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendMessageRefusedWhenBlocked(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	require.NoError(t, env.svc.BlockUser(ctx, 2, 1))

	// The block refuses sends in both directions.
	_, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("halo")})
	assert.ErrorIs(t, err, apperr.ErrBlocked)
	_, err = env.svc.SendMessage(ctx, created.ID, 2, &SendMessageRequest{Content: str("halo")})
	assert.ErrorIs(t, err, apperr.ErrBlocked)

	var count int64
	require.NoError(t, env.db.Model(&Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, env.svc.UnblockUser(ctx, 2, 1))
	_, err = env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("halo lagi")})
	assert.NoError(t, err)
}

func TestBlockUserSelfAndIdempotence(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	err := env.svc.BlockUser(ctx, 1, 1)
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, env.svc.BlockUser(ctx, 1, 2))
	require.NoError(t, env.svc.BlockUser(ctx, 1, 2))

	var count int64
	require.NoError(t, env.db.Model(&Block{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSendMessageFlaggedIsStillDelivered(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("ini scam")})
	require.NoError(t, err)
	assert.Equal(t, ModerationFlagged, msg.ModerationState)

	var reports []*moderation.Report
	require.NoError(t, env.db.Find(&reports).Error)
	require.Len(t, reports, 1)
	assert.Equal(t, msg.ID, reports[0].MessageID)
	assert.Equal(t, "scam", reports[0].Reason)

	// Flagging degrades visibility for staff, it never hides the message.
	listed, _, err := env.svc.ListMessages(ctx, created.ID, 2, 20, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, msg.ID, listed[0].ID)

	env.drain()
	var flagged int64
	require.NoError(t, env.db.Model(&audit.AuditLog{}).
		Where("action = ?", audit.ActionMessageFlagged).Count(&flagged).Error)
	assert.Equal(t, int64(1), flagged)
}

func TestSendMessageFansOutReceiptsAndReminders(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2, 3)
	ctx := context.Background()

	var createdEvents int
	env.bus.Subscribe(eventbus.EventMessageCreated, func(eventbus.Event) { createdEvents++ })

	before := time.Now().UTC()
	msg, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("halo semua")})
	require.NoError(t, err)
	assert.Equal(t, 1, createdEvents)

	// One SENT receipt per other participant, none for the sender.
	var receipts []*Receipt
	require.NoError(t, env.db.Where("message_id = ?", msg.ID).Find(&receipts).Error)
	require.Len(t, receipts, 2)
	sender, err := env.threadSvc.GetActiveParticipant(ctx, created.ID, 1)
	require.NoError(t, err)
	for _, r := range receipts {
		assert.Equal(t, ReceiptSent, r.Status)
		assert.NotEqual(t, sender.ID, r.ParticipantID)
	}

	var updated thread.Thread
	require.NoError(t, env.db.First(&updated, created.ID).Error)
	require.NotNil(t, updated.LastMessageID)
	assert.Equal(t, msg.ID, *updated.LastMessageID)

	env.drain()

	reminderSvc := reminder.NewService(env.db, zap.NewNop())
	for _, recipientID := range []uint64{2, 3} {
		rem, err := reminderSvc.GetByThreadAndRecipient(ctx, created.ID, recipientID)
		require.NoError(t, err)
		assert.False(t, rem.Sent)
		assert.True(t, rem.RemindAt.After(before.Add(50*time.Minute)))
	}

	var sent int64
	require.NoError(t, env.db.Model(&audit.AuditLog{}).
		Where("action = ?", audit.ActionMessageSent).Count(&sent).Error)
	assert.Equal(t, int64(1), sent)
}

func TestAcknowledgeUpsertsReceiptAndAdvancesCursor(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	first, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("pesanan dikirim")})
	require.NoError(t, err)
	second, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("resi menyusul")})
	require.NoError(t, err)

	var receiptEvents int
	env.bus.Subscribe(eventbus.EventMessageReceipt, func(eventbus.Event) { receiptEvents++ })

	require.NoError(t, env.svc.Acknowledge(ctx, second.ID, 2, ReceiptRead))

	reader, err := env.threadSvc.GetActiveParticipant(ctx, created.ID, 2)
	require.NoError(t, err)
	repo := NewRepository(env.db)
	got, err := repo.GetReceipt(ctx, second.ID, reader.ID, ReceiptRead)
	require.NoError(t, err)
	firstSeen := got.OccurredAt

	// Repeats refresh the timestamp, they never add rows.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, env.svc.Acknowledge(ctx, second.ID, 2, ReceiptRead))

	var count int64
	require.NoError(t, env.db.Model(&Receipt{}).
		Where("message_id = ? AND participant_id = ? AND status = ?", second.ID, reader.ID, ReceiptRead).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err = repo.GetReceipt(ctx, second.ID, reader.ID, ReceiptRead)
	require.NoError(t, err)
	assert.False(t, got.OccurredAt.Before(firstSeen))
	assert.Equal(t, 2, receiptEvents)

	// Reading an older message never rewinds the cursor.
	require.NoError(t, env.svc.Acknowledge(ctx, first.ID, 2, ReceiptRead))
	reader, err = env.threadSvc.GetActiveParticipant(ctx, created.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, reader.LastReadMessageID)
	assert.Equal(t, second.ID, *reader.LastReadMessageID)
}

func TestAcknowledgeRejectsOutsiderAndBadStatus(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	msg, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str("halo")})
	require.NoError(t, err)

	err = env.svc.Acknowledge(ctx, msg.ID, 99, ReceiptRead)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = env.svc.Acknowledge(ctx, msg.ID, 2, "SEEN")
	assert.True(t, apperr.IsValidation(err))

	err = env.svc.Acknowledge(ctx, 404, 2, ReceiptRead)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListMessagesPaginatesChronologically(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)
	ctx := context.Background()

	var ids []uint64
	for _, content := range []string{"satu", "dua", "tiga", "empat", "lima"} {
		msg, err := env.svc.SendMessage(ctx, created.ID, 1, &SendMessageRequest{Content: str(content)})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Newest page first, each page in chronological order.
	page, cursor, err := env.svc.ListMessages(ctx, created.ID, 2, 2, nil)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.Len(t, page, 2)
	assert.Equal(t, []uint64{ids[3], ids[4]}, []uint64{page[0].ID, page[1].ID})

	page, cursor, err = env.svc.ListMessages(ctx, created.ID, 2, 2, cursor)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, []uint64{ids[1], ids[2]}, []uint64{page[0].ID, page[1].ID})

	page, cursor, err = env.svc.ListMessages(ctx, created.ID, 2, 2, cursor)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Nil(t, cursor)
}

func TestListMessagesRequiresMembership(t *testing.T) {
	env := newMessageTestEnv(t)
	created := env.createThread(t, "ORD-1", 1, 2)

	_, _, err := env.svc.ListMessages(context.Background(), created.ID, 99, 20, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

// Covers the full buyer/seller exchange on one order: create, message,
// acknowledge, check cursors and unread state from both sides.
func TestOrderConversationEndToEnd(t *testing.T) {
	env := newMessageTestEnv(t)
	ctx := context.Background()

	const buyer, seller = uint64(10), uint64(20)
	created := env.createThread(t, "ORD-7781", buyer, seller)

	ask, err := env.svc.SendMessage(ctx, created.ID, buyer, &SendMessageRequest{
		Content:  str("Halo, apakah ukuran L masih ada?"),
		Metadata: map[string]interface{}{"order_id": "ORD-7781"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindText, ask.Kind)
	assert.Equal(t, ModerationApproved, ask.ModerationState)

	require.NoError(t, env.svc.Acknowledge(ctx, ask.ID, seller, ReceiptDelivered))
	require.NoError(t, env.svc.Acknowledge(ctx, ask.ID, seller, ReceiptRead))

	reply, err := env.svc.SendMessage(ctx, created.ID, seller, &SendMessageRequest{
		Content: str("Masih ada, siap kirim hari ini."),
	})
	require.NoError(t, err)

	history, _, err := env.svc.ListMessages(ctx, created.ID, buyer, 20, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ask.ID, history[0].ID)
	assert.Equal(t, reply.ID, history[1].ID)
	assert.Equal(t, "ORD-7781", history[0].Metadata["order_id"])

	sellerPart, err := env.threadSvc.GetActiveParticipant(ctx, created.ID, seller)
	require.NoError(t, err)
	require.NotNil(t, sellerPart.LastReadMessageID)
	assert.Equal(t, ask.ID, *sellerPart.LastReadMessageID)

	buyerPart, err := env.threadSvc.GetActiveParticipant(ctx, created.ID, buyer)
	require.NoError(t, err)
	assert.Nil(t, buyerPart.LastReadMessageID)
}
