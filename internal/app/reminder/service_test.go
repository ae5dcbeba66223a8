package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newReminderTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Reminder{}))
	return NewService(db, zap.NewNop()), db
}

func TestScheduleCreatesReminder(t *testing.T) {
	svc, _ := newReminderTestService(t)
	ctx := context.Background()

	before := time.Now().UTC()
	require.NoError(t, svc.Schedule(ctx, 1, 42, 2*time.Hour))

	rem, err := svc.GetByThreadAndRecipient(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, rem.Sent)
	assert.True(t, rem.RemindAt.After(before.Add(time.Hour)))
}

func TestScheduleRearmsExistingReminder(t *testing.T) {
	svc, db := newReminderTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Schedule(ctx, 1, 42, time.Hour))

	// Simulate the delivery worker having consumed the nudge.
	require.NoError(t, db.Model(&Reminder{}).
		Where("thread_id = ? AND triggered_for = ?", 1, 42).
		Update("sent", true).Error)

	require.NoError(t, svc.Schedule(ctx, 1, 42, time.Hour))

	var count int64
	require.NoError(t, db.Model(&Reminder{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	rem, err := svc.GetByThreadAndRecipient(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, rem.Sent)
}

func TestRemindersAreScopedPerRecipient(t *testing.T) {
	svc, db := newReminderTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Schedule(ctx, 1, 42, time.Hour))
	require.NoError(t, svc.Schedule(ctx, 1, 43, time.Hour))
	require.NoError(t, svc.Schedule(ctx, 2, 42, time.Hour))

	var count int64
	require.NoError(t, db.Model(&Reminder{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
