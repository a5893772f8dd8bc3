package service

import (
	"context"
	"testing"
	"time"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"
	"fieldops-notify-be/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() (*NotificationService, *memory.NotificationRepository) {
	repo := memory.NewNotificationRepository()
	return NewNotificationService(repo, fixedClock{now: testNow}, logger.NewNopLogger()), repo
}

func createFor(t *testing.T, store *NotificationService, recipient uuid.UUID) *model.Notification {
	t.Helper()
	n := &model.Notification{
		Type:        model.TypeInspectionAssigned,
		Priority:    model.PriorityMedium,
		RecipientID: recipient,
		Title:       "t",
		Message:     "m",
	}
	require.NoError(t, store.Create(context.Background(), n))
	return n
}

func TestCreateStartsPending(t *testing.T) {
	store, _ := newStore()
	n := createFor(t, store, uuid.New())

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, model.StatusPending, n.Status)
	assert.Empty(t, n.Outcomes())
	assert.Equal(t, testNow, n.CreatedAt)
}

func TestGetNotFound(t *testing.T) {
	store, _ := newStore()
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestRecordDeliveryOutcomesDerivesStatus(t *testing.T) {
	store, _ := newStore()
	n := createFor(t, store, uuid.New())

	updated, err := store.RecordDeliveryOutcomes(context.Background(), n.ID, []model.DeliveryOutcome{
		{Channel: model.ChannelInApp, Success: true, AttemptedAt: testNow},
		{Channel: model.ChannelEmail, Success: false, Error: "smtp down", AttemptedAt: testNow},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartiallyDelivered, updated.Status)

	// A later append keeps the history and recomputes.
	updated, err = store.RecordDeliveryOutcomes(context.Background(), n.ID, []model.DeliveryOutcome{
		{Channel: model.ChannelEmail, Success: true, AttemptedAt: testNow.Add(time.Minute)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, updated.Status)
	assert.Len(t, updated.Outcomes(), 3)
}

func TestRecordEmptyOutcomesIsSkipped(t *testing.T) {
	store, _ := newStore()
	n := createFor(t, store, uuid.New())

	updated, err := store.RecordDeliveryOutcomes(context.Background(), n.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, updated.Status)
}

func TestMarkReadOwnership(t *testing.T) {
	store, _ := newStore()
	owner := uuid.New()
	n := createFor(t, store, owner)

	_, err := store.MarkRead(context.Background(), n.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Ownership failure left the record untouched.
	got, err := store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)
}

func TestMarkReadIdempotent(t *testing.T) {
	store, _ := newStore()
	owner := uuid.New()
	n := createFor(t, store, owner)

	first, err := store.MarkRead(context.Background(), n.ID, owner)
	require.NoError(t, err)
	assert.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)

	again, err := store.MarkRead(context.Background(), n.ID, owner)
	require.NoError(t, err)
	assert.True(t, again.IsRead)
	assert.Equal(t, first.ReadAt, again.ReadAt)
}

func TestMarkAllReadCountsOnlyUnread(t *testing.T) {
	store, _ := newStore()
	owner := uuid.New()

	a := createFor(t, store, owner)
	createFor(t, store, owner)
	createFor(t, store, owner)
	createFor(t, store, uuid.New()) // someone else's

	_, err := store.MarkRead(context.Background(), a.ID, owner)
	require.NoError(t, err)

	count, err := store.MarkAllRead(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Everything read now; a second pass touches nothing.
	count, err = store.MarkAllRead(context.Background(), owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	unread, err := store.UnreadCount(context.Background(), owner)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestListFiltersAndClampsPagination(t *testing.T) {
	store, _ := newStore()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		createFor(t, store, owner)
	}
	other := &model.Notification{
		Type:        model.TypeAssetStatusChanged,
		Priority:    model.PriorityLow,
		RecipientID: owner,
		Title:       "t",
		Message:     "m",
	}
	require.NoError(t, store.Create(context.Background(), other))

	// Zero limit falls back to the default page size.
	page, total, err := store.List(context.Background(), owner, contract.NotificationFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page, 4)

	typ := model.TypeAssetStatusChanged
	page, total, err = store.List(context.Background(), owner, contract.NotificationFilter{Type: &typ}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, typ, page[0].Type)

	// Offset past the end returns an empty page with the true total.
	page, total, err = store.List(context.Background(), owner, contract.NotificationFilter{}, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Empty(t, page)
}

func TestDueScheduled(t *testing.T) {
	store, _ := newStore()
	owner := uuid.New()

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)

	due := &model.Notification{Type: model.TypeInspectionDueReminder, RecipientID: owner, Title: "t", Message: "m", ScheduledFor: &past}
	notYet := &model.Notification{Type: model.TypeInspectionDueReminder, RecipientID: owner, Title: "t", Message: "m", ScheduledFor: &future}
	require.NoError(t, store.Create(context.Background(), due))
	require.NoError(t, store.Create(context.Background(), notYet))

	got, err := store.DueScheduled(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}
