package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"fieldops-notify-be/internal/config"
	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"
	"fieldops-notify-be/internal/repository/memory"
	"fieldops-notify-be/pkg/channels"
	"fieldops-notify-be/pkg/events"
	"fieldops-notify-be/pkg/template"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type sendStack struct {
	sender *SendService
	store  *NotificationService
	repo   *memory.NotificationRepository
	users  *memory.UserDirectory
	inApp  *stubSender
	email  *stubSender
	bus    *stubBus
}

type stubBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *stubBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
	return nil
}

func (b *stubBus) snapshot() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.published...)
}

func newSendStack(t *testing.T) *sendStack {
	t.Helper()
	repo := memory.NewNotificationRepository()
	users := memory.NewUserDirectory()
	clk := fixedClock{now: testNow}
	log := logger.NewNopLogger()

	inApp := okSender(model.ChannelInApp)
	email := okSender(model.ChannelEmail)
	push := okSender(model.ChannelPush)
	sms := okSender(model.ChannelSMS)
	bus := &stubBus{}

	store := NewNotificationService(repo, clk, log)
	prefs := NewPreferenceService(repo, log)
	dispatcher := NewDispatchService(channels.SenderTable(inApp, email, push, sms), users, store, clk, testDispatchConfig(), log)
	sender := NewSendService(
		users,
		prefs,
		store,
		dispatcher,
		template.NewRegistry(template.Builtin()),
		bus,
		clk,
		config.BulkConfig{ChunkSize: 2, ChunkDelay: 0, Workers: 4},
		log,
	)

	return &sendStack{sender: sender, store: store, repo: repo, users: users, inApp: inApp, email: email, bus: bus}
}

func (s *sendStack) addUser(t *testing.T) *model.User {
	t.Helper()
	u := &model.User{ID: uuid.New(), FullName: "Ana Petrova", Email: "ana@example.com", Phone: "+15550100001"}
	s.users.Add(u)
	return u
}

func TestSendDeliversThroughSelectedChannels(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionOverdue,
		Priority:    model.PriorityHigh,
		RecipientID: user.ID,
		Title:       "Overdue",
		Message:     "Inspection overdue",
	})
	require.NoError(t, err)

	// Default preferences route overdue to in-app and email.
	require.Len(t, n.Outcomes(), 2)
	assert.Equal(t, model.StatusSent, n.Status)
	assert.Equal(t, 1, s.inApp.calls)
	assert.Equal(t, 1, s.email.calls)

	stored, err := s.store.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, stored.Status)
}

func TestSendDefaultsPriorityToMedium(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionAssigned,
		RecipientID: user.ID,
		Title:       "Assigned",
		Message:     "You are assigned",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, n.Priority)
}

func TestSendBindsTemplate(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionOverdue,
		Priority:    model.PriorityHigh,
		RecipientID: user.ID,
		TemplateID:  "inspection_overdue",
		Variables: map[string]string{
			"inspection_name": "Pump Station Check",
			"inspection_id":   "INS-2210",
			"days_overdue":    "3",
			"due_date":        "2026-03-07",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, n.Message, "3 days overdue")
	assert.Contains(t, n.Title, "Pump Station Check")
}

func TestSendUnknownRecipient(t *testing.T) {
	s := newSendStack(t)

	_, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionAssigned,
		RecipientID: uuid.New(),
		Title:       "t",
		Message:     "m",
	})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestSendUnknownTemplate(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	_, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionAssigned,
		RecipientID: user.ID,
		TemplateID:  "never_registered",
	})
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)
}

func TestSendSkippedWhenPolicySelectsNothing(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	off := datatypes.NewJSONType(model.ChannelPreference{Enabled: false})
	require.NoError(t, s.repo.SavePreferences(context.Background(), &model.NotificationPreferences{
		UserID: user.ID,
		Email:  off,
		Push:   off,
		SMS:    off,
		InApp:  off,
	}))

	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionAssigned,
		RecipientID: user.ID,
		Title:       "t",
		Message:     "m",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, n.Status)
	assert.Empty(t, n.Outcomes())
	assert.Zero(t, s.inApp.calls)
}

func TestSendExpiredIsSkipped(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	expired := testNow.Add(-time.Minute)
	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionAssigned,
		RecipientID: user.ID,
		Title:       "t",
		Message:     "m",
		ExpiresAt:   &expired,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, n.Status)
	assert.Empty(t, n.Outcomes())
	assert.Zero(t, s.inApp.calls)
}

func TestSendDefersFutureSchedule(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	later := testNow.Add(time.Hour)
	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:         model.TypeInspectionDueReminder,
		RecipientID:  user.ID,
		Title:        "t",
		Message:      "m",
		ScheduledFor: &later,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, n.Status)
	assert.Empty(t, n.Outcomes())
	assert.Zero(t, s.inApp.calls)

	// The scheduler path delivers it once due.
	delivered, err := s.sender.DeliverByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.StatusPending, delivered.Status)
	assert.NotEmpty(t, delivered.Outcomes())
}

func TestDeliverByIDRecipientGone(t *testing.T) {
	s := newSendStack(t)

	n := &model.Notification{Type: model.TypeInspectionAssigned, RecipientID: uuid.New(), Title: "t", Message: "m"}
	require.NoError(t, s.store.Create(context.Background(), n))

	delivered, err := s.sender.DeliverByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, delivered.Status)
}

func TestSendAnnouncesDeliveryOnBus(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:        model.TypeInspectionOverdue,
		Priority:    model.PriorityHigh,
		RecipientID: user.ID,
		Title:       "Overdue",
		Message:     "Inspection overdue",
	})
	require.NoError(t, err)

	published := s.bus.snapshot()
	require.Len(t, published, 1)
	assert.Equal(t, "NOTIFICATION_DELIVERED", published[0].EventType())

	payload := published[0].Payload()
	assert.Equal(t, n.ID.String(), payload["notification_id"])
	assert.Equal(t, user.ID.String(), payload["recipient_id"])
	assert.Equal(t, string(model.StatusSent), payload["status"])
}

func TestSendDeferredDoesNotAnnounceUntilDelivered(t *testing.T) {
	s := newSendStack(t)
	user := s.addUser(t)

	later := testNow.Add(time.Hour)
	n, err := s.sender.Send(context.Background(), dto.SendNotificationRequest{
		Type:         model.TypeInspectionDueReminder,
		RecipientID:  user.ID,
		Title:        "t",
		Message:      "m",
		ScheduledFor: &later,
	})
	require.NoError(t, err)
	assert.Empty(t, s.bus.snapshot())

	_, err = s.sender.DeliverByID(context.Background(), n.ID)
	require.NoError(t, err)
	require.Len(t, s.bus.snapshot(), 1)
	assert.Equal(t, "NOTIFICATION_DELIVERED", s.bus.snapshot()[0].EventType())
}

func TestSendBulkPartitionsEveryRecipient(t *testing.T) {
	s := newSendStack(t)
	a := s.addUser(t)
	b := s.addUser(t)
	ghost := uuid.New()

	result := s.sender.SendBulk(context.Background(), dto.BulkSendNotificationRequest{
		SendNotificationRequest: dto.SendNotificationRequest{
			Type:    model.TypeSystemMaintenance,
			Title:   "Maintenance",
			Message: "Window tonight",
		},
		RecipientIDs: []uuid.UUID{a.ID, b.ID, ghost},
	})

	assert.Len(t, result.Success, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ghost, result.Failed[0].RecipientID)
	assert.NotEmpty(t, result.Failed[0].Error)

	// One independent notification per successful recipient.
	for _, recipient := range []uuid.UUID{a.ID, b.ID} {
		_, total, err := s.store.List(context.Background(), recipient, contract.NotificationFilter{}, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	}
}

func TestSendBulkCancelledBeforeDispatch(t *testing.T) {
	s := newSendStack(t)
	a := s.addUser(t)
	b := s.addUser(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := s.sender.SendBulk(ctx, dto.BulkSendNotificationRequest{
		SendNotificationRequest: dto.SendNotificationRequest{
			Type:    model.TypeSystemMaintenance,
			Title:   "Maintenance",
			Message: "Window tonight",
		},
		RecipientIDs: []uuid.UUID{a.ID, b.ID},
	})

	assert.Empty(t, result.Success)
	assert.Len(t, result.Failed, 2)
}

func TestSendBulkLargeListChunked(t *testing.T) {
	s := newSendStack(t)

	ids := make([]uuid.UUID, 7)
	for i := range ids {
		ids[i] = s.addUser(t).ID
	}

	result := s.sender.SendBulk(context.Background(), dto.BulkSendNotificationRequest{
		SendNotificationRequest: dto.SendNotificationRequest{
			Type:    model.TypeSystemMaintenance,
			Title:   "Maintenance",
			Message: "Window tonight",
		},
		RecipientIDs: ids,
	})

	assert.Len(t, result.Success, 7)
	assert.Empty(t, result.Failed)
}
