package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pillpoint/pharmacy-backend/internal/models"
	"github.com/pillpoint/pharmacy-backend/internal/storage"
)

type mockSender struct {
	sent []string
	to   []string
	err  error
}

func (m *mockSender) SendSMS(to, message string) error {
	m.to = append(m.to, to)
	m.sent = append(m.sent, message)
	return m.err
}

func TestNotifyNextPending(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &mockSender{}
	job := NewNotificationJob(store, sender)

	delivery, err := store.CreateDelivery(&models.Delivery{
		PatientName:     "Maria Lopez",
		PhoneNumber:     "+15551234567",
		DeliveryAddress: "42 Elm Street",
		DeliveryTime:    "2pm",
		Status:          models.StatusPending,
	})
	require.NoError(t, err)

	job.NotifyNextPending()

	updated, err := store.GetDelivery(delivery.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingConfirmation, updated.Status)

	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0], "Maria Lopez")
	require.Contains(t, sender.sent[0], "42 Elm Street")
	require.Contains(t, sender.sent[0], "2pm")
	require.Contains(t, sender.sent[0], "Reply YES to confirm")
	require.Equal(t, "+15551234567", sender.to[0])

	// The initial message lands in history so the engine has context
	history, err := store.GetHistory("+15551234567")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.RoleAssistant, history[0].Role)
	require.NotNil(t, history[0].DeliveryID)
	require.Equal(t, delivery.ID, *history[0].DeliveryID)
}

func TestNotifyNextPendingPicksOldest(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &mockSender{}
	job := NewNotificationJob(store, sender)

	older, err := store.CreateDelivery(&models.Delivery{
		Model:           gorm.Model{CreatedAt: time.Now().Add(-2 * time.Hour)},
		PatientName:     "First Patient",
		PhoneNumber:     "+15550000001",
		DeliveryAddress: "1 First St",
		DeliveryTime:    "9am",
		Status:          models.StatusPending,
	})
	require.NoError(t, err)

	_, err = store.CreateDelivery(&models.Delivery{
		PatientName:     "Second Patient",
		PhoneNumber:     "+15550000002",
		DeliveryAddress: "2 Second St",
		DeliveryTime:    "10am",
		Status:          models.StatusPending,
	})
	require.NoError(t, err)

	job.NotifyNextPending()

	updated, err := store.GetDelivery(older.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingConfirmation, updated.Status)
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0], "First Patient")
}

func TestNotifyNextPendingNoPendingIsQuiet(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &mockSender{}
	job := NewNotificationJob(store, sender)

	job.NotifyNextPending()
	require.Empty(t, sender.sent)
}

func TestNotifySendFailureKeepsDeliveryPending(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &mockSender{err: errors.New("twilio down")}
	job := NewNotificationJob(store, sender)

	delivery, err := store.CreateDelivery(&models.Delivery{
		PatientName:     "Maria Lopez",
		PhoneNumber:     "+15551234567",
		DeliveryAddress: "42 Elm Street",
		DeliveryTime:    "2pm",
		Status:          models.StatusPending,
	})
	require.NoError(t, err)

	job.NotifyNextPending()

	// Status untouched so the next tick retries
	updated, err := store.GetDelivery(delivery.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, updated.Status)
}

func TestSweepStaleDeliveries(t *testing.T) {
	store := storage.NewMemoryStore()
	sender := &mockSender{}
	job := NewNotificationJob(store, sender)

	old, err := store.CreateDelivery(&models.Delivery{
		Model: gorm.Model{
			CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
			UpdatedAt: time.Now().Add(-10 * 24 * time.Hour),
		},
		PatientName:     "Gone Quiet",
		PhoneNumber:     "+15550000009",
		DeliveryAddress: "9 Ninth St",
		DeliveryTime:    "4pm",
		Status:          models.StatusAwaitingConfirmation,
	})
	require.NoError(t, err)

	fresh, err := store.CreateDelivery(&models.Delivery{
		PatientName:     "Still Talking",
		PhoneNumber:     "+15550000010",
		DeliveryAddress: "10 Tenth St",
		DeliveryTime:    "5pm",
		Status:          models.StatusAwaitingConfirmation,
	})
	require.NoError(t, err)

	job.SweepStaleDeliveries()

	updatedOld, err := store.GetDelivery(old.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusStale, updatedOld.Status)

	updatedFresh, err := store.GetDelivery(fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingConfirmation, updatedFresh.Status)
}
