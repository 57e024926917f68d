package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/pillpoint/pharmacy-backend/internal/models"
	"github.com/pillpoint/pharmacy-backend/internal/services"
	"github.com/pillpoint/pharmacy-backend/internal/storage"
)

const (
	notifyInterval    = 1 * time.Minute
	staleSweepEvery   = 1 * time.Hour
	staleAfterDays    = 7
	initialSMSPattern = "Hi %s, we're delivering your medication to:\n%s at %s.\nReply YES to confirm or NO if anything is wrong."
)

// NotificationJob sends initial confirmation texts for pending deliveries
// and ages out conversations that never resolved
type NotificationJob struct {
	store     storage.Store
	sender    services.MessageSender
	isRunning bool
}

// NewNotificationJob creates a new notification job scheduler
func NewNotificationJob(store storage.Store, sender services.MessageSender) *NotificationJob {
	return &NotificationJob{
		store:  store,
		sender: sender,
	}
}

// Start begins all scheduled notification jobs
func (n *NotificationJob) Start() {
	if n.isRunning {
		log.Println("Notification jobs already running")
		return
	}

	n.isRunning = true
	log.Println("Starting scheduled notification jobs...")

	go n.schedulePendingNotifications()
	go n.scheduleStalenessSweep()

	log.Println("All notification jobs started successfully")
}

// Stop halts all scheduled jobs
func (n *NotificationJob) Stop() {
	n.isRunning = false
	log.Println("Stopping scheduled notification jobs...")
}

// 1. PENDING DELIVERIES - one initial text per tick
func (n *NotificationJob) schedulePendingNotifications() {
	for n.isRunning {
		n.NotifyNextPending()
		time.Sleep(notifyInterval)
	}
}

// NotifyNextPending picks the oldest pending delivery, sends the initial
// confirmation SMS and flips it to awaiting_confirmation. One delivery per
// tick keeps at most one conversation active per phone number.
func (n *NotificationJob) NotifyNextPending() {
	delivery, err := n.store.GetNextPendingDelivery()
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Printf("Error fetching next pending delivery: %v", err)
		}
		return
	}

	body := fmt.Sprintf(initialSMSPattern,
		delivery.PatientName, delivery.DeliveryAddress, delivery.DeliveryTime)

	// Log first so the conversation engine sees the delivery details it is
	// asking the patient to confirm; send may fail independently.
	if err := n.store.AppendMessage(delivery.PhoneNumber, &delivery.ID, models.RoleAssistant, body); err != nil {
		log.Printf("Error logging initial message for delivery %d: %v", delivery.ID, err)
		return
	}

	if err := n.sender.SendSMS(delivery.PhoneNumber, body); err != nil {
		log.Printf("Error sending initial message for delivery %d: %v", delivery.ID, err)
		return
	}

	if err := n.store.UpdateDeliveryStatus(delivery.ID, models.StatusAwaitingConfirmation); err != nil {
		log.Printf("Error updating delivery %d to awaiting_confirmation: %v", delivery.ID, err)
		return
	}

	log.Printf("📨 Initial confirmation sent for delivery %d (%s)", delivery.ID, delivery.PhoneNumber)
}

// 2. STALENESS SWEEP - hourly
func (n *NotificationJob) scheduleStalenessSweep() {
	for n.isRunning {
		n.SweepStaleDeliveries()
		time.Sleep(staleSweepEvery)
	}
}

// SweepStaleDeliveries reclassifies conversations with no resolution after
// a week so they stop shadowing new deliveries for the same number.
func (n *NotificationJob) SweepStaleDeliveries() {
	deliveries, err := n.store.GetStaleActiveDeliveries(staleAfterDays)
	if err != nil {
		log.Printf("Error fetching stale deliveries: %v", err)
		return
	}

	for _, delivery := range deliveries {
		if !models.CanTransition(delivery.Status, models.StatusStale) {
			continue
		}
		if err := n.store.UpdateDeliveryStatus(delivery.ID, models.StatusStale); err != nil {
			log.Printf("Error marking delivery %d stale: %v", delivery.ID, err)
			continue
		}
		log.Printf("⏳ Delivery %d marked stale after %d days without resolution", delivery.ID, staleAfterDays)
	}
}
