package models

import (
	"gorm.io/gorm"
)

// DeliveryStatus is the closed set of states a delivery moves through.
type DeliveryStatus string

const (
	StatusPending              DeliveryStatus = "pending"
	StatusAwaitingConfirmation DeliveryStatus = "awaiting_confirmation"
	StatusCorrectionRequested  DeliveryStatus = "correction_requested"
	StatusReady                DeliveryStatus = "ready"
	StatusStale                DeliveryStatus = "stale"
)

// Delivery represents one scheduled medication delivery for a patient
type Delivery struct {
	gorm.Model
	PatientName     string         `json:"patient_name" gorm:"not null"`
	PhoneNumber     string         `json:"phone_number" gorm:"not null;index"` // E.164, conversation key
	DeliveryAddress string         `json:"delivery_address" gorm:"not null"`
	DeliveryTime    string         `json:"delivery_time" gorm:"not null"`
	Status          DeliveryStatus `json:"status" gorm:"not null;default:pending;index"`
	CorrectionNote  *string        `json:"correction_note"`
}

// transitions lists the allowed status moves. ready is terminal; stale is
// only reachable from the two conversation-active states via the staleness
// sweep, never through the conversation engine.
var transitions = map[DeliveryStatus][]DeliveryStatus{
	StatusPending:              {StatusAwaitingConfirmation},
	StatusAwaitingConfirmation: {StatusReady, StatusCorrectionRequested, StatusStale},
	StatusCorrectionRequested:  {StatusReady, StatusStale},
	StatusReady:                {},
	StatusStale:                {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the delivery is in a conversation-active status.
func (s DeliveryStatus) IsActive() bool {
	return s == StatusAwaitingConfirmation || s == StatusCorrectionRequested
}

// ActiveStatuses returns the statuses eligible for conversation handling.
func ActiveStatuses() []DeliveryStatus {
	return []DeliveryStatus{StatusAwaitingConfirmation, StatusCorrectionRequested}
}

// ValidStatus reports whether s is a member of the closed status enum.
// Admin edits are validated with this rather than trusting free-text input.
func ValidStatus(s DeliveryStatus) bool {
	switch s {
	case StatusPending, StatusAwaitingConfirmation, StatusCorrectionRequested, StatusReady, StatusStale:
		return true
	}
	return false
}
