package models

import (
	"gorm.io/gorm"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageHistory is one turn of a patient conversation. Rows are append-only;
// CreatedAt ordering is the canonical conversation order. DeliveryID scopes a
// row to the delivery whose conversation produced it so that context assembly
// never mixes in an earlier delivery's exchange for the same number.
type MessageHistory struct {
	gorm.Model
	PhoneNumber string `json:"phone_number" gorm:"not null;index"`
	DeliveryID  *uint  `json:"delivery_id" gorm:"index"`
	Role        string `json:"role" gorm:"not null"` // "user" or "assistant"
	Message     string `json:"message" gorm:"not null"`
}
