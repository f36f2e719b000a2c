package models

import "time"

// DefaultLeadStatus is the lead tag assigned to customers on first contact.
const DefaultLeadStatus = "New"

// Customer is a contact known by their messaging-provider identifier.
type Customer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"size:256" json:"name"`
	ExternalID string `gorm:"size:64;not null;uniqueIndex" json:"external_id"`
	LeadStatus string `gorm:"size:64;default:New" json:"lead_status"`
	CreatedAt  time.Time `json:"created_at"`

	Conversations []Conversation `gorm:"foreignKey:CustomerID" json:"-"`
}
