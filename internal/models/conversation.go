package models

import "time"

// Conversation groups a customer's messages. Created lazily on the first
// message; at most one per customer.
type Conversation struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID uint      `gorm:"not null;uniqueIndex" json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`

	Customer Customer  `gorm:"foreignKey:CustomerID" json:"-"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"-"`
}
