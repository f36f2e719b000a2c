package models

import "time"

// Sender roles for a message.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
)

// Message is one unit of dialogue in a conversation. Messages are never
// mutated or deleted.
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Sender         string    `gorm:"size:16;not null" json:"sender"`
	Body           string    `gorm:"type:text" json:"body"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	CreatedAt      time.Time `json:"-"`

	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}
