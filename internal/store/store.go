// Package store persists conversations and messages.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/mizajour/leadline/internal/db"
	"github.com/mizajour/leadline/internal/models"
	"gorm.io/gorm"
)

// FindOrCreateConversation returns the customer's conversation, creating it
// on first use. Safe under concurrent calls for the same customer: the unique
// index on customer_id backstops the lookup-then-insert, and a losing insert
// re-reads the winning row.
func FindOrCreateConversation(gdb *gorm.DB, customerID uint) (*models.Conversation, error) {
	if customerID == 0 {
		return nil, fmt.Errorf("store: customer id is required")
	}

	var conv models.Conversation
	err := gdb.Where("customer_id = ?", customerID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: find conversation for customer %d: %w", customerID, err)
	}

	conv = models.Conversation{CustomerID: customerID}
	createErr := gdb.Create(&conv).Error
	if createErr == nil {
		return &conv, nil
	}
	if !db.IsUniqueViolation(createErr) {
		return nil, fmt.Errorf("store: create conversation for customer %d: %w", customerID, createErr)
	}

	var winner models.Conversation
	if err := gdb.Where("customer_id = ?", customerID).First(&winner).Error; err != nil {
		return nil, fmt.Errorf("store: re-read conversation for customer %d after race: %w", customerID, err)
	}
	return &winner, nil
}

// AppendMessage records one message in a conversation. Identical bodies are
// distinct messages; nothing is deduplicated. A zero timestamp defaults to
// ingestion time.
func AppendMessage(gdb *gorm.DB, conversationID uint, sender, body string, timestamp time.Time) (*models.Message, error) {
	if conversationID == 0 {
		return nil, fmt.Errorf("store: conversation id is required")
	}
	if sender != models.SenderCustomer && sender != models.SenderAgent {
		return nil, fmt.Errorf("store: invalid sender %q", sender)
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	msg := models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		Timestamp:      timestamp,
	}
	if err := gdb.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns a conversation's messages ascending by timestamp,
// ties broken by insertion id. Each call is a fresh query.
func ListMessages(gdb *gorm.DB, conversationID uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := gdb.Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: list messages for conversation %d: %w", conversationID, err)
	}
	return msgs, nil
}

// ListByCustomer returns a customer's messages in conversation order. A
// customer with no conversation yet has no messages.
func ListByCustomer(gdb *gorm.DB, customerID uint) ([]models.Message, error) {
	var conv models.Conversation
	err := gdb.Where("customer_id = ?", customerID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find conversation for customer %d: %w", customerID, err)
	}
	return ListMessages(gdb, conv.ID)
}
