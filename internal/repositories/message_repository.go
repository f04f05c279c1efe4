package repositories

import "obrolan/internal/models"

// MessageRepository defines the interface for direct-message data access.
type MessageRepository interface {
	Create(message *models.Message) error
	// GetConversation returns all messages exchanged between the two users,
	// in either direction, oldest first.
	GetConversation(userID, otherID string) ([]models.Message, error)
}
