package services

import (
	"errors"
	"fmt"
	"log"

	"obrolan/internal/models"
	"obrolan/internal/repositories"
	"obrolan/pkg/rabbitmq"
)

// ErrRecipientNotFound is returned by SendMessage when the receiver ID does
// not reference an existing user.
var ErrRecipientNotFound = errors.New("recipient not found")

// ChatService handles business logic for direct messages and contacts.
type ChatService struct {
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	mqClient    *rabbitmq.Client // nil when no broker is configured
}

// NewChatService creates a new ChatService. mqClient may be nil, in which
// case message events are not published.
func NewChatService(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, mqClient *rabbitmq.Client) *ChatService {
	return &ChatService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		mqClient:    mqClient,
	}
}

// SendMessage stores a direct message from sender to receiver and publishes
// a message-sent event. A publish failure is logged but does not fail the
// send: the message is already durable at that point.
func (s *ChatService) SendMessage(senderID, receiverID, body string) (*models.Message, error) {
	if _, err := s.userRepo.GetByID(receiverID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}

	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if s.mqClient != nil {
		event := map[string]interface{}{
			"message_id":  message.ID,
			"sender_id":   message.SenderID,
			"receiver_id": message.ReceiverID,
		}
		if err := s.mqClient.PublishMessageSent(event); err != nil {
			log.Printf("Failed to publish message event for %s: %v", message.ID, err)
		}
	}

	return message, nil
}

// GetConversation returns the message history between the two users, oldest
// first.
func (s *ChatService) GetConversation(userID, otherID string) ([]models.Message, error) {
	return s.messageRepo.GetConversation(userID, otherID)
}

// ListContacts returns the public profiles of every user except the
// requester, for the conversation sidebar.
func (s *ChatService) ListContacts(userID string) ([]models.Profile, error) {
	users, err := s.userRepo.GetAllExcept(userID)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].PublicProfile())
	}
	return profiles, nil
}
