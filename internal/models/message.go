package models

import "time"

// Message is a single direct message between two users.
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SenderID   string    `json:"senderId" gorm:"index;type:varchar(36)"`
	ReceiverID string    `json:"receiverId" gorm:"index;type:varchar(36)"`
	Body       string    `json:"message" gorm:"type:text" validate:"required"`
	CreatedAt  time.Time `json:"createdAt"`
}
