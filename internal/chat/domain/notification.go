package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType notification type tag
type NotificationType string

const (
	// NotificationMessage new message notification
	NotificationMessage NotificationType = "message"
)

// Notification user notification
type Notification struct {
	ID        string           `bson:"_id" json:"_id"`
	UserID    string           `bson:"user_id" json:"userId"`
	Type      NotificationType `bson:"type" json:"type"`
	Message   string           `bson:"message" json:"message"`
	IsRead    bool             `bson:"is_read" json:"isRead"`
	CreatedAt time.Time        `bson:"created_at" json:"createdAt"`
}

// NewMessageNotification build the notification for receiverID about a message from senderName
func NewMessageNotification(receiverID, senderName string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    receiverID,
		Type:      NotificationMessage,
		Message:   fmt.Sprintf("New message from %s", senderName),
		CreatedAt: time.Now(),
	}
}
