package domain

import (
	"errors"
	"time"

	"bytetalk/pkg"
)

// ErrNotFound returned by repositories when the document does not exist
var ErrNotFound = errors.New("document not found")

// DeletedPlaceholder text shown in place of a message deleted for everyone
const DeletedPlaceholder = "Message deleted"

// MessageStatus delivery state of a message, sent -> delivered -> seen
type MessageStatus string

const (
	// StatusSent initial state, persisted by the sender
	StatusSent MessageStatus = "sent"
	// StatusDelivered reached the receiver client
	StatusDelivered MessageStatus = "delivered"
	// StatusSeen viewed by the receiver, terminal
	StatusSeen MessageStatus = "seen"
)

var statusOrder = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// Valid report whether s is a known status
func (s MessageStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// IsAfter report whether s comes strictly later than other
func (s MessageStatus) IsAfter(other MessageStatus) bool {
	return statusOrder[s] > statusOrder[other]
}

// Before list every status strictly earlier than s
func (s MessageStatus) Before() []MessageStatus {
	var out []MessageStatus
	for _, st := range []MessageStatus{StatusSent, StatusDelivered, StatusSeen} {
		if s.IsAfter(st) {
			out = append(out, st)
		}
	}
	return out
}

// Reaction one emoji per user on a message
type Reaction struct {
	UserID string `bson:"user_id" json:"userId"`
	Emoji  string `bson:"emoji" json:"emoji"`
}

// Message 1 on 1 chat message
type Message struct {
	ID                   string        `bson:"_id" json:"_id"`
	SenderID             string        `bson:"sender_id" json:"senderId"`
	ReceiverID           string        `bson:"receiver_id" json:"receiverId"`
	Text                 string        `bson:"text,omitempty" json:"text,omitempty"`
	Image                string        `bson:"image,omitempty" json:"image,omitempty"`
	Status               MessageStatus `bson:"status" json:"status"`
	DeletedBy            []string      `bson:"deleted_by" json:"deletedBy"`
	IsDeletedForEveryone bool          `bson:"is_deleted_for_everyone" json:"isDeletedForEveryone"`
	Reactions            []Reaction    `bson:"reactions" json:"reactions"`
	CreatedAt            time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time     `bson:"updated_at" json:"updatedAt"`
}

// VisibleTo report whether userID may see the message at all.
// deleted for me always hides it, the placeholder only applies to what is left
func (m *Message) VisibleTo(userID string) bool {
	return !pkg.Contains(m.DeletedBy, userID)
}

// Render return the copy handed to viewers, content collapsed when deleted for everyone
func (m Message) Render() Message {
	if m.DeletedBy == nil {
		m.DeletedBy = []string{}
	}
	if m.Reactions == nil {
		m.Reactions = []Reaction{}
	}
	if m.IsDeletedForEveryone {
		m.Text = DeletedPlaceholder
		m.Image = ""
		m.Reactions = []Reaction{}
	}
	return m
}

// SetReaction replace any reaction of userID with emoji
func (m *Message) SetReaction(userID, emoji string) {
	m.RemoveReaction(userID)
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji})
}

// RemoveReaction drop the reaction of userID if any
func (m *Message) RemoveReaction(userID string) {
	kept := make([]Reaction, 0, len(m.Reactions))
	for _, r := range m.Reactions {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	m.Reactions = kept
}
