package domain

import (
	"time"

	"bytetalk/pkg"
)

// User chat member, password never leaves the repository layer
type User struct {
	ID                 string    `bson:"_id" json:"_id"`
	Email              string    `bson:"email" json:"email"`
	FullName           string    `bson:"full_name" json:"fullName"`
	Password           string    `bson:"password,omitempty" json:"-"`
	ProfilePic         string    `bson:"profile_pic,omitempty" json:"profilePic"`
	About              string    `bson:"about,omitempty" json:"about"`
	IsOnline           bool      `bson:"is_online" json:"isOnline"`
	MutedConversations []string  `bson:"muted_conversations" json:"mutedConversations"`
	CreatedAt          time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasMuted report whether the user muted the conversation with peerID
func (u *User) HasMuted(peerID string) bool {
	return pkg.Contains(u.MutedConversations, peerID)
}
