package models

import "time"

// DefaultTimestamp stands in for documents written before timestamps were
// recorded. Decoded records never carry a zero time.
var DefaultTimestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// User is the public profile document, readable by every participant.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Avatar    string    `bson:"avatar" json:"avatar"`
	IsOnline  bool      `bson:"is_online" json:"is_online"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Normalize applies the defaulting rules once, at the decode boundary.
func (u *User) Normalize() {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = DefaultTimestamp
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = DefaultTimestamp
	}
}

// PrivateUser holds the access-restricted half of a profile: notifications
// and the ids of the conversations the user participates in. One per User.
type PrivateUser struct {
	ID            string   `bson:"_id,omitempty" json:"id"`
	Notifications []string `bson:"notifications" json:"notifications"`
	Chats         []string `bson:"chats" json:"chats"`
}

func (p *PrivateUser) Normalize() {
	if p.Notifications == nil {
		p.Notifications = []string{}
	}
	if p.Chats == nil {
		p.Chats = []string{}
	}
}

// HasChat reports whether the conversation id is already registered.
func (p *PrivateUser) HasChat(conversationID string) bool {
	for _, id := range p.Chats {
		if id == conversationID {
			return true
		}
	}
	return false
}
