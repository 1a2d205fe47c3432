package models

import "time"

// Conversation is a two-party thread. Its id is a pure function of the
// member pair (see the chatid package), so both participants always address
// the same document. Conversations are created lazily on first send and
// never deleted.
type Conversation struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Members     []string  `bson:"members" json:"members"`
	CreatedBy   string    `bson:"created_by" json:"created_by"`
	UpdatedBy   string    `bson:"updated_by" json:"updated_by"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
	LastMessage Message   `bson:"last_message" json:"last_message"`
	Writing     string    `bson:"writing,omitempty" json:"writing"`
}

// Normalize fills defaults for fields older documents may lack, so callers
// always see a fully-populated record.
func (c *Conversation) Normalize() {
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = DefaultTimestamp
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = DefaultTimestamp
	}
	c.LastMessage.Normalize()
}

// HasMember reports whether the user belongs to the conversation.
func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Other returns the peer of the given member, or an empty string if the
// user is not a member.
func (c *Conversation) Other(userID string) string {
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return ""
}
