package models

import (
	"sort"
	"time"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Position is a UI grouping hint describing where a message sits inside a
// run of consecutive messages from the same sender. It is never persisted;
// see PositionsFor.
type Position string

const (
	PositionSingle Position = "single"
	PositionFirst  Position = "first"
	PositionNormal Position = "normal"
	PositionLast   Position = "last"
)

// Message is immutable once appended to its conversation's stream.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Body           string    `bson:"body" json:"body"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	Type           string    `bson:"type" json:"type"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

func (m *Message) Normalize() {
	if m.Type == "" {
		m.Type = "text"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = DefaultTimestamp
	}
}

// DirectionFor computes the message direction relative to a viewing user.
// Direction is never stored; sender == viewer means outgoing.
func (m *Message) DirectionFor(viewerID string) Direction {
	if m.SenderID == viewerID {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// SortByCreation orders messages by creation time ascending, breaking ties
// by id so the order is stable across enumerations.
func SortByCreation(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// PositionsFor derives the grouping hint for each message of an already
// sorted slice from same-sender adjacency.
func PositionsFor(msgs []Message) []Position {
	out := make([]Position, len(msgs))
	for i := range msgs {
		prevSame := i > 0 && msgs[i-1].SenderID == msgs[i].SenderID
		nextSame := i < len(msgs)-1 && msgs[i+1].SenderID == msgs[i].SenderID
		switch {
		case !prevSame && !nextSame:
			out[i] = PositionSingle
		case !prevSame && nextSame:
			out[i] = PositionFirst
		case prevSame && nextSame:
			out[i] = PositionNormal
		default:
			out[i] = PositionLast
		}
	}
	return out
}
