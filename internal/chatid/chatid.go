// Package chatid derives the deterministic identifier shared by the two
// participants of a conversation.
package chatid

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the sorted participant ids. Ids containing it are
// rejected so distinct pairs can never collapse to the same identifier.
const Separator = "+"

var (
	ErrEmptyID     = errors.New("chatid: empty participant id")
	ErrInvalidID   = errors.New("chatid: participant id contains separator")
	ErrSameMembers = errors.New("chatid: participants are the same user")
)

// PairID returns the conversation id for two participants. It is
// commutative: PairID(a, b) == PairID(b, a).
func PairID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyID
	}
	if strings.Contains(a, Separator) || strings.Contains(b, Separator) {
		return "", ErrInvalidID
	}
	if a == b {
		return "", ErrSameMembers
	}
	if b < a {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// Members splits a conversation id back into its sorted participant pair.
func Members(id string) (string, string, error) {
	parts := strings.Split(id, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("chatid: malformed conversation id %q", id)
	}
	return parts[0], parts[1], nil
}
