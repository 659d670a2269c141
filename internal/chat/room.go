package chat

import (
	"sort"
	"strings"
)

// RoomID names a scope that sessions explicitly join.
type RoomID string

// ConversationRoom returns the room shared by two identities. Both sides
// compute the same id without negotiating: ConversationRoom(a, b) ==
// ConversationRoom(b, a).
func ConversationRoom(a, b Identity) RoomID {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)
	return RoomID(strings.Join(ids, "_"))
}
