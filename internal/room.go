package internal

import (
	"fmt"
	"net/url"
	"strings"
)

// Persisted key layout. Every room key starts with RoomPrefix(id).

// roomSegment escapes the client-chosen room id so it never contains the
// key separator. PathEscape leaves ':' alone, so it is escaped after; '%' is
// already escaped by then, which keeps the mapping one-to-one.
func roomSegment(roomId string) string {
	return strings.ReplaceAll(url.PathEscape(roomId), ":", "%3A")
}

func RoomPrefix(roomId string) string {
	return fmt.Sprintf("room:%s:", roomSegment(roomId))
}

func MetaKey(roomId string) string {
	return RoomPrefix(roomId) + "meta"
}

func PlayerPrefix(roomId string) string {
	return RoomPrefix(roomId) + "player:"
}

func PlayerKey(roomId, sessionId string) string {
	return PlayerPrefix(roomId) + sessionId
}

func GraphPrefix(roomId string) string {
	return RoomPrefix(roomId) + "graph:"
}

func GraphKey(roomId, sessionId string) string {
	return GraphPrefix(roomId) + sessionId
}

// RoundLockKey holds the roundEnd of the round currently owning the room.
func RoundLockKey(roomId string) string {
	return RoomPrefix(roomId) + "round"
}
