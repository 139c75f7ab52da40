package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
)

// =============================================================================
// DRAWING SUBMISSION
// =============================================================================

// HandleDrawingSubmit stores the caller's drawing for the room, replacing any
// earlier one, and broadcasts it to the whole room including the sender.
func (c *Coordinator) HandleDrawingSubmit(ctx context.Context, client internal.Client, data internal.DrawingSubmitData) error {
	roomId := strings.TrimSpace(data.RoomId)
	sid := client.SessionId()
	if roomId == "" {
		return fmt.Errorf("%w: drawing_submit without roomId", ErrInvalidRequest)
	}
	if !c.sessions.IsMember(roomId, sid) {
		return fmt.Errorf("%w: session %s has not joined room %s", ErrInvalidRequest, sid, roomId)
	}

	if err := c.repo.SaveDrawing(ctx, roomId, sid, data.Drawing); err != nil {
		return err
	}

	log.Debug().Str("room", roomId).Str("session", sid).Int("bytes", len(data.Drawing)).
		Msg("[HandleDrawingSubmit] drawing stored")

	SafeBroadcastToRoom(c.sessions, roomId, internal.Message[internal.DrawingData]{
		Type: internal.EventDrawing,
		Data: internal.DrawingData{Id: sid, Data: data.Drawing},
	})
	return nil
}

// =============================================================================
// BROADCASTING & MESSAGING
// =============================================================================

func SafeBroadcastToRoom[T any](sessions *Sessions, roomId string, msg internal.Message[T]) {
	members := sessions.Members(roomId)

	successCount := 0
	for _, member := range members {
		if err := member.SafeWriteJSON(msg); err != nil {
			log.Warn().Err(err).Str("room", roomId).Str("session", member.SessionId()).Str("type", msg.Type).
				Msg("[Broadcast] send failed")
			continue
		}
		successCount++
	}
	log.Debug().Str("room", roomId).Str("type", msg.Type).
		Msgf("[Broadcast] sent to %d/%d connections", successCount, len(members))
}

func sendTo[T any](client internal.Client, msg internal.Message[T]) {
	if err := client.SafeWriteJSON(msg); err != nil {
		log.Warn().Err(err).Str("session", client.SessionId()).Str("type", msg.Type).
			Msg("[sendTo] send failed")
	}
}

// broadcastUsers sends the room's player list to every member, each copy
// marking the receiver's own entry with isSelf.
func (c *Coordinator) broadcastUsers(ctx context.Context, roomId string) error {
	players, err := c.repo.Players(ctx, roomId)
	if err != nil {
		return err
	}

	for _, member := range c.sessions.Members(roomId) {
		self := member.SessionId()
		users := make([]internal.UserEntry, 0, len(players))
		for _, p := range players {
			users = append(users, internal.UserEntry{
				Id:       p.Id,
				Nickname: p.Nickname,
				Wallet:   p.Wallet,
				IsSelf:   p.Id == self,
			})
		}
		sendTo(member, internal.Message[[]internal.UserEntry]{Type: internal.EventUsers, Data: users})
	}
	return nil
}

func (c *Coordinator) broadcastMeta(ctx context.Context, roomId string) error {
	meta, err := c.repo.ReadRoomMeta(ctx, roomId)
	if err != nil {
		return err
	}
	SafeBroadcastToRoom(c.sessions, roomId, internal.Message[internal.RoomMeta]{Type: internal.EventMeta, Data: meta})
	return nil
}
