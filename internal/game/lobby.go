package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
)

// =============================================================================
// LOBBY CREATION
// =============================================================================

// HandleCreateLobbyRoom initialises room meta with the caller as owner and
// first player. A missing room id is answered with room_create_error to the
// caller alone and nothing is written.
func (c *Coordinator) HandleCreateLobbyRoom(ctx context.Context, client internal.Client, data internal.CreateLobbyRoomData) error {
	roomId := strings.TrimSpace(data.RoomId)
	sid := client.SessionId()

	if roomId == "" {
		log.Info().Str("session", sid).Msg("[HandleCreateLobbyRoom] rejected: missing room id")
		sendTo(client, internal.Message[internal.ErrorData]{
			Type: internal.EventRoomCreateError,
			Data: internal.ErrorData{Error: msgRoomIdRequired},
		})
		return fmt.Errorf("%w: create_lobby_room without roomId", ErrInvalidRequest)
	}

	current, err := c.repo.ReadRoomMeta(ctx, roomId)
	if err != nil {
		return err
	}

	now := c.now().UnixMilli()
	patch := internal.RoomMetaPatch{
		Fee:       internal.Ptr(data.EntryFee),
		CreatedAt: internal.Ptr(now),
		Owner:     internal.Ptr(data.Wallet),
	}
	if data.MaxParticipants > 0 {
		patch.MaxParticipants = internal.Ptr(data.MaxParticipants)
	}
	// A running round keeps its roundEnd; it may only move forward.
	if current.Phase(now) == internal.PhaseRunning {
		log.Warn().Str("room", roomId).Int64("round_end", *current.RoundEnd).
			Msg("[HandleCreateLobbyRoom] room has a running round, keeping roundEnd")
	} else {
		patch.ResetRoundEnd = true
	}

	if err := c.repo.MergeRoomMeta(ctx, roomId, patch); err != nil {
		return err
	}

	c.sessions.Subscribe(roomId, client)
	if err := c.repo.MergePlayer(ctx, roomId, sid, internal.PlayerPatch{
		Nickname: internal.Ptr(data.Nickname),
		Wallet:   internal.Ptr(data.Wallet),
		JoinedAt: internal.Ptr(now),
	}); err != nil {
		return err
	}

	log.Info().Str("room", roomId).Str("session", sid).Str("owner", data.Wallet).Str("fee", data.EntryFee).
		Msg("[HandleCreateLobbyRoom] room created")

	sendTo(client, internal.Message[internal.RoomCreatedData]{
		Type: internal.EventRoomCreated,
		Data: internal.RoomCreatedData{RoomId: roomId},
	})

	if err := c.broadcastUsers(ctx, roomId); err != nil {
		return err
	}
	return c.broadcastMeta(ctx, roomId)
}
