package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
)

// =============================================================================
// ROOM MEMBERSHIP
// =============================================================================

// HandleJoin subscribes the caller to the room, writes its player record and
// broadcasts users and meta to everyone in the room. Joining an unknown room
// creates its meta.
func (c *Coordinator) HandleJoin(ctx context.Context, client internal.Client, data internal.JoinData) error {
	roomId := strings.TrimSpace(data.RoomId)
	sid := client.SessionId()
	if roomId == "" {
		return fmt.Errorf("%w: join without roomId", ErrInvalidRequest)
	}

	exists, err := c.repo.RoomExists(ctx, roomId)
	if err != nil {
		return err
	}

	now := c.now().UnixMilli()
	patch := internal.RoomMetaPatch{}
	if data.Asset != nil && *data.Asset != "" {
		patch.Asset = data.Asset
	}
	if !exists {
		patch.CreatedAt = internal.Ptr(now)
		patch.ResetRoundEnd = true
		if data.Fee != "" {
			patch.Fee = internal.Ptr(data.Fee)
		}
		log.Info().Str("room", roomId).Str("session", sid).Msg("[HandleJoin] unknown room, creating meta")
	}
	if err := c.repo.MergeRoomMeta(ctx, roomId, patch); err != nil {
		return err
	}

	isNew := c.sessions.Subscribe(roomId, client)

	player := internal.PlayerPatch{
		Nickname: internal.Ptr(data.Nickname),
		Wallet:   internal.Ptr(data.Wallet),
	}
	if isNew {
		player.JoinedAt = internal.Ptr(now)
	}
	if err := c.repo.MergePlayer(ctx, roomId, sid, player); err != nil {
		return err
	}

	log.Info().Str("room", roomId).Str("session", sid).Str("nickname", data.Nickname).Bool("rejoin", !isNew).
		Msg("[HandleJoin] player joined")

	if err := c.broadcastUsers(ctx, roomId); err != nil {
		return err
	}
	return c.broadcastMeta(ctx, roomId)
}

// HandleSetNickname renames the caller in a room it has joined.
func (c *Coordinator) HandleSetNickname(ctx context.Context, client internal.Client, data internal.SetNicknameData) error {
	roomId := strings.TrimSpace(data.RoomId)
	sid := client.SessionId()
	if roomId == "" {
		return fmt.Errorf("%w: set_nickname without roomId", ErrInvalidRequest)
	}
	if !c.sessions.IsMember(roomId, sid) {
		return fmt.Errorf("%w: session %s has not joined room %s", ErrInvalidRequest, sid, roomId)
	}

	if err := c.repo.MergePlayer(ctx, roomId, sid, internal.PlayerPatch{Nickname: internal.Ptr(data.Nickname)}); err != nil {
		return err
	}

	log.Info().Str("room", roomId).Str("session", sid).Str("nickname", data.Nickname).
		Msg("[HandleSetNickname] nickname changed")

	return c.broadcastUsers(ctx, roomId)
}

// HandleDisconnect removes the session's player record and drawing from every
// room it joined and rebroadcasts users to each of them. A failure in one room
// does not stop cleanup of the others.
func (c *Coordinator) HandleDisconnect(ctx context.Context, client internal.Client) error {
	sid := client.SessionId()
	rooms := c.sessions.Remove(sid)

	log.Info().Str("session", sid).Strs("rooms", rooms).Msg("[HandleDisconnect] cleaning up session")

	var errs []error
	for _, roomId := range rooms {
		if err := c.repo.DeletePlayer(ctx, roomId, sid); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.broadcastUsers(ctx, roomId); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
