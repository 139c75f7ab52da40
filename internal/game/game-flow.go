package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
	"github.com/scythe504/drawpool-backend/internal/utils"
)

// =============================================================================
// GAME FLOW - ROUND MANAGEMENT
// =============================================================================

func (c *Coordinator) rejectStart(client internal.Client, reason string) {
	sendTo(client, internal.Message[internal.ErrorData]{
		Type: internal.EventStartRoundError,
		Data: internal.ErrorData{Error: reason},
	})
}

// HandleStartRound moves the room from NoRound or Ended to Running. Only the
// owner may start, and never while a round is running. Rejections go to the
// caller alone and write nothing.
//
// Two starts racing for the same room are settled by a conditional set on
// the room's round claim: the loser gets AlreadyRunning.
//
// round_end goes out on the tick that computes timeLeft 0, up to one tick
// before roundEnd; a start inside that gap still gets AlreadyRunning.
func (c *Coordinator) HandleStartRound(ctx context.Context, client internal.Client, data internal.StartRoundData) error {
	roomId := strings.TrimSpace(data.RoomId)
	sid := client.SessionId()
	if roomId == "" {
		c.rejectStart(client, msgRoomIdRequired)
		return fmt.Errorf("%w: start_round without roomId", ErrInvalidRequest)
	}

	meta, err := c.repo.ReadRoomMeta(ctx, roomId)
	if err != nil {
		return err
	}

	if meta.Owner == "" || data.Wallet != meta.Owner {
		log.Info().Str("room", roomId).Str("session", sid).Str("wallet", data.Wallet).
			Msg("[HandleStartRound] rejected: caller is not the owner")
		c.rejectStart(client, msgOnlyOwner)
		return fmt.Errorf("%w: wallet %q is not owner of %s", ErrUnauthorized, data.Wallet, roomId)
	}

	now := c.now()
	if meta.Phase(now.UnixMilli()) == internal.PhaseRunning {
		log.Info().Str("room", roomId).Int64("round_end", *meta.RoundEnd).
			Msg("[HandleStartRound] rejected: round already running")
		c.rejectStart(client, msgAlreadyRunning)
		return fmt.Errorf("%w: %s until %d", ErrAlreadyRunning, roomId, *meta.RoundEnd)
	}

	roundEnd := now.Add(internal.RoundDuration).UnixMilli()
	acquired, err := c.repo.AcquireRound(ctx, roomId, roundEnd, internal.RoundDuration+roundLockGrace)
	if err != nil {
		return err
	}
	if !acquired {
		log.Info().Str("room", roomId).Msg("[HandleStartRound] rejected: round claim held by a concurrent start")
		c.rejectStart(client, msgAlreadyRunning)
		return fmt.Errorf("%w: %s claim is held", ErrAlreadyRunning, roomId)
	}

	if err := c.repo.MergeRoomMeta(ctx, roomId, internal.RoomMetaPatch{RoundEnd: internal.Ptr(roundEnd)}); err != nil {
		if relErr := c.repo.ReleaseRound(ctx, roomId, roundEnd); relErr != nil {
			log.Error().Err(relErr).Str("room", roomId).Msg("[HandleStartRound] releasing claim after failed write")
		}
		return err
	}

	log.Info().Str("room", roomId).Str("owner", meta.Owner).Int64("round_end", roundEnd).
		Msg("[HandleStartRound] round started")

	SafeBroadcastToRoom(c.sessions, roomId, internal.Message[internal.RoundStartedData]{
		Type: internal.EventRoundStarted,
		Data: internal.RoundStartedData{RoundEnd: roundEnd, Owner: meta.Owner},
	})
	c.broadcastTimer(roomId, TimeLeft(roundEnd, now))

	c.timers.Start(roomId, roundEnd,
		func(timeLeft int64) { c.broadcastTimer(roomId, timeLeft) },
		func() { c.finishRound(roomId, roundEnd) },
	)
	return nil
}

func (c *Coordinator) broadcastTimer(roomId string, timeLeft int64) {
	SafeBroadcastToRoom(c.sessions, roomId, internal.Message[int64]{Type: internal.EventTimer, Data: timeLeft})
}

// finishRound reads back meta, players and drawings and broadcasts them as
// one round_end. Round state is not reset; the next start_round does that.
func (c *Coordinator) finishRound(roomId string, roundEnd int64) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	defer func() {
		if err := c.repo.ReleaseRound(ctx, roomId, roundEnd); err != nil {
			log.Error().Err(err).Str("room", roomId).Msg("[finishRound] release round claim")
		}
	}()

	result, err := c.roundResult(ctx, roomId)
	if err != nil {
		log.Error().Err(err).Str("room", roomId).Msg("[finishRound] could not read round state, round_end not sent")
		return
	}

	log.Info().Str("room", roomId).Int("players", len(result.Players)).Int("drawings", len(result.Drawings)).
		Str("pool", result.Pool).Msg("[finishRound] round ended")

	SafeBroadcastToRoom(c.sessions, roomId, internal.Message[internal.RoundEndData]{
		Type: internal.EventRoundEnd,
		Data: result,
	})
}

func (c *Coordinator) roundResult(ctx context.Context, roomId string) (internal.RoundEndData, error) {
	meta, err := c.repo.ReadRoomMeta(ctx, roomId)
	if err != nil {
		return internal.RoundEndData{}, err
	}
	players, err := c.repo.Players(ctx, roomId)
	if err != nil {
		return internal.RoundEndData{}, err
	}
	drawings, err := c.repo.Drawings(ctx, roomId)
	if err != nil {
		return internal.RoundEndData{}, err
	}

	byId := make(map[string]internal.PlayerRecord, len(players))
	for _, p := range players {
		byId[p.Id] = p
	}

	return internal.RoundEndData{
		Meta:     meta,
		Players:  byId,
		Drawings: drawings,
		Pool:     utils.PrizePool(meta.Fee, len(players)),
	}, nil
}
