package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// HandleWebSocket upgrades the request, registers a fresh session and starts
// its read loop.
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("[HandleWebSocket] upgrade failed")
		return
	}
	conn.SetReadLimit(c.opts.MaxMessageBytes)

	player := internal.NewPlayer(uuid.NewString(), conn, c.opts.EventsPerSecond)
	c.sessions.Register(player)

	log.Info().Str("session", player.Id).Str("remote", r.RemoteAddr).Msg("[HandleWebSocket] connection opened")

	sendTo(player, internal.Message[internal.SessionData]{
		Type: internal.EventSession,
		Data: internal.SessionData{Id: player.Id},
	})

	go c.handleMessages(player)
}

// handleMessages reads frames until the connection fails, then runs the
// disconnect cleanup.
func (c *Coordinator) handleMessages(player *internal.Player) {
	defer func() {
		_ = player.Conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := c.HandleDisconnect(ctx, player); err != nil {
			log.Error().Err(err).Str("session", player.Id).Msg("[handleMessages] disconnect cleanup incomplete")
		}
	}()

	for {
		_, raw, err := player.Conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("session", player.Id).Msg("[handleMessages] connection closed")
			return
		}

		if !player.Allow() {
			log.Warn().Str("session", player.Id).Msg("[handleMessages] rate limit exceeded, dropping event")
			continue
		}

		c.Dispatch(player, raw)
	}
}

// Dispatch decodes one inbound frame and runs its handler. Failures are
// logged and never reach the transport; a panic in one event is contained to
// that event.
func (c *Coordinator) Dispatch(client internal.Client, raw []byte) {
	var msg internal.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("session", client.SessionId()).Msg("[Dispatch] malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("session", client.SessionId()).Str("type", msg.Type).
				Msg("[Dispatch] handler panicked")
		}
	}()

	err := c.route(ctx, client, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAlreadyRunning):
		log.Info().Err(err).Str("session", client.SessionId()).Str("type", msg.Type).Msg("[Dispatch] event rejected")
	default:
		log.Error().Err(err).Str("session", client.SessionId()).Str("type", msg.Type).Msg("[Dispatch] event failed")
	}
}

func (c *Coordinator) route(ctx context.Context, client internal.Client, msg internal.RawMessage) error {
	switch msg.Type {
	case internal.EventCreateLobbyRoom:
		var data internal.CreateLobbyRoomData
		if err := decodeData(msg, &data); err != nil {
			return err
		}
		return c.HandleCreateLobbyRoom(ctx, client, data)
	case internal.EventJoin:
		var data internal.JoinData
		if err := decodeData(msg, &data); err != nil {
			return err
		}
		return c.HandleJoin(ctx, client, data)
	case internal.EventStartRound:
		var data internal.StartRoundData
		if err := decodeData(msg, &data); err != nil {
			return err
		}
		return c.HandleStartRound(ctx, client, data)
	case internal.EventSetNickname:
		var data internal.SetNicknameData
		if err := decodeData(msg, &data); err != nil {
			return err
		}
		return c.HandleSetNickname(ctx, client, data)
	case internal.EventDrawingSubmit:
		var data internal.DrawingSubmitData
		if err := decodeData(msg, &data); err != nil {
			return err
		}
		return c.HandleDrawingSubmit(ctx, client, data)
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidRequest, msg.Type)
	}
}

func decodeData(msg internal.RawMessage, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrInvalidRequest, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrInvalidRequest, msg.Type, err)
	}
	return nil
}
