package internal

import "encoding/json"

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound event names.
const (
	EventCreateLobbyRoom = "create_lobby_room"
	EventJoin            = "join"
	EventStartRound      = "start_round"
	EventSetNickname     = "set_nickname"
	EventDrawingSubmit   = "drawing_submit"
)

// Outbound event names.
const (
	EventSession         = "session"
	EventRoomCreated     = "room_created"
	EventRoomCreateError = "room_create_error"
	EventUsers           = "users"
	EventMeta            = "meta"
	EventRoundStarted    = "round_started"
	EventStartRoundError = "start_round_error"
	EventTimer           = "timer"
	EventDrawing         = "drawing"
	EventRoundEnd        = "round_end"
)

// RawMessage is how every inbound frame is first decoded.
type RawMessage = Message[json.RawMessage]

type CreateLobbyRoomData struct {
	EntryFee        string `json:"entryFee"`
	MaxParticipants int    `json:"maxParticipants"`
	Wallet          string `json:"wallet"`
	Nickname        string `json:"nickname"`
	RoomId          string `json:"roomId"`
}

type JoinData struct {
	RoomId   string  `json:"roomId"`
	Nickname string  `json:"nickname"`
	Wallet   string  `json:"wallet"`
	Fee      string  `json:"fee"`
	Asset    *string `json:"asset,omitempty"`
}

type StartRoundData struct {
	RoomId string `json:"roomId"`
	Wallet string `json:"wallet"`
}

type SetNicknameData struct {
	RoomId   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type DrawingSubmitData struct {
	RoomId  string `json:"roomId"`
	Drawing string `json:"drawing"`
}

type SessionData struct {
	Id string `json:"id"`
}

type RoomCreatedData struct {
	RoomId string `json:"roomId"`
}

type ErrorData struct {
	Error string `json:"error"`
}

type RoundStartedData struct {
	RoundEnd int64  `json:"roundEnd"`
	Owner    string `json:"owner"`
}

type DrawingData struct {
	Id   string `json:"id"`
	Data string `json:"data"`
}

type RoundEndData struct {
	Meta     RoomMeta                `json:"meta"`
	Players  map[string]PlayerRecord `json:"players"`
	Drawings map[string]string       `json:"drawings"`
	Pool     string                  `json:"pool"`
}
