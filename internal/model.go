package internal

import "time"

const (
	// RoundDuration is the fixed submission window of every round.
	RoundDuration = 5 * time.Minute
	TickInterval  = 1 * time.Second
)

type RoundPhase string

const (
	PhaseNoRound RoundPhase = "no_round"
	PhaseRunning RoundPhase = "running"
	PhaseEnded   RoundPhase = "ended"
)

// RoomMeta is the fully populated view of room:{id}:meta.
type RoomMeta struct {
	Fee             string `json:"fee"`
	CreatedAt       int64  `json:"createdAt"`
	Asset           string `json:"asset,omitempty"`
	RoundEnd        *int64 `json:"roundEnd"`
	Owner           string `json:"owner,omitempty"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
}

// Phase derives the round state from RoundEnd relative to now (ms).
func (m RoomMeta) Phase(nowMs int64) RoundPhase {
	switch {
	case m.RoundEnd == nil:
		return PhaseNoRound
	case nowMs < *m.RoundEnd:
		return PhaseRunning
	default:
		return PhaseEnded
	}
}

// RoomMetaPatch carries the fields a merge should write. Nil fields are left
// untouched in the store. ResetRoundEnd writes an explicit null roundEnd and
// wins over RoundEnd.
type RoomMetaPatch struct {
	Fee             *string
	CreatedAt       *int64
	Asset           *string
	RoundEnd        *int64
	ResetRoundEnd   bool
	Owner           *string
	MaxParticipants *int
}

func (p RoomMetaPatch) IsEmpty() bool {
	return p.Fee == nil && p.CreatedAt == nil && p.Asset == nil &&
		p.RoundEnd == nil && !p.ResetRoundEnd && p.Owner == nil && p.MaxParticipants == nil
}

// PlayerRecord is the fully populated view of room:{id}:player:{sessionId}.
type PlayerRecord struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
	Wallet   string `json:"wallet"`
	JoinedAt int64  `json:"joinedAt"`
}

type PlayerPatch struct {
	Nickname *string
	Wallet   *string
	JoinedAt *int64
}

func (p PlayerPatch) IsEmpty() bool {
	return p.Nickname == nil && p.Wallet == nil && p.JoinedAt == nil
}

// UserEntry is one element of the users broadcast, rendered per receiver.
type UserEntry struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
	Wallet   string `json:"wallet"`
	IsSelf   bool   `json:"isSelf"`
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
