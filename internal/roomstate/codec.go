package roomstate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/scythe504/drawpool-backend/internal"
)

var ErrMalformed = errors.New("roomstate: malformed stored field")

const (
	fieldFee             = "fee"
	fieldCreatedAt       = "createdAt"
	fieldAsset           = "asset"
	fieldRoundEnd        = "roundEnd"
	fieldOwner           = "owner"
	fieldMaxParticipants = "maxParticipants"

	fieldNickname = "nickname"
	fieldWallet   = "wallet"
	fieldJoinedAt = "joinedAt"

	// nullValue is how an explicit null roundEnd is stored.
	nullValue = "null"
)

func encodeMetaPatch(p internal.RoomMetaPatch) map[string]string {
	fields := make(map[string]string)
	if p.Fee != nil {
		fields[fieldFee] = *p.Fee
	}
	if p.CreatedAt != nil {
		fields[fieldCreatedAt] = strconv.FormatInt(*p.CreatedAt, 10)
	}
	if p.Asset != nil {
		fields[fieldAsset] = *p.Asset
	}
	if p.Owner != nil {
		fields[fieldOwner] = *p.Owner
	}
	if p.MaxParticipants != nil {
		fields[fieldMaxParticipants] = strconv.Itoa(*p.MaxParticipants)
	}
	switch {
	case p.ResetRoundEnd:
		fields[fieldRoundEnd] = nullValue
	case p.RoundEnd != nil:
		fields[fieldRoundEnd] = strconv.FormatInt(*p.RoundEnd, 10)
	}
	return fields
}

func decodeMeta(fields map[string]string, nowMs int64) (internal.RoomMeta, error) {
	meta := internal.RoomMeta{
		Fee:       fields[fieldFee],
		CreatedAt: nowMs,
		Asset:     fields[fieldAsset],
		Owner:     fields[fieldOwner],
	}

	if v, ok := fields[fieldCreatedAt]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return internal.RoomMeta{}, fmt.Errorf("%w: %s=%q", ErrMalformed, fieldCreatedAt, v)
		}
		meta.CreatedAt = n
	}

	if v, ok := fields[fieldRoundEnd]; ok && v != "" && v != nullValue {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return internal.RoomMeta{}, fmt.Errorf("%w: %s=%q", ErrMalformed, fieldRoundEnd, v)
		}
		meta.RoundEnd = &n
	}

	if v, ok := fields[fieldMaxParticipants]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return internal.RoomMeta{}, fmt.Errorf("%w: %s=%q", ErrMalformed, fieldMaxParticipants, v)
		}
		meta.MaxParticipants = n
	}

	return meta, nil
}

func encodePlayerPatch(p internal.PlayerPatch) map[string]string {
	fields := make(map[string]string)
	if p.Nickname != nil {
		fields[fieldNickname] = *p.Nickname
	}
	if p.Wallet != nil {
		fields[fieldWallet] = *p.Wallet
	}
	if p.JoinedAt != nil {
		fields[fieldJoinedAt] = strconv.FormatInt(*p.JoinedAt, 10)
	}
	return fields
}

func decodePlayer(sessionId string, fields map[string]string, nowMs int64) (internal.PlayerRecord, error) {
	player := internal.PlayerRecord{
		Id:       sessionId,
		Nickname: fields[fieldNickname],
		Wallet:   fields[fieldWallet],
		JoinedAt: nowMs,
	}
	if v, ok := fields[fieldJoinedAt]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return internal.PlayerRecord{}, fmt.Errorf("%w: %s=%q", ErrMalformed, fieldJoinedAt, v)
		}
		player.JoinedAt = n
	}
	return player, nil
}
