// Package roomstate maps rooms, players and drawings onto store keys.
package roomstate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal"
	"github.com/scythe504/drawpool-backend/internal/store"
)

// Repository reads and writes room state. It holds no copy of that state;
// every call goes to the store.
type Repository struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewRepository returns a Repository over s. A positive ttl is refreshed on
// every key the repository writes.
func NewRepository(s store.Store, ttl time.Duration, now func() time.Time) *Repository {
	if now == nil {
		now = time.Now
	}
	return &Repository{store: s, ttl: ttl, now: now}
}

func (r *Repository) nowMs() int64 {
	return r.now().UnixMilli()
}

func (r *Repository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	if err := r.store.Expire(ctx, key, r.ttl); err != nil {
		return fmt.Errorf("refresh ttl on %s: %w", key, err)
	}
	return nil
}

// MergeRoomMeta writes only the fields present in patch.
func (r *Repository) MergeRoomMeta(ctx context.Context, roomId string, patch internal.RoomMetaPatch) error {
	fields := encodeMetaPatch(patch)
	if len(fields) == 0 {
		return nil
	}
	key := internal.MetaKey(roomId)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("merge room meta %s: %w", roomId, err)
	}
	return r.touch(ctx, key)
}

// ReadRoomMeta returns the room meta with defaults for fields never written.
func (r *Repository) ReadRoomMeta(ctx context.Context, roomId string) (internal.RoomMeta, error) {
	fields, err := r.store.HGetAll(ctx, internal.MetaKey(roomId))
	if err != nil {
		return internal.RoomMeta{}, fmt.Errorf("read room meta %s: %w", roomId, err)
	}
	return decodeMeta(fields, r.nowMs())
}

// RoomExists reports whether any meta field was ever written for roomId.
func (r *Repository) RoomExists(ctx context.Context, roomId string) (bool, error) {
	fields, err := r.store.HGetAll(ctx, internal.MetaKey(roomId))
	if err != nil {
		return false, fmt.Errorf("read room meta %s: %w", roomId, err)
	}
	return len(fields) > 0, nil
}

func (r *Repository) MergePlayer(ctx context.Context, roomId, sessionId string, patch internal.PlayerPatch) error {
	fields := encodePlayerPatch(patch)
	if len(fields) == 0 {
		return nil
	}
	key := internal.PlayerKey(roomId, sessionId)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("merge player %s in %s: %w", sessionId, roomId, err)
	}
	return r.touch(ctx, key)
}

func (r *Repository) ReadPlayer(ctx context.Context, roomId, sessionId string) (internal.PlayerRecord, error) {
	fields, err := r.store.HGetAll(ctx, internal.PlayerKey(roomId, sessionId))
	if err != nil {
		return internal.PlayerRecord{}, fmt.Errorf("read player %s in %s: %w", sessionId, roomId, err)
	}
	return decodePlayer(sessionId, fields, r.nowMs())
}

// Players scans every player record in the room, ordered by join time. A
// record removed between the scan and its read is skipped.
func (r *Repository) Players(ctx context.Context, roomId string) ([]internal.PlayerRecord, error) {
	prefix := internal.PlayerPrefix(roomId)
	keys, err := r.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list players in %s: %w", roomId, err)
	}

	players := make([]internal.PlayerRecord, 0, len(keys))
	for _, key := range keys {
		sessionId := strings.TrimPrefix(key, prefix)
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read player %s in %s: %w", sessionId, roomId, err)
		}
		if len(fields) == 0 {
			continue
		}
		p, err := decodePlayer(sessionId, fields, r.nowMs())
		if err != nil {
			log.Warn().Err(err).Str("room", roomId).Str("session", sessionId).
				Msg("[Players] skipping malformed player record")
			continue
		}
		players = append(players, p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].Id < players[j].Id
	})
	return players, nil
}

// DeletePlayer removes the player record and drawing of sessionId.
func (r *Repository) DeletePlayer(ctx context.Context, roomId, sessionId string) error {
	err := r.store.Del(ctx, internal.PlayerKey(roomId, sessionId), internal.GraphKey(roomId, sessionId))
	if err != nil {
		return fmt.Errorf("delete player %s in %s: %w", sessionId, roomId, err)
	}
	return nil
}

// SaveDrawing stores blob as the only drawing of sessionId, replacing any
// earlier one.
func (r *Repository) SaveDrawing(ctx context.Context, roomId, sessionId, blob string) error {
	key := internal.GraphKey(roomId, sessionId)
	if err := r.store.Set(ctx, key, blob); err != nil {
		return fmt.Errorf("save drawing %s in %s: %w", sessionId, roomId, err)
	}
	return r.touch(ctx, key)
}

// Drawings returns every drawing in the room keyed by session id. Keys under
// the drawing prefix that do not hold a string are skipped.
func (r *Repository) Drawings(ctx context.Context, roomId string) (map[string]string, error) {
	prefix := internal.GraphPrefix(roomId)
	keys, err := r.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list drawings in %s: %w", roomId, err)
	}

	drawings := make(map[string]string, len(keys))
	for _, key := range keys {
		blob, err := r.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if errors.Is(err, store.ErrWrongType) {
			log.Warn().Str("room", roomId).Str("key", key).Msg("[Drawings] skipping non-string drawing key")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read drawing %s: %w", key, err)
		}
		drawings[strings.TrimPrefix(key, prefix)] = blob
	}
	return drawings, nil
}

// AcquireRound claims the room for the round ending at roundEnd. It fails
// when another round still holds the claim.
func (r *Repository) AcquireRound(ctx context.Context, roomId string, roundEnd int64, hold time.Duration) (bool, error) {
	ok, err := r.store.SetNX(ctx, internal.RoundLockKey(roomId), strconv.FormatInt(roundEnd, 10), hold)
	if err != nil {
		return false, fmt.Errorf("acquire round lock %s: %w", roomId, err)
	}
	return ok, nil
}

// ReleaseRound drops the claim if it still belongs to the round ending at
// roundEnd. The check and delete are two commands; a claim that expired and
// was retaken in between is the only case this can get wrong.
func (r *Repository) ReleaseRound(ctx context.Context, roomId string, roundEnd int64) error {
	key := internal.RoundLockKey(roomId)
	held, err := r.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read round lock %s: %w", roomId, err)
	}
	if held != strconv.FormatInt(roundEnd, 10) {
		return nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release round lock %s: %w", roomId, err)
	}
	return nil
}
