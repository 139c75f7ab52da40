package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/drawpool-backend/internal"
	"github.com/scythe504/drawpool-backend/internal/roomstate"
	"github.com/scythe504/drawpool-backend/internal/store"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// fakeTicker is a ticker channel driven by the test.
type fakeTicker struct {
	C       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (tk *fakeTicker) tick(t *testing.T, at time.Time) {
	t.Helper()
	select {
	case tk.C <- at:
	case <-time.After(2 * time.Second):
		t.Fatal("timer goroutine did not take the tick")
	}
}

func (tk *fakeTicker) Stopped() bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.stopped
}

type fakeTickers struct {
	mu      sync.Mutex
	created []*fakeTicker
}

func (f *fakeTickers) Create(time.Duration) (<-chan time.Time, func()) {
	tk := &fakeTicker{C: make(chan time.Time)}
	f.mu.Lock()
	f.created = append(f.created, tk)
	f.mu.Unlock()
	return tk.C, func() {
		tk.mu.Lock()
		tk.stopped = true
		tk.mu.Unlock()
	}
}

func (f *fakeTickers) Last(t *testing.T) *fakeTicker {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.created, "no ticker created")
	return f.created[len(f.created)-1]
}

func (f *fakeTickers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// recordingClient keeps every frame written to it, decoded back into the
// wire envelope.
type recordingClient struct {
	id     string
	mu     sync.Mutex
	frames []internal.RawMessage
	closed bool
}

func newClient(id string) *recordingClient {
	return &recordingClient{id: id}
}

func (c *recordingClient) SessionId() string { return c.id }

func (c *recordingClient) SafeWriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg internal.RawMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed connection")
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *recordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingClient) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		types = append(types, f.Type)
	}
	return types
}

func (c *recordingClient) OfType(typ string) []internal.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []internal.RawMessage
	for _, f := range c.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *recordingClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// lastOf decodes the data of the most recent frame of type typ.
func lastOf[T any](t *testing.T, c *recordingClient, typ string) T {
	t.Helper()
	frames := c.OfType(typ)
	require.NotEmpty(t, frames, "%s received no %s", c.id, typ)
	var v T
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &v))
	return v
}

func allOf[T any](t *testing.T, c *recordingClient, typ string) []T {
	t.Helper()
	var out []T
	for _, f := range c.OfType(typ) {
		var v T
		require.NoError(t, json.Unmarshal(f.Data, &v))
		out = append(out, v)
	}
	return out
}

type harness struct {
	coord   *Coordinator
	repo    *roomstate.Repository
	kv      *store.MemoryStore
	clock   *fakeClock
	tickers *fakeTickers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	tickers := &fakeTickers{}
	kv := store.NewMemoryStoreWithClock(clock.Now)
	repo := roomstate.NewRepository(kv, 24*time.Hour, clock.Now)
	coord := NewCoordinator(repo, NewSessions(), Options{Now: clock.Now, Tickers: tickers})
	t.Cleanup(coord.Shutdown)
	return &harness{coord: coord, repo: repo, kv: kv, clock: clock, tickers: tickers}
}

func (h *harness) create(t *testing.T, c *recordingClient, roomId, fee, wallet, nickname string) {
	t.Helper()
	require.NoError(t, h.coord.HandleCreateLobbyRoom(context.Background(), c, internal.CreateLobbyRoomData{
		RoomId: roomId, EntryFee: fee, Wallet: wallet, Nickname: nickname,
	}))
}

func (h *harness) join(t *testing.T, c *recordingClient, roomId, wallet, nickname string) {
	t.Helper()
	require.NoError(t, h.coord.HandleJoin(context.Background(), c, internal.JoinData{
		RoomId: roomId, Wallet: wallet, Nickname: nickname,
	}))
}

func (h *harness) meta(t *testing.T, roomId string) internal.RoomMeta {
	t.Helper()
	meta, err := h.repo.ReadRoomMeta(context.Background(), roomId)
	require.NoError(t, err)
	return meta
}

var mockCtx = mock.Anything

// newMockRepo builds a repository over a scripted store. Retention is off so
// no Expire calls need scripting.
func newMockRepo(kv *MockStore) *roomstate.Repository {
	return roomstate.NewRepository(kv, 0, newFakeClock().Now)
}

// MockStore is a store.Store whose calls are scripted per test.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	return m.Called(ctx, key, fields).Error(0)
}

func (m *MockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	fields, _ := args.Get(0).(map[string]string)
	return fields, args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() {}
