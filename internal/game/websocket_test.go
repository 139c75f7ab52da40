package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/drawpool-backend/internal"
	"github.com/scythe504/drawpool-backend/internal/store"
)

type panickingClient struct{ id string }

func (p panickingClient) SessionId() string       { return p.id }
func (p panickingClient) SafeWriteJSON(any) error { panic("write on torn-down connection") }
func (p panickingClient) Close() error            { return nil }

func TestDispatch_RoutesEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	alice, bob := newClient("alice"), newClient("bob")

	h.coord.Dispatch(alice, []byte(`{"type":"create_lobby_room","data":{"roomId":"R1","entryFee":"10","maxParticipants":4,"wallet":"W1","nickname":"alice"}}`))
	h.coord.Dispatch(bob, []byte(`{"type":"join","data":{"roomId":"R1","wallet":"W2","nickname":"bob"}}`))
	h.coord.Dispatch(bob, []byte(`{"type":"set_nickname","data":{"roomId":"R1","nickname":"robert"}}`))
	h.coord.Dispatch(bob, []byte(`{"type":"drawing_submit","data":{"roomId":"R1","drawing":"data:image/png;base64,AAAA"}}`))
	h.coord.Dispatch(alice, []byte(`{"type":"start_round","data":{"roomId":"R1","wallet":"W1"}}`))

	meta := h.meta(t, "R1")
	assert.Equal(t, 4, meta.MaxParticipants)
	require.NotNil(t, meta.RoundEnd)

	users := lastOf[[]internal.UserEntry](t, alice, internal.EventUsers)
	require.Len(t, users, 2)
	assert.Equal(t, "robert", users[1].Nickname)

	assert.Equal(t, internal.DrawingData{Id: "bob", Data: "data:image/png;base64,AAAA"},
		lastOf[internal.DrawingData](t, alice, internal.EventDrawing))
	assert.Len(t, bob.OfType(internal.EventRoundStarted), 1)
}

func TestDispatch_BadFramesAreDropped(t *testing.T) {
	t.Parallel()
	frames := map[string]string{
		"not json":         `{"type":`,
		"unknown type":     `{"type":"guess","data":{"roomId":"R1"}}`,
		"missing data":     `{"type":"join"}`,
		"data not object":  `{"type":"join","data":"R1"}`,
		"wrong field type": `{"type":"create_lobby_room","data":{"roomId":"R1","maxParticipants":"four"}}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			alice := newClient("alice")

			assert.NotPanics(t, func() { h.coord.Dispatch(alice, []byte(frame)) })
			assert.Empty(t, alice.Types())

			keys, err := h.kv.Keys(context.Background(), "room:")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestDispatch_RecoversFromHandlerPanic(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.NotPanics(t, func() {
		h.coord.Dispatch(panickingClient{id: "p"}, []byte(`{"type":"create_lobby_room","data":{"roomId":""}}`))
	})

	// The coordinator keeps serving other sessions.
	alice := newClient("alice")
	h.coord.Dispatch(alice, []byte(`{"type":"create_lobby_room","data":{"roomId":"R1","entryFee":"1","wallet":"W1"}}`))
	assert.Len(t, alice.OfType(internal.EventRoomCreated), 1)
}

func TestDispatch_StoreFailureSendsNothing(t *testing.T) {
	t.Parallel()
	kv := &MockStore{}
	coord := NewCoordinator(newMockRepo(kv), NewSessions(), Options{Now: newFakeClock().Now, Tickers: &fakeTickers{}})
	t.Cleanup(coord.Shutdown)

	kv.On("HGetAll", mockCtx, internal.MetaKey("R1")).Return(nil, store.ErrUnavailable)

	alice := newClient("alice")
	coord.Dispatch(alice, []byte(`{"type":"start_round","data":{"roomId":"R1","wallet":"W1"}}`))

	assert.Empty(t, alice.Types())
	kv.AssertExpectations(t)
}
