package game

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scythe504/drawpool-backend/internal"
	"github.com/scythe504/drawpool-backend/internal/roomstate"
)

const (
	eventTimeout = 10 * time.Second
	// roundLockGrace keeps the round claim alive past roundEnd long enough
	// for finalization to read state and release it.
	roundLockGrace = 30 * time.Second
)

type Options struct {
	Now             func() time.Time
	Tickers         TickerFactory
	MaxMessageBytes int64
	EventsPerSecond int
	CheckOrigin     func(r *http.Request) bool
}

// Coordinator owns the session table and the round timers and runs every
// inbound event against the room state repository.
type Coordinator struct {
	repo     *roomstate.Repository
	sessions *Sessions
	timers   *RoundTimers
	now      func() time.Time
	upgrader websocket.Upgrader
	opts     Options
}

func NewCoordinator(repo *roomstate.Repository, sessions *Sessions, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &Coordinator{
		repo:     repo,
		sessions: sessions,
		timers:   NewRoundTimers(opts.Tickers, internal.TickInterval, opts.Now),
		now:      opts.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts: opts,
	}
}

func (c *Coordinator) Sessions() *Sessions {
	return c.sessions
}

func (c *Coordinator) Timers() *RoundTimers {
	return c.timers
}

// Shutdown stops every round timer and closes every live connection.
func (c *Coordinator) Shutdown() {
	c.timers.StopAll()
	for _, client := range c.sessions.Clients() {
		_ = client.Close()
	}
}
