package internal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

// Client is anything a room broadcast can be delivered to.
type Client interface {
	SessionId() string
	SafeWriteJSON(v any) error
	Close() error
}

// Player is one live websocket connection. Its Id is the session id used as
// the player key in every room it joins.
type Player struct {
	Id      string
	Conn    *websocket.Conn
	Limiter *rate.Limiter
	Mu      sync.Mutex
}

func NewPlayer(id string, conn *websocket.Conn, eventsPerSecond int) *Player {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 20
	}
	return &Player{
		Id:      id,
		Conn:    conn,
		Limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), eventsPerSecond*2),
	}
}

func (p *Player) SessionId() string {
	return p.Id
}

// Allow reports whether another inbound event fits the rate budget.
func (p *Player) Allow() bool {
	if p.Limiter == nil {
		return true
	}
	return p.Limiter.Allow()
}

func (p *Player) SafeWriteJSON(v any) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	_ = p.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.Conn.WriteJSON(v)
}

func (p *Player) Close() error {
	return p.Conn.Close()
}
