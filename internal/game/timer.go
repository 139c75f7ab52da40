package game

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

// TickerFactory creates the periodic channel that drives a round timer.
type TickerFactory interface {
	Create(d time.Duration) (<-chan time.Time, func())
}

type realTickers struct{}

func (realTickers) Create(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// roundTimer is one ticking process, identified by its room and roundEnd.
type roundTimer struct {
	roomId   string
	roundEnd int64
	cancel   context.CancelFunc
}

// RoundTimers is the process-local table of live round timers. Entries are
// keyed by room id and carry the roundEnd they were started for, so a timer
// from a superseded round notices it is stale and exits.
type RoundTimers struct {
	mu       sync.Mutex
	active   map[string]*roundTimer
	root     context.Context
	stopAll  context.CancelFunc
	wg       sync.WaitGroup
	tickers  TickerFactory
	interval time.Duration
	now      func() time.Time
}

func NewRoundTimers(tickers TickerFactory, interval time.Duration, now func() time.Time) *RoundTimers {
	if tickers == nil {
		tickers = realTickers{}
	}
	if now == nil {
		now = time.Now
	}
	root, stopAll := context.WithCancel(context.Background())
	return &RoundTimers{
		active:   make(map[string]*roundTimer),
		root:     root,
		stopAll:  stopAll,
		tickers:  tickers,
		interval: interval,
		now:      now,
	}
}

// TimeLeft is max(0, floor((roundEnd - now) / 1000)) in seconds.
func TimeLeft(roundEnd int64, now time.Time) int64 {
	left := (roundEnd - now.UnixMilli()) / 1000
	if left < 0 {
		return 0
	}
	return left
}

// Start launches the ticking process for the round of roomId ending at
// roundEnd. onTick receives every computed timeLeft; onExpire runs once,
// right after the tick that reached zero. A timer already registered for the
// room is superseded.
func (rt *RoundTimers) Start(roomId string, roundEnd int64, onTick func(timeLeft int64), onExpire func()) {
	ctx, cancel := context.WithCancel(rt.root)
	timer := &roundTimer{roomId: roomId, roundEnd: roundEnd, cancel: cancel}

	rt.mu.Lock()
	if prev, ok := rt.active[roomId]; ok {
		log.Warn().Str("room", roomId).Int64("stale_round_end", prev.roundEnd).Int64("round_end", roundEnd).
			Msg("[RoundTimers.Start] superseding live timer")
		prev.cancel()
	}
	rt.active[roomId] = timer
	rt.mu.Unlock()

	ticks, stop := rt.tickers.Create(rt.interval)

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		defer stop()
		defer rt.remove(timer)

		log.Debug().Str("room", roomId).Int64("round_end", roundEnd).Msg("[RoundTimers] timer goroutine started")

		for {
			select {
			case <-ctx.Done():
				log.Debug().Str("room", roomId).Msg("[RoundTimers] timer cancelled")
				return
			case <-ticks:
				if !rt.isCurrent(timer) {
					log.Debug().Str("room", roomId).Int64("round_end", roundEnd).Msg("[RoundTimers] stale timer exiting")
					return
				}
				left := TimeLeft(roundEnd, rt.now())
				onTick(left)
				if left == 0 {
					log.Info().Str("room", roomId).Int64("round_end", roundEnd).Msg("[RoundTimers] round expired")
					onExpire()
					return
				}
			}
		}
	}()
}

func (rt *RoundTimers) isCurrent(timer *roundTimer) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.active[timer.roomId] == timer
}

func (rt *RoundTimers) remove(timer *roundTimer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.active[timer.roomId] == timer {
		delete(rt.active, timer.roomId)
	}
	timer.cancel()
}

// Active returns the roundEnd of the live timer for roomId, if any.
func (rt *RoundTimers) Active(roomId string) (int64, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	timer, ok := rt.active[roomId]
	if !ok {
		return 0, false
	}
	return timer.roundEnd, true
}

// StopAll cancels every live timer and waits for their goroutines to exit.
// Rounds cut short this way never broadcast round_end.
func (rt *RoundTimers) StopAll() {
	rt.stopAll()
	rt.wg.Wait()
}
