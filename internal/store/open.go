package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// MemoryURL selects the in-process store.
const MemoryURL = "memory"

// Open returns the store named by url, retrying the initial connection with
// exponential backoff until ctx is done or deadline passes.
func Open(ctx context.Context, url, token string, deadline time.Duration) (Store, error) {
	if url == "" || url == MemoryURL {
		log.Warn().Msg("[store.Open] using in-process memory store, state is lost on restart")
		return NewMemoryStore(), nil
	}

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	giveUp := time.Now().Add(deadline)

	for {
		s, err := NewPostgresStore(ctx, url, token)
		if err == nil {
			if err = s.Ping(ctx); err == nil {
				log.Info().Msg("[store.Open] connected to postgres store")
				return s, nil
			}
			s.Close()
		}

		if time.Now().After(giveUp) {
			return nil, fmt.Errorf("connect to store: %w", err)
		}

		wait := b.Duration()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("[store.Open] store not reachable, will retry")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunJanitor purges expired keys every interval until ctx is done. Stores
// that expire lazily on read need no janitor and are skipped.
func RunJanitor(ctx context.Context, s Store, interval time.Duration) {
	pg, ok := s.(*PostgresStore)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("[RunJanitor] purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("[RunJanitor] expired keys removed")
			}
		}
	}
}
