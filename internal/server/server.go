package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scythe504/drawpool-backend/internal/game"
)

type Server struct {
	addr           string
	allowedOrigins []string
	coordinator    *game.Coordinator
}

func NewServer(addr string, allowedOrigins []string, coordinator *game.Coordinator) *http.Server {
	s := &Server{
		addr:           addr,
		allowedOrigins: allowedOrigins,
		coordinator:    coordinator,
	}

	return &http.Server{
		Addr:              s.addr,
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

// OriginChecker builds the websocket upgrader's origin check. "*" admits
// every origin; requests without an Origin header are always admitted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return originAllowed(allowed, origin)
	}
}

func originAllowed(allowed []string, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	return false
}
