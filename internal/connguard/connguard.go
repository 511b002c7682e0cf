// Package connguard throttles how often a single source address may open a
// new session. A misbehaving or crash-looping LAN client reconnecting in a
// tight loop shouldn't be allowed to spam the accept loop and the logs.
package connguard

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Guard tracks the last accept time per address in a short-TTL cache; it
// never grows unbounded because entries expire on their own.
type Guard struct {
	seen   *gocache.Cache
	window time.Duration
}

// New builds a Guard that allows at most one accepted connection per address
// within window.
func New(window time.Duration) *Guard {
	return &Guard{
		seen:   gocache.New(window, window),
		window: window,
	}
}

// Allow reports whether a connection from addr may proceed, and records the
// attempt either way so the window resets from the most recent attempt.
func (g *Guard) Allow(addr string) bool {
	_, hit := g.seen.Get(addr)
	g.seen.Set(addr, struct{}{}, g.window)
	return !hit
}
