package connguard_test

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/connguard"
)

func TestAllowFirstSeen(t *testing.T) {
	is := is.New(t)
	g := connguard.New(time.Minute)
	is.True(g.Allow("10.0.0.1:5000"))
}

func TestDisallowWithinWindow(t *testing.T) {
	is := is.New(t)
	g := connguard.New(time.Minute)
	is.True(g.Allow("10.0.0.1:5000"))
	is.True(!g.Allow("10.0.0.1:5000"))
}

func TestAllowAfterWindowExpires(t *testing.T) {
	is := is.New(t)
	g := connguard.New(20 * time.Millisecond)
	is.True(g.Allow("10.0.0.1:5000"))
	time.Sleep(40 * time.Millisecond)
	is.True(g.Allow("10.0.0.1:5000"))
}

func TestDistinctAddressesIndependent(t *testing.T) {
	is := is.New(t)
	g := connguard.New(time.Minute)
	is.True(g.Allow("10.0.0.1:5000"))
	is.True(g.Allow("10.0.0.2:5000"))
}
