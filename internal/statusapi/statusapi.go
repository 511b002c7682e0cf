// Package statusapi exposes a small operator-facing HTTP surface alongside
// the TCP lobby listener: a liveness probe and a snapshot of host and lobby
// load. It never touches game traffic and has no effect on dispatch.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/lobby"
)

// StatsSource is the lobby's exported surface this package depends on, kept
// narrow so statusapi never needs to know about sessions, players, or rooms
// beyond their counts.
type StatsSource interface {
	Stats() lobby.Stats
}

// Server wraps a gin engine bound to its own listen address, independent of
// the TCP lobby port.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// New builds the status server. Call Start to begin serving.
func New(addr string, lobby StatsSource, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/stats", func(c *gin.Context) {
		stats := lobby.Stats()
		cpuPct, _ := cpu.Percent(0, false)
		memInfo, _ := mem.VirtualMemory()

		resp := gin.H{
			"clients": stats.Clients,
			"players": stats.Players,
			"rooms":   stats.Rooms,
		}
		if len(cpuPct) > 0 {
			resp["cpu_percent"] = cpuPct[0]
		}
		if memInfo != nil {
			resp["mem_used_percent"] = memInfo.UsedPercent
		}
		c.JSON(http.StatusOK, resp)
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		logger:     logger,
	}
}

// Start runs the HTTP server until ctx is cancelled. It never returns an
// error for a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("status server shutdown")
		}
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
