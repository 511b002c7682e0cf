package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/phuslu/log"

	"github.com/ereb-thanatos/cossacks3-lan-server/internal/connguard"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/lobby"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/session"
	"github.com/ereb-thanatos/cossacks3-lan-server/internal/statusapi"
)

type Config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" required:"true" default:"0.0.0.0:31523"`
	StatusAddr      string        `envconfig:"STATUS_ADDR" default:"127.0.0.1:31524"`
	ReconnectWindow time.Duration `envconfig:"RECONNECT_WINDOW" default:"1s"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func acceptLoop(ctx context.Context, ln net.Listener, l *lobby.Lobby, guard *connguard.Guard, logger *log.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Error().Err(err).Msg("accept failed")
			continue
		}
		if !guard.Allow(conn.RemoteAddr().String()) {
			logger.Warn().Str("addr", conn.RemoteAddr().String()).Msg("reconnect too soon, dropping")
			conn.Close()
			continue
		}
		go session.New(conn, l, logger).Run(ctx)
	}
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	ln, err := net.Listen("tcp4", config.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen: %w", err)
	}
	logger.Info().Msgf("started lobby server on %s", config.ListenAddr)

	l := lobby.New(logger)
	guard := connguard.New(config.ReconnectWindow)
	status := statusapi.New(config.StatusAddr, l, logger)

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		acceptLoop(ctx, ln, l, guard, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := status.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("status server failed")
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-signalChan:
		logger.Info().Msgf("received %+v signal", sig)
	}

	cancel()
	if err := ln.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing listener")
	}
	wg.Wait()

	return nil
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
