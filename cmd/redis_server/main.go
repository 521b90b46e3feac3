// Package main runs an embedded miniredis instance for local development,
// so the rate-limiting gate has something to talk to without a real Redis.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"

	"github.com/guido-cesarano/taskindex/pkg/logger"
)

func main() {
	log := logger.For("redis")

	s := miniredis.NewMiniRedis()
	if err := s.StartAddr("127.0.0.1:6379"); err != nil {
		log.Fatal().Err(err).Msg("Failed to start miniredis")
	}
	defer s.Close()

	log.Info().Str("addr", s.Addr()).Msg("MiniRedis server started")

	// Wait for interrupt signal to gracefully shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down MiniRedis...")
}
