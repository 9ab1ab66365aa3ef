package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dwarpal-ai/dwarpal/doorbellservice"
	"github.com/dwarpal-ai/dwarpal/internal/factory"
)

func main() {
	if err := doorbellservice.Run(); err != nil {
		log.Error().Err(err).Msg("doorbell-service exited with error")
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes a damaged store file (2) and a crash after startup
// (3) from plain configuration or bootstrap failures (1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, factory.ErrStoreCorrupt):
		return 2
	case errors.Is(err, doorbellservice.ErrServeFailed):
		return 3
	}
	return 1
}
