// Package logger builds the process-wide zerolog logger: service-tagged,
// timestamped, and able to render stack traces from pkg/errors values.
package logger

import (
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

// New returns the service logger. Error events logged with .Stack() carry a
// stack trace whether or not the error was created with pkg/errors; plain
// errors get one attached at the log site.
func New(serviceName string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}

	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// WithLevel returns a service logger filtered to the given level name.
// Unknown names fall back to info so a typo in DOORBELL_LOG_LEVEL never
// silences the process.
func WithLevel(serviceName, level string) zerolog.Logger {
	log := New(serviceName)
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return log.Level(lvl)
}
