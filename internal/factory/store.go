// Package factory assembles driver-specific dependencies from configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/config"
	storepkg "github.com/dwarpal-ai/dwarpal/internal/store"
	storepg "github.com/dwarpal-ai/dwarpal/internal/store/postgres"
	storelite "github.com/dwarpal-ai/dwarpal/internal/store/sqlite"
)

// ErrStoreCorrupt marks a database that failed its startup integrity check.
// The service maps it to a dedicated exit code so operators can tell a
// damaged file from ordinary configuration trouble.
var ErrStoreCorrupt = errors.New("store corruption detected")

const bootstrapTimeout = 30 * time.Second

// NewStore builds the store for cfg.DBDriver. SQLite databases get an
// integrity probe before the schema is touched; Postgres gets an async
// reachability check so startup is not blocked on a slow network.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := storelite.Open(cfg.DBDSN)
		if err != nil {
			// A damaged file can fail before the integrity probe runs, when
			// the connection pragmas first touch it.
			if strings.Contains(err.Error(), "not a database") {
				return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
			}
			return nil, err
		}
		if err := storelite.CheckIntegrity(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		if err := storelite.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		log.Info().Str("driver", cfg.DBDriver).Str("dsn", cfg.DBDSN).Msg("Store opened")
		return storelite.NewWithDB(db), nil

	case "postgres":
		db, err := storepg.Open(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		if err := storepg.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		go func() {
			bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()
			if err := storepg.Bootstrap(bctx, cfg.DBDSN); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()
		log.Info().Str("driver", cfg.DBDriver).Msg("Store opened")
		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
