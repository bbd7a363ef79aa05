// Package dbpurge periodically removes expired sessions from the database.
package dbpurge

import (
	"context"
	"io"
	"time"

	"github.com/coder/quartz"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/database/dbtime"
)

const delay = 10 * time.Minute

// New purges once immediately and then every ten minutes until Close.
func New(ctx context.Context, logger slog.Logger, db database.Store, clock quartz.Clock) io.Closer {
	ctx, cancel := context.WithCancel(dbauthz.AsSystem(ctx))

	purge := func() error {
		start := clock.Now()
		deleted, err := db.DeleteExpiredSessions(ctx, dbtime.Time(start))
		if err != nil {
			if ctx.Err() == nil {
				logger.Error(ctx, "purge expired sessions", slog.Error(err))
			}
			// Keep ticking; the next run may succeed.
			return nil
		}
		if deleted > 0 {
			logger.Info(ctx, "purged expired sessions",
				slog.F("count", deleted),
				slog.F("duration", clock.Since(start)),
			)
		}
		return nil
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = purge()
		_ = clock.TickerFunc(ctx, delay, purge, "dbpurge").Wait()
	}()
	return &instance{cancel: cancel, closed: closed}
}

type instance struct {
	cancel context.CancelFunc
	closed chan struct{}
}

func (i *instance) Close() error {
	i.cancel()
	<-i.closed
	return nil
}
