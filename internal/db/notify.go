package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const listenRetryDelay = 2 * time.Second

// Changes listens on ChannelTagsChanged over a dedicated connection. Bursts of
// notifications collapse into one pending signal. The channel is closed when ctx
// is done. A dropped connection is re-established after a short delay.
func (db *DB) Changes(ctx context.Context) (<-chan struct{}, error) {
	conn, err := db.listen(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			err := db.wait(ctx, conn, out)
			// the session still holds LISTEN state, so it never goes back to the pool
			raw := conn.Hijack()
			_ = raw.Close(context.Background())
			if ctx.Err() != nil {
				return
			}
			db.log.Warn().Err(err).Msg("tag change listener dropped, reconnecting")

			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(listenRetryDelay):
				}
				conn, err = db.listen(ctx)
				if err == nil {
					break
				}
				db.log.Warn().Err(err).Msg("failed to re-listen for tag changes")
			}
			// missed notifications while disconnected
			signal(out)
		}
	}()
	return out, nil
}

func (db *DB) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChannelTagsChanged); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChannelTagsChanged, err)
	}
	return conn, nil
}

func (db *DB) wait(ctx context.Context, conn *pgxpool.Conn, out chan<- struct{}) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("failed waiting for notification: %w", err)
		}
		db.log.Debug().Str("channel", n.Channel).Str("payload", n.Payload).Msg("tag change notification")
		signal(out)
	}
}

func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
