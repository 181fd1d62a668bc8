package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type changeNotifier struct {
	db      *sqlx.DB
	channel string
}

func NewChangeNotifier(db *sqlx.DB, channel string) ports.ChangeNotifier {
	return &changeNotifier{
		db:      db,
		channel: channel,
	}
}

func (n *changeNotifier) Notify(ctx context.Context, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change: %w", err)
	}
	return nil
}

type changeFeed struct {
	connString string
	channel    string
	log        *zap.Logger
}

// NewChangeFeed listens on a Postgres channel. Each subscription owns its own
// listener connection.
func NewChangeFeed(connString, channel string, log *zap.Logger) ports.ChangeFeed {
	return &changeFeed{
		connString: connString,
		channel:    channel,
		log:        log,
	}
}

func (f *changeFeed) Subscribe(ctx context.Context) (<-chan domain.Change, error) {
	listener := pq.NewListener(f.connString, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			f.log.Warn("change feed disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			f.log.Info("change feed reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			f.log.Warn("change feed connection attempt failed", zap.Error(err))
		}
	})
	if err := listener.Listen(f.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", f.channel, err)
	}

	out := make(chan domain.Change, 16)
	go func() {
		defer close(out)
		defer listener.Close()

		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				change, ok := f.decode(n)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					f.log.Warn("change feed ping failed", zap.Error(err))
				}
			}
		}
	}()

	return out, nil
}

// decode turns a notification into a change. A nil notification follows a
// reconnect, when events may have been missed, and asks for a full reload.
func (f *changeFeed) decode(n *pq.Notification) (domain.Change, bool) {
	if n == nil {
		return domain.Change{}, true
	}
	var change domain.Change
	if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
		f.log.Warn("ignoring malformed change notification", zap.String("payload", n.Extra), zap.Error(err))
		return domain.Change{}, false
	}
	return change, true
}
