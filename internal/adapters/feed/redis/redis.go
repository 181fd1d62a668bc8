// Package redis carries change events over Redis pub/sub, for deployments
// that run several API instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classvote/api/internal/config"
	"github.com/classvote/api/internal/core/domain"
	"github.com/classvote/api/internal/core/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient returns a connected client.
func NewClient(cfg config.FeedConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

type Feed struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

var (
	_ ports.ChangeNotifier = (*Feed)(nil)
	_ ports.ChangeFeed     = (*Feed)(nil)
)

func NewFeed(client *redis.Client, channel string, log *zap.Logger) *Feed {
	return &Feed{client: client, channel: channel, log: log}
}

func (f *Feed) Notify(ctx context.Context, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed so no event published
// after it returns is missed. Events published while the connection was down
// are lost, so every later subscribe confirmation yields a full reload.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Change, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}

	// Receive does not watch ctx; closing the subscription unblocks it.
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	out := make(chan domain.Change, 16)
	go func() {
		defer close(out)

		for {
			msg, err := sub.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.log.Warn("change feed receive failed", zap.Error(err))
				select {
				case <-time.After(reconnectDelay):
					continue
				case <-ctx.Done():
					return
				}
			}

			change, ok := f.decode(msg)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const reconnectDelay = 500 * time.Millisecond

func (f *Feed) decode(msg interface{}) (domain.Change, bool) {
	switch m := msg.(type) {
	case *redis.Subscription:
		if m.Kind != "subscribe" {
			return domain.Change{}, false
		}
		f.log.Info("change feed resubscribed")
		return domain.Change{}, true
	case *redis.Message:
		var change domain.Change
		if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
			f.log.Warn("ignoring malformed change message", zap.String("payload", m.Payload), zap.Error(err))
			return domain.Change{}, false
		}
		return change, true
	default:
		return domain.Change{}, false
	}
}
