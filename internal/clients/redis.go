package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"farm_telemetry/config"
	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/models"

	"github.com/redis/go-redis/v9"
)

// Feed publishes and subscribes reading changes over Redis pub/sub.
type Feed struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

func NewFeed(conf config.RedisConfig, log *logger.Logger) (*Feed, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.URL,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to connect to redis at %s: %w", conf.URL, err)
	}
	return &Feed{rdb: rdb, channel: conf.Channel, log: log}, nil
}

func (f *Feed) Publish(ctx context.Context, ev models.FeedEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel, b).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

type subscription struct {
	ps   *redis.PubSub
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Close unsubscribes and waits for the delivery goroutine to exit.
func (s *subscription) Close() error {
	s.once.Do(func() { close(s.stop) })
	err := s.ps.Close()
	<-s.done
	return err
}

// Subscribe confirms the subscription with the server, then calls handle for
// every event in delivery order from a single goroutine.
func (f *Feed) Subscribe(ctx context.Context, handle func(models.FeedEvent)) (io.Closer, error) {
	ps := f.rdb.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	sub := &subscription{ps: ps, stop: make(chan struct{}), done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-sub.stop:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.FeedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.log.Warnw("feed_event_malformed", "err", err)
					continue
				}
				handle(ev)
			}
		}
	}()
	return sub, nil
}

func (f *Feed) Close() error { return f.rdb.Close() }
