package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tommyfx/storefront/pkg/datastore"
	"github.com/tommyfx/storefront/pkg/logger"
	"github.com/tommyfx/storefront/pkg/metrics"
)

// RedisBroker fans changes out across processes over Redis pub/sub. Each
// change is published as JSON on "<prefix>:<table>"; every process holds
// one pattern subscription and delivers to its local subscribers.
type RedisBroker struct {
	client *redis.Client
	prefix string
	local  *MemoryBroker
	ps     *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// Dial connects to Redis and verifies the connection with a ping.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("realtime: redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisBroker subscribes to prefix:* and starts the receive loop. The
// loop runs until Close.
func NewRedisBroker(ctx context.Context, client *redis.Client, prefix string) (*RedisBroker, error) {
	ps := client.PSubscribe(ctx, prefix+":*")
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("realtime: psubscribe %s:*: %w", prefix, err)
	}

	b := &RedisBroker{
		client: client,
		prefix: prefix,
		local:  NewMemoryBroker(),
		ps:     ps,
		done:   make(chan struct{}),
	}
	go b.receive(ps.Channel())
	return b, nil
}

func (b *RedisBroker) channel(table string) string { return b.prefix + ":" + table }

func (b *RedisBroker) Publish(ctx context.Context, c datastore.Change) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	payload, err := encodeChange(c)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(c.Table), payload).Err(); err != nil {
		return fmt.Errorf("realtime: redis publish: %w", err)
	}
	metrics.ChangesPublished.WithLabelValues(c.Table, string(c.Kind)).Inc()
	return nil
}

func (b *RedisBroker) Subscribe(table string, f Filter, h Handler) (*Subscription, error) {
	return b.local.Subscribe(table, f, h)
}

func (b *RedisBroker) receive(ch <-chan *redis.Message) {
	defer close(b.done)

	for msg := range ch {
		table := strings.TrimPrefix(msg.Channel, b.prefix+":")
		c, err := decodeChange([]byte(msg.Payload))
		if err != nil {
			logger.Warn("realtime: dropping undecodable change", "channel", msg.Channel, "error", err)
			continue
		}
		if c.Table == "" {
			c.Table = table
		}
		b.local.dispatch(c)
	}
}

// Close ends the pattern subscription and drops local subscribers. The
// Redis client itself belongs to the caller.
func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		err = b.ps.Close()
		<-b.done
		_ = b.local.Close()
	})
	return err
}

func encodeChange(c datastore.Change) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode change: %w", err)
	}
	return payload, nil
}

func decodeChange(data []byte) (datastore.Change, error) {
	var c datastore.Change
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("realtime: decode change: %w", err)
	}
	switch c.Kind {
	case datastore.KindInsert, datastore.KindUpdate, datastore.KindDelete:
	default:
		return c, fmt.Errorf("realtime: unknown change kind %q", c.Kind)
	}
	return c, nil
}
