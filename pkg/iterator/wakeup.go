package iterator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Waker is an iterator that can be asked to run its next pass now. *Iterator[T] satisfies it.
type Waker interface {
	Name() string
	Wakeup()
}

// WakeupHub routes wakeup requests to local iterators by name. Several iterators may share a
// name, for example across entity fields; all of them are woken.
type WakeupHub struct {
	mu     sync.RWMutex
	wakers map[string][]Waker
	logger *slog.Logger
}

// NewWakeupHub creates an empty hub.
func NewWakeupHub(log *slog.Logger) *WakeupHub {
	if log == nil {
		log = slog.Default()
	}
	return &WakeupHub{
		wakers: make(map[string][]Waker),
		logger: log.With(logger.Component("wakeup")),
	}
}

// Register adds w and returns a function removing it again.
func (h *WakeupHub) Register(w Waker) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakers[w.Name()] = append(h.wakers[w.Name()], w)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		name := w.Name()
		h.wakers[name] = slices.DeleteFunc(h.wakers[name], func(x Waker) bool { return x == w })
		if len(h.wakers[name]) == 0 {
			delete(h.wakers, name)
		}
	}
}

// Dispatch wakes every iterator registered under name and returns how many were woken.
func (h *WakeupHub) Dispatch(name string) int {
	h.mu.RLock()
	wakers := slices.Clone(h.wakers[name])
	h.mu.RUnlock()

	for _, w := range wakers {
		w.Wakeup()
	}
	if len(wakers) == 0 {
		h.logger.Debug("wakeup for unknown iterator", logger.Iterator(name))
	}
	return len(wakers)
}

// Publish dispatches locally. It lets the hub stand in for a broadcast transport in a
// single-process deployment.
func (h *WakeupHub) Publish(_ context.Context, name string) error {
	h.Dispatch(name)
	return nil
}

// WakeupPublisher asks every process to wake the named iterator.
type WakeupPublisher interface {
	Publish(ctx context.Context, name string) error
}

// RedisWakeups fans wakeups out over a Redis pub/sub channel.
type RedisWakeups struct {
	client  redis.UniversalClient
	channel string
	hub     *WakeupHub
}

// NewRedisWakeups creates a publisher and listener on channel. hub may be nil for publish-only use.
func NewRedisWakeups(client redis.UniversalClient, channel string, hub *WakeupHub) (*RedisWakeups, error) {
	if client == nil || channel == "" {
		return nil, errors.New("redis wakeups need a client and a channel")
	}
	return &RedisWakeups{client: client, channel: channel, hub: hub}, nil
}

func (r *RedisWakeups) Publish(ctx context.Context, name string) error {
	if err := r.client.Publish(ctx, r.channel, name).Err(); err != nil {
		return fmt.Errorf("publish wakeup: %w", err)
	}
	return nil
}

// Listen dispatches received wakeups to the hub until ctx is cancelled.
func (r *RedisWakeups) Listen(ctx context.Context) error {
	if r.hub == nil {
		return errors.New("redis wakeups: no hub to dispatch to")
	}
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Receive confirms the subscription before messages are read.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %q: %w", r.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.hub.Dispatch(msg.Payload)
		}
	}
}

// NATSWakeups fans wakeups out over a NATS subject.
type NATSWakeups struct {
	conn    *nats.Conn
	subject string
	hub     *WakeupHub
}

// NewNATSWakeups creates a publisher and listener on subject. hub may be nil for publish-only use.
func NewNATSWakeups(conn *nats.Conn, subject string, hub *WakeupHub) (*NATSWakeups, error) {
	if conn == nil || subject == "" {
		return nil, errors.New("nats wakeups need a connection and a subject")
	}
	return &NATSWakeups{conn: conn, subject: subject, hub: hub}, nil
}

func (n *NATSWakeups) Publish(_ context.Context, name string) error {
	if err := n.conn.Publish(n.subject, []byte(name)); err != nil {
		return fmt.Errorf("publish wakeup: %w", err)
	}
	return nil
}

// Listen dispatches received wakeups to the hub until ctx is cancelled.
func (n *NATSWakeups) Listen(ctx context.Context) error {
	if n.hub == nil {
		return errors.New("nats wakeups: no hub to dispatch to")
	}
	sub, err := n.conn.Subscribe(n.subject, func(m *nats.Msg) {
		n.hub.Dispatch(string(m.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", n.subject, err)
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}
