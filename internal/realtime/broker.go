// Package realtime fans per-user events out to open client streams.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/penpals/internal/config"
)

const (
	EventNotification = "notification"
	EventMessageSent  = "message_sent"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Subscription delivers encoded events for one user until closed.
type Subscription interface {
	Frames() <-chan []byte
	Close() error
}

type Broker interface {
	Publish(ctx context.Context, userID uuid.UUID, event Event) error
	Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error)
}

// New builds the broker selected by cfg.Provider.
func New(cfg config.RealtimeConfig, rdb *redis.Client) (Broker, error) {
	switch cfg.Provider {
	case "redis", "":
		if rdb == nil {
			return nil, fmt.Errorf("redis realtime provider requires a redis client")
		}
		return NewRedisBroker(rdb), nil
	case "local":
		return NewLocalBroker(), nil
	default:
		return nil, fmt.Errorf("unknown realtime provider %q", cfg.Provider)
	}
}

func channelName(userID uuid.UUID) string {
	return "events:" + userID.String()
}

// RedisBroker uses Redis pub/sub so every server instance sees every event.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, userID uuid.UUID, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(userID), payload).Err(); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channelName(userID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to events: %w", err)
	}

	sub := &redisSubscription{
		ps:      ps,
		frames:  make(chan []byte, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go sub.forward(ps.Channel())
	return sub, nil
}

type redisSubscription struct {
	ps      *redis.PubSub
	frames  chan []byte
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// forward copies payloads onto frames until the pub/sub channel ends or the
// subscription is closed, whichever comes first.
func (s *redisSubscription) forward(msgs <-chan *redis.Message) {
	defer close(s.stopped)
	defer close(s.frames)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.frames <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Frames() <-chan []byte { return s.frames }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// LocalBroker fans events out in process. Events never leave the instance,
// so it only suits single-instance deployments (REALTIME_PROVIDER=local).
type LocalBroker struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*localSubscription]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[uuid.UUID]map[*localSubscription]struct{})}
}

func (b *LocalBroker) Publish(ctx context.Context, userID uuid.UUID, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[userID] {
		select {
		case sub.frames <- payload:
		default:
			// Slow reader; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	sub := &localSubscription{broker: b, userID: userID, frames: make(chan []byte, 16)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*localSubscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many streams are open for userID.
func (b *LocalBroker) Subscribers(userID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

type localSubscription struct {
	broker *LocalBroker
	userID uuid.UUID
	frames chan []byte
	once   sync.Once
}

func (s *localSubscription) Frames() <-chan []byte { return s.frames }

func (s *localSubscription) Close() error {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[s.userID], s)
		if len(b.subs[s.userID]) == 0 {
			delete(b.subs, s.userID)
		}
		close(s.frames)
	})
	return nil
}
