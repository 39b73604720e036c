//go:generate go run go.uber.org/mock/mockgen -source=broadcast.go -destination=mocks/mock_broadcast.go -package=mocks
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"freelance_hub/internal/domain"
	apperrors "freelance_hub/pkg/errors"
	"freelance_hub/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// BroadcastRepository - шина событий каналов поверх Redis Pub/Sub.
// Доставка best-effort: подписчик, которого нет в момент публикации, событие не получит.
type BroadcastRepository interface {
	Publish(ctx context.Context, envelope *domain.Envelope) error
	// Subscribe возвращается только после подтверждения подписки сервером
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

type Subscription interface {
	Channel() string
	Events() <-chan *domain.Envelope
	Close() error
}

type broadcastRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewBroadcastRepository(redis *redis.Client, log logger.Logger) BroadcastRepository {
	return &broadcastRepository{redis: redis, log: log}
}

func (r *broadcastRepository) Publish(ctx context.Context, envelope *domain.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := r.redis.Publish(ctx, envelope.Channel, payload).Err(); err != nil {
		r.log.Error("Failed to publish event", "error", err, "channel", envelope.Channel, "event", envelope.Event)
		return fmt.Errorf("%w: %v", apperrors.ErrPublishFailed, err)
	}

	return nil
}

func (r *broadcastRepository) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := r.redis.Subscribe(ctx, channel)

	// Ждем подтверждения, иначе первые публикации могут пройти мимо
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		channel: channel,
		pubsub:  pubsub,
		events:  make(chan *domain.Envelope, 64),
		done:    make(chan struct{}),
		log:     r.log,
	}
	go sub.forward()

	return sub, nil
}

type redisSubscription struct {
	channel   string
	pubsub    *redis.PubSub
	events    chan *domain.Envelope
	done      chan struct{}
	log       logger.Logger
	closeOnce sync.Once
}

func (s *redisSubscription) Channel() string {
	return s.channel
}

func (s *redisSubscription) Events() <-chan *domain.Envelope {
	return s.events
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// forward закрывает events, когда go-redis закрывает свой канал после Close
func (s *redisSubscription) forward() {
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		envelope := &domain.Envelope{}
		if err := json.Unmarshal([]byte(msg.Payload), envelope); err != nil {
			s.log.Warn("Dropping malformed event", "error", err, "channel", msg.Channel)
			continue
		}
		if envelope.Channel == "" {
			envelope.Channel = msg.Channel
		}
		select {
		case s.events <- envelope:
		case <-s.done:
			return
		}
	}
}
