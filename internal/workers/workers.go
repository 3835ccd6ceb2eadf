package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Triggerer starts webhook deliveries for a platform event.
type Triggerer interface {
	Trigger(ctx context.Context, orgID, eventType string, payload interface{}) (int, error)
}

// EventMessage is what producers publish on the event channel.
type EventMessage struct {
	OrganizationID string          `json:"organization_id"`
	Event          string          `json:"event"`
	Data           json.RawMessage `json:"data"`
}

var errInvalidMessage = errors.New("invalid event message")

// EventListener turns messages on a Redis pub/sub channel into webhook triggers.
type EventListener struct {
	client     *redis.Client
	channel    string
	dispatcher Triggerer
	logger     zerolog.Logger
}

func NewEventListener(client *redis.Client, channel string, dispatcher Triggerer, logger zerolog.Logger) *EventListener {
	return &EventListener{
		client:     client,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "event_listener").Str("channel", channel).Logger(),
	}
}

// Run blocks until ctx is cancelled or the subscription is lost.
func (l *EventListener) Run(ctx context.Context) error {
	pubsub := l.client.Subscribe(ctx, l.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so no message published after Run starts is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}

	l.logger.Info().Msg("listening for platform events")
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("event listener stopped")
			return nil

		case msg, ok := <-ch:
			if !ok {
				return errors.New("event subscription closed")
			}
			if err := l.handle(ctx, msg.Payload); err != nil {
				l.logger.Error().Err(err).Msg("failed to dispatch event")
			}
		}
	}
}

func (l *EventListener) handle(ctx context.Context, payload string) error {
	var msg EventMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("%w: %v", errInvalidMessage, err)
	}
	if msg.OrganizationID == "" || msg.Event == "" {
		return fmt.Errorf("%w: organization_id and event are required", errInvalidMessage)
	}

	var data interface{}
	if len(msg.Data) > 0 {
		data = msg.Data
	}

	started, err := l.dispatcher.Trigger(ctx, msg.OrganizationID, msg.Event, data)
	if err != nil {
		return fmt.Errorf("trigger %s for %s: %w", msg.Event, msg.OrganizationID, err)
	}

	l.logger.Debug().Str("org_id", msg.OrganizationID).Str("event", msg.Event).Int("webhooks", started).Msg("event received")
	return nil
}
