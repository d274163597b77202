package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/pointride/dispatch/internal/domain/models"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/metrics"
	"github.com/pointride/dispatch/pkg/rabbit"
)

const (
	EventsExchange = "dispatch_events"

	publishRetries    = 5
	publishRetryDelay = time.Second
)

// EventBroker mirrors every admin-facing dispatch event onto a topic
// exchange so ops tooling outside the process can consume them.
// Routing key is "ride.<event_type>". Delivery is at-least-once.
type EventBroker struct {
	client   *rabbit.RabbitMQ
	exchange string

	l logger.Logger
}

func NewEventBroker(ctx context.Context, client *rabbit.RabbitMQ, log logger.Logger) (*EventBroker, error) {
	b := &EventBroker{
		client:   client,
		exchange: EventsExchange,
		l:        log,
	}

	if err := client.Channel.ExchangeDeclare(
		b.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return b, nil
}

// PublishEvent publishes one dispatch event. Connection is re-established if
// needed; the publish itself is retried with a fixed delay.
func (b *EventBroker) PublishEvent(ctx context.Context, event models.BusEvent) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_event")

	if err := b.client.EnsureConnection(ctx); err != nil {
		b.l.Error(ctx, "ensure connection failed", err)
		metrics.RecordRabbitMQPublish(b.exchange, err)
		return wrap.Error(ctx, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to marshal event: %w", err))
	}

	key := fmt.Sprintf("ride.%s", event.Type)

	err = retry(publishRetries, publishRetryDelay, func() error {
		return b.client.Channel.PublishWithContext(
			ctx,
			b.exchange, // exchange
			key,        // routing key
			false,      // mandatory
			false,      // immediate
			amqp091.Publishing{
				ContentType: "application/json",
				MessageId:   event.ID.String(),
				Body:        body,
				Timestamp:   event.Timestamp,
			},
		)
	})

	metrics.RecordRabbitMQPublish(b.exchange, err)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to publish event: %w", err))
	}

	return nil
}

// retry runs fn up to attempts times with a fixed delay between failures.
func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
