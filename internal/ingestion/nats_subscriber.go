package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"rangevault/internal/observability"
	"rangevault/internal/oracle"
)

// PriceSubscriber consumes oracle price updates from NATS JetStream and
// pushes them into the cached feeds the vaults value against. Subjects
// follow range.prices.{asset}.
type PriceSubscriber struct {
	js        jetstream.JetStream
	feeds     map[string]*oracle.CachedFeed
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

func NewPriceSubscriber(js jetstream.JetStream, feeds map[string]*oracle.CachedFeed, metrics *observability.Metrics) *PriceSubscriber {
	return &PriceSubscriber{
		js:      js,
		feeds:   feeds,
		metrics: metrics,
	}
}

// Subscribe creates the durable price consumer. Messages for assets
// without a registered feed are acknowledged and dropped.
func (ps *PriceSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ps.js.CreateOrUpdateConsumer(ctx, "RANGE_PRICES", jetstream.ConsumerConfig{
		Durable:       "vault-prices",
		FilterSubject: "range.prices.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create price consumer: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		update, err := ParsePriceUpdate(msg.Data())
		if err != nil {
			log.Printf("WARN: bad price update on %s: %v", msg.Subject(), err)
			msg.Ack() // malformed messages never become valid on redelivery
			return
		}

		feed, ok := ps.feeds[update.Asset]
		if !ok {
			msg.Ack()
			return
		}

		feed.Update(update.Answer, update.Timestamp)
		if ps.metrics != nil {
			ps.metrics.OraclePriceUpdates.WithLabelValues(update.Asset).Inc()
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume prices: %w", err)
	}

	ps.consumers = append(ps.consumers, consumerContext)
	log.Println("INFO: subscribed to range.prices.> (consumer=vault-prices)")
	return nil
}

// Stop drains the consumers.
func (ps *PriceSubscriber) Stop() {
	for _, c := range ps.consumers {
		c.Stop()
	}
}

// EnsurePriceStream creates the inbound price stream.
func EnsurePriceStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "RANGE_PRICES",
		Subjects:  []string{"range.prices.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create price stream: %w", err)
	}
	log.Println("INFO: ensured price stream RANGE_PRICES")
	return nil
}
