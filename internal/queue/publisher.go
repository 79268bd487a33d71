package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends booking events to their durable queue on the default
// exchange.  Each publish dials its own connection so a broker outage
// never leaves a stale channel behind.
type Publisher struct {
	url string
	log logrus.FieldLogger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{url: url, log: log.WithField("component", "event-publisher")}
}

// Publish routes ev to the queue named by ev.Type.  Errors are logged
// and returned so callers can decide to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	log := p.log.WithFields(logrus.Fields{"queue": ev.Type, "booking_id": ev.BookingID})

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("rabbitmq dial failed")
		return errors.Wrap(err, "dial broker")
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq channel open failed")
		return errors.Wrap(err, "open channel")
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, ev.Type); err != nil {
		log.WithError(err).Warn("rabbitmq queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq publish failed")
		return errors.Wrap(err, "publish event")
	}
	log.WithField("message_id", pub.MessageId).Debug("event published")
	return nil
}

// declare ensures a durable queue exists.  It is idempotent.
func declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return errors.Wrapf(err, "declare queue %s", name)
	}
	return nil
}
