package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer appends one line per booking event to a log file.
type Consumer struct {
	url     string
	logFile string
	log     logrus.FieldLogger
}

// NewConsumer returns a Consumer reading both booking queues.
func NewConsumer(url, logFile string, log logrus.FieldLogger) *Consumer {
	return &Consumer{url: url, logFile: logFile, log: log.WithField("component", "booking-consumer")}
}

// Run connects to RabbitMQ, declares the booking queues and consumes
// until ctx is cancelled.  It reconnects with exponential backoff and
// rejects messages it cannot handle so the loop keeps running.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}

	queues := []string{QueueBookingConfirmed, QueueBookingCancelled}
	merged := make(chan amqp.Delivery)
	done := make(chan struct{})
	defer close(done)
	for _, q := range queues {
		if err := declare(ch, q); err != nil {
			return err
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return errors.Wrapf(err, "consume %s", q)
		}
		go func(in <-chan amqp.Delivery) {
			for d := range in {
				select {
				case merged <- d:
				case <-done:
					return
				}
			}
		}(msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("channel closed")
			}
			return amqpErr
		case d := <-merged:
			if err := c.Handle(d.Body); err != nil {
				c.log.WithError(err).Warn("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one event body and appends it to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if err := os.MkdirAll(filepath.Dir(c.logFile), 0o755); err != nil {
		return errors.Wrap(err, "mkdir logs")
	}
	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return errors.Wrap(err, "write log")
	}
	return nil
}

// FormatLine renders ev as a single human friendly log line.
func FormatLine(ev BookingEvent) string {
	seats := make([]string, len(ev.ShowSeatIDs))
	for i, id := range ev.ShowSeatIDs {
		seats[i] = fmt.Sprint(id)
	}
	line := fmt.Sprintf("[%s] %s | booking_id=%d | user_id=%d | show_id=%d | status=%s | total=%d cents | seats=[%s]",
		ev.OccurredAt, ev.Type, ev.BookingID, ev.UserID, ev.ShowID, ev.Status, ev.TotalAmountCents, strings.Join(seats, ","))
	if ev.TransactionID != "" {
		line += " | transaction_id=" + ev.TransactionID
	}
	if ev.Reason != "" {
		line += " | reason=" + ev.Reason
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
