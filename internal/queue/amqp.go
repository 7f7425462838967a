package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// AMQP is a durable RabbitMQ-backed queue. Tasks are published persistent and
// acknowledged manually so an unfinished task survives a restart.
type AMQP struct {
	conn  *amqp.Connection
	pub   *amqp.Channel
	name  string
	log   *log.Logger
	pubMu sync.Mutex
}

func DialAMQP(url, name string, logger *log.Logger) (*AMQP, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare %s: %w", name, err)
	}
	return &AMQP{conn: conn, pub: ch, name: name, log: logger}, nil
}

func (q *AMQP) Publish(_ context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.pub.Publish(
		"", // default exchange
		q.name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    t.ID,
			Timestamp:    t.EnqueuedAt,
			Type:         string(t.Kind),
			Body:         body,
		},
	)
}

// Consume opens a dedicated channel. Undecodable messages are dropped.
func (q *AMQP) Consume(ctx context.Context) (<-chan Delivery, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp: consumer channel: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp: qos: %w", err)
	}
	msgs, err := ch.Consume(
		q.name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp: consume %s: %w", q.name, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var t Task
				if err := json.Unmarshal(msg.Body, &t); err != nil || t.Validate() != nil {
					q.log.Printf("graph queue status=drop message_id=%s reason=undecodable err=%v", msg.MessageId, err)
					_ = msg.Nack(false, false)
					continue
				}
				d := Delivery{
					Task: t,
					ack:  func() error { return msg.Ack(false) },
					nack: func(requeue bool) error { return msg.Nack(false, requeue) },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *AMQP) Close() error {
	if q == nil {
		return nil
	}
	if q.pub != nil {
		_ = q.pub.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
