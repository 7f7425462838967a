package queue

import (
	"context"
	"sync"
)

// Memory is a bounded in-process queue. A full buffer rejects the task rather
// than blocking the publisher.
type Memory struct {
	mu     sync.RWMutex
	ch     chan Delivery
	closed bool
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 1
	}
	return &Memory{ch: make(chan Delivery, buffer)}
}

func (m *Memory) Publish(_ context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrQueueClosed
	}
	select {
	case m.ch <- NewDelivery(t, nil, m.requeue(t)):
		return nil
	default:
		return ErrQueueFull
	}
}

// requeue puts a nacked task back into the buffer under the same rules as
// Publish, so a full or closed queue reports the task as lost.
func (m *Memory) requeue(t Task) func(bool) error {
	return func(requeue bool) error {
		if !requeue {
			return nil
		}
		return m.Publish(context.Background(), t)
	}
}

func (m *Memory) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-m.ch:
				if !ok {
					return
				}
				select {
				case out <- d:
				case <-ctx.Done():
					_ = d.Nack(true)
					return
				}
			}
		}
	}()
	return out, nil
}

// Len reports tasks waiting in the buffer.
func (m *Memory) Len() int {
	return len(m.ch)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}
