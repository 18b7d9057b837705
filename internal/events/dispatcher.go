// Package events publishes job change events after relational writes succeed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// Topics for job change events.
const (
	TopicJobCreate = "job.create"
	TopicJobUpdate = "job.update"
	TopicJobDelete = "job.delete"
)

const mimeTypeJSON = "application/json"

// Message is the envelope written to the event channel.
type Message struct {
	Topic      string          `json:"topic"`
	Originator string          `json:"originator"`
	Timestamp  time.Time       `json:"timestamp"`
	MimeType   string          `json:"mime-type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
}

// UpdatePayload carries the new state and the snapshot taken before the update.
type UpdatePayload struct {
	Job      *models.Job `json:"job"`
	OldValue *models.Job `json:"oldValue"`
}

// Sink delivers one message to the event channel.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Options configures a Dispatcher.
type Options struct {
	Workers    int
	QueueSize  int
	Originator string
}

// Dispatcher delivers messages to a Sink on background workers. Messages with the
// same key always land on the same worker, so their order is kept.
type Dispatcher struct {
	sink       Sink
	originator string
	logger     *slog.Logger
	queues     []chan Message

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	failures atomic.Int64
}

// NewDispatcher starts the worker goroutines. Call Close to stop them.
func NewDispatcher(sink Sink, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}

	d := &Dispatcher{
		sink:       sink,
		originator: opts.Originator,
		logger:     logger,
		queues:     make([]chan Message, opts.Workers),
	}
	for i := range d.queues {
		d.queues[i] = make(chan Message, opts.QueueSize)
		d.wg.Add(1)
		go d.run(d.queues[i])
	}
	return d
}

// Publish enqueues payload for delivery and returns immediately. The payload is
// serialized before Publish returns, so later mutations are not observed.
// Failures never reach the caller: they are logged and counted.
func (d *Dispatcher) Publish(topic string, key uuid.UUID, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.fail("encode event payload", topic, key, err)
		return
	}

	msg := Message{
		Topic:      topic,
		Originator: d.originator,
		Timestamp:  time.Now().UTC(),
		MimeType:   mimeTypeJSON,
		Key:        key.String(),
		Payload:    body,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.fail("dispatcher closed", topic, key, nil)
		return
	}

	select {
	case d.queues[d.shard(key)] <- msg:
	default:
		d.fail("event queue full", topic, key, nil)
	}
}

// Failures returns how many events could not be delivered.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining events: %w", ctx.Err())
	}
}

func (d *Dispatcher) shard(key uuid.UUID) int {
	h := fnv.New32a()
	h.Write(key[:])
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) run(queue <-chan Message) {
	defer d.wg.Done()
	for msg := range queue {
		d.deliver(msg)
	}
}

// deliver runs outside any request scope.
func (d *Dispatcher) deliver(msg Message) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			d.logger.Error("panic delivering event", "error", r, "topic", msg.Topic, "job_id", msg.Key)
		}
	}()

	if err := d.sink.Send(ctx, msg); err != nil {
		d.failures.Add(1)
		d.logger.Error("failed to publish event", "error", err, "topic", msg.Topic, "job_id", msg.Key)
	}
}

func (d *Dispatcher) fail(reason, topic string, key uuid.UUID, err error) {
	d.failures.Add(1)
	attrs := []any{"topic", topic, "job_id", key}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	d.logger.Error(reason, attrs...)
}
