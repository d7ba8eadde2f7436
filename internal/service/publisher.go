// Package service publishes hall-pass domain events to RabbitMQ.  Publish
// errors are logged and never interrupt the request or sweep that caused
// them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/premierpass/premier-pass/internal/model"
	q "github.com/premierpass/premier-pass/internal/queue"
)

const (
	// PublishTimeout bounds one dial or publish.
	PublishTimeout = 5 * time.Second
	// DefaultBuffer is how many events may wait for the broker before new
	// ones are dropped.
	DefaultBuffer = 256
	// redialBackoff is how long the worker waits after a failed dial
	// before trying the broker again.  Events arriving meanwhile fail fast.
	redialBackoff = 10 * time.Second
)

var errBrokerDown = errors.New("broker unavailable, waiting to redial")

type outgoing struct {
	queue string
	body  []byte
}

// Publisher sends pass and attendance events to the broker at URL.  It
// satisfies pass.Notifier.  Events go into a bounded buffer drained by a
// single worker over one long-lived connection, so they reach the broker
// in the order they happened and a slow broker never holds an admission
// or sweep lock.  When the buffer is full the event is logged and dropped.
type Publisher struct {
	URL string

	now     func() time.Time
	publish func(ctx context.Context, queue string, body []byte) error

	mu      sync.RWMutex
	closed  bool
	events  chan outgoing
	done    chan struct{}
	dropped atomic.Int64

	// owned by the worker
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	retryAt  time.Time
}

// NewPublisher starts a Publisher for url with a DefaultBuffer queue.
func NewPublisher(url string) *Publisher {
	p := newPublisher(url, DefaultBuffer, nil)
	p.publish = p.publishOnChannel
	go p.run()
	return p
}

// newPublisher builds a Publisher without starting its worker.
func newPublisher(url string, buffer int, publish func(context.Context, string, []byte) error) *Publisher {
	if buffer < 1 {
		buffer = 1
	}
	return &Publisher{
		URL:     url,
		now:     func() time.Time { return time.Now().UTC() },
		publish: publish,
		events:  make(chan outgoing, buffer),
		done:    make(chan struct{}),
	}
}

// PassChanged publishes p to the pass events queue.
func (p *Publisher) PassChanged(_ context.Context, pass model.Pass) {
	p.send(q.PassEventsQueue, q.NewPassEvent(pass, p.now()))
}

// AttendanceRecorded publishes ev to the attendance events queue.
func (p *Publisher) AttendanceRecorded(_ context.Context, ev model.AttendanceEvent) {
	p.send(q.AttendanceEventsQueue, q.NewAttendanceEvent(ev))
}

// Dropped reports how many events were discarded because the buffer was
// full or the publisher was closed.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting events, waits for the buffered ones to be sent
// and closes the broker connection.  It is safe to call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) send(queue string, event any) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.events <- outgoing{queue: queue, body: body}:
	default:
		n := p.dropped.Add(1)
		log.Printf("rabbitmq: event buffer full, dropped %s event (%d dropped so far)", queue, n)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.disconnect()
	for m := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		err := p.publish(ctx, m.queue, m.body)
		cancel()
		if err != nil {
			log.Printf("rabbitmq: publish to %s failed: %v", m.queue, err)
		}
	}
}

// publishOnChannel publishes over the worker's channel, reconnecting once
// when the channel has gone away.
func (p *Publisher) publishOnChannel(ctx context.Context, queue string, body []byte) error {
	err := p.publishOnce(ctx, queue, body)
	if err == nil || errors.Is(err, errBrokerDown) {
		return err
	}
	p.disconnect()
	return p.publishOnce(ctx, queue, body)
}

func (p *Publisher) publishOnce(ctx context.Context, queue string, body []byte) error {
	if err := p.connect(); err != nil {
		return err
	}
	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[queue] = true
	}
	return p.ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    p.now(),
			Body:         body,
		})
}

func (p *Publisher) connect() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.disconnect()
	if time.Now().Before(p.retryAt) {
		return errBrokerDown
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(PublishTimeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(redialBackoff)
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAt = time.Now().Add(redialBackoff)
		return err
	}
	p.conn, p.ch = conn, ch
	p.declared = make(map[string]bool, 2)
	return nil
}

func (p *Publisher) disconnect() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
