package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultLogPath is where StartEventConsumer appends consumed events.
var DefaultLogPath = filepath.Join("logs", "hallpass.log")

// StartEventConsumer connects to the broker at url, declares both event
// queues and appends every message to logPath as a single line.  It runs
// a reconnect loop with backoff and returns only when ctx is cancelled.
// Malformed messages are rejected without requeue so the loop keeps going.
func StartEventConsumer(ctx context.Context, url, logPath string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-consumer: set QoS failed: %v", err)
	}

	passes, err := declareAndConsume(ch, PassEventsQueue)
	if err != nil {
		return err
	}
	attendance, err := declareAndConsume(ch, AttendanceEventsQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-passes:
			queue = PassEventsQueue
		case d, ok = <-attendance:
			queue = AttendanceEventsQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := appendLine(logPath, queue, d.Body); err != nil {
			log.Printf("event-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func declareAndConsume(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", name, err)
	}
	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", name, err)
	}
	return msgs, nil
}

func appendLine(logPath, queue string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return FormatMessage(f, queue, body)
}

// FormatMessage writes the one-line log form of a message body taken from
// queue.
func FormatMessage(w io.Writer, queue string, body []byte) error {
	var line string
	switch queue {
	case PassEventsQueue:
		var ev PassEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Pass %s | pass_id=%d | student_id=%d | type=%q | start=%s | ended=%s\n",
			ev.OccurredAt, ev.Status, ev.PassID, ev.StudentID, ev.Type, dash(ev.StartTime), dash(ev.EndedAt))
	case AttendanceEventsQueue:
		var ev AttendanceEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Attendance %s | event_id=%d | student_id=%d | code=%s\n",
			ev.Timestamp, ev.Action, ev.EventID, ev.StudentID, dash(ev.Code))
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
