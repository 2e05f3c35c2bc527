// Package notify publishes generation outcomes to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	connectTimeout = 5 * time.Second
	flushTimeout   = 2 * time.Second
)

// Event is the message published after every generation attempt.
type Event struct {
	RunID       string    `json:"run_id"`
	Crate       string    `json:"crate"`
	Version     string    `json:"version"`
	Destination string    `json:"destination"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Error       string    `json:"error,omitempty"`
	Files       []string  `json:"files,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// conn is the subset of *nats.Conn used here.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher sends events on one subject.
type Publisher struct {
	conn    conn
	subject string
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pacgen"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Debug("NATS publisher connected", slog.String("url", url), slog.String("subject", subject))
	return &Publisher{conn: nc, subject: subject}, nil
}

// Publish sends event and waits for the server to acknowledge the flush.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	timeout := flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
