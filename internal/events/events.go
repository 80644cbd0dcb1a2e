// Package events publishes governance lifecycle events.
//
// Downstream consumers (dashboards, audit sinks) subscribe to verdict,
// transition and rollback events over NATS. Publishing is best-effort
// observability: the governor never blocks a decision on a publish.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/governd/internal/intent"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// Subjects for published events.
const (
	SubjectVerdicts    = "governd.verdicts"
	SubjectTransitions = "governd.tasks.transitions"
	SubjectRollbacks   = "governd.tasks.rollbacks"
)

// VerdictEvent reports one decision.
type VerdictEvent struct {
	IntentID string             `json:"intent_id"`
	AgentID  string             `json:"agent_id"`
	Kind     intent.VerdictKind `json:"kind"`
	Reason   string             `json:"reason,omitempty"`
	Code     intent.DenyCode    `json:"code,omitempty"`
	At       time.Time          `json:"at"`
}

// TransitionEvent reports one task state change.
type TransitionEvent struct {
	TaskID string     `json:"task_id"`
	From   task.State `json:"from"`
	To     task.State `json:"to"`
	At     time.Time  `json:"at"`
}

// RollbackEvent reports one finished (or aborted) rollback.
type RollbackEvent struct {
	TaskID   string    `json:"task_id"`
	FromStep string    `json:"from_step"`
	Aborted  bool      `json:"aborted"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	PublishVerdict(ctx context.Context, ev VerdictEvent) error
	PublishTransition(ctx context.Context, ev TransitionEvent) error
	PublishRollback(ctx context.Context, ev RollbackEvent) error
	Close() error
}

// NopPublisher drops every event. Used in tests and when eventing is
// disabled.
type NopPublisher struct{}

func (NopPublisher) PublishVerdict(context.Context, VerdictEvent) error       { return nil }
func (NopPublisher) PublishTransition(context.Context, TransitionEvent) error { return nil }
func (NopPublisher) PublishRollback(context.Context, RollbackEvent) error     { return nil }
func (NopPublisher) Close() error                                             { return nil }

// NATSPublisher publishes events to a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect dials NATS and returns a publisher. Connection retries follow
// the daemon's startup conventions.
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, logger: logger}
}

func (p *NATSPublisher) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) PublishVerdict(_ context.Context, ev VerdictEvent) error {
	return p.publish(SubjectVerdicts, ev)
}

func (p *NATSPublisher) PublishTransition(_ context.Context, ev TransitionEvent) error {
	return p.publish(SubjectTransitions, ev)
}

func (p *NATSPublisher) PublishRollback(_ context.Context, ev RollbackEvent) error {
	return p.publish(SubjectRollbacks, ev)
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	p.nc.Close()
	return nil
}
