package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/circuitbreaker"
	"github.com/soulspace/soulspace-hub/pkg/logger"
	"github.com/soulspace/soulspace-hub/pkg/retry"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "soulspace.events."

// Subject returns the NATS subject for an event type.
func Subject(eventType shared.EventType) string {
	return SubjectPrefix + string(eventType)
}

// Publisher is the subset of *nats.Conn used by the forwarder.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// ConnectNATS dials the broker with reconnect handling logged through log.
func ConnectNATS(url, name string, log *logger.Logger) (*nats.Conn, error) {
	log = log.With(logger.Component("nats"))
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logger.Err(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NATS FORWARDER
// ══════════════════════════════════════════════════════════════════════════════

// NATSForwarder republishes bus events to NATS as JSON envelopes.
// Publishes go through a circuit breaker and a retrier; when the breaker
// is open events are dropped and logged rather than blocking the bus.
type NATSForwarder struct {
	pub     Publisher
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
	timeout time.Duration
	logger  *logger.Logger
}

// NATSForwarderOption configures a NATSForwarder.
type NATSForwarderOption func(*NATSForwarder)

// WithBreaker replaces the default broker circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) NATSForwarderOption {
	return func(f *NATSForwarder) { f.breaker = cb }
}

// WithRetrier replaces the default broker retrier.
func WithRetrier(r *retry.Retrier) NATSForwarderOption {
	return func(f *NATSForwarder) { f.retrier = r }
}

// WithPublishTimeout bounds a single forwarded event including retries.
func WithPublishTimeout(d time.Duration) NATSForwarderOption {
	return func(f *NATSForwarder) { f.timeout = d }
}

// NewNATSForwarder creates a forwarder publishing through pub.
func NewNATSForwarder(pub Publisher, log *logger.Logger, opts ...NATSForwarderOption) *NATSForwarder {
	if log == nil {
		log = logger.Default()
	}
	f := &NATSForwarder{
		pub:     pub,
		timeout: 10 * time.Second,
		logger:  log.With(logger.Component("nats-forwarder")),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.breaker == nil {
		f.breaker = circuitbreaker.BrokerBreaker(nil)
	}
	if f.retrier == nil {
		f.retrier = retry.BrokerRetrier()
	}
	// an open breaker will not close within one retry budget
	f.retrier = f.retrier.With(retry.WithRetryIf(func(err error) bool {
		return !circuitbreaker.IsRejected(err)
	}))
	return f
}

// Attach subscribes the forwarder to every event on the bus.
func (f *NATSForwarder) Attach(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(f.Handle)
}

// Handle forwards one event. It satisfies shared.EventHandler.
func (f *NATSForwarder) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	return f.Forward(ctx, event)
}

// Forward serializes event and publishes it to its subject.
func (f *NATSForwarder) Forward(ctx context.Context, event shared.Event) error {
	env, err := shared.NewEventEnvelope(event)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := Subject(event.EventType())
	err = f.retrier.Do(ctx, func(ctx context.Context) error {
		return f.breaker.Execute(ctx, func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return f.pub.Publish(subject, data)
		})
	})
	if err != nil {
		if circuitbreaker.IsRejected(err) {
			f.logger.Warn("event dropped, broker circuit open",
				logger.String("subject", subject),
				logger.String("event_id", env.ID),
			)
		}
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	f.logger.Debug("event forwarded",
		logger.String("subject", subject),
		logger.String("event_id", env.ID),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW-UP ALERTS
// ══════════════════════════════════════════════════════════════════════════════

// FollowUpSubject receives assessments that need a human follow-up.
const FollowUpSubject = "soulspace.alerts.follow_up"

// FollowUpAlert is the payload published on FollowUpSubject.
type FollowUpAlert struct {
	UserID   string    `json:"user_id"`
	Kind     string    `json:"kind"`
	Severity string    `json:"severity"`
	RaisedAt time.Time `json:"raised_at"`
}

// NotifyFollowUp publishes an alert for the support team.
// It goes through the same breaker and retrier as forwarded events.
func (f *NATSForwarder) NotifyFollowUp(userID, kind, severity string) error {
	data, err := json.Marshal(FollowUpAlert{
		UserID:   userID,
		Kind:     kind,
		Severity: severity,
		RaisedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	return f.retrier.Do(ctx, func(ctx context.Context) error {
		return f.breaker.Execute(ctx, func(context.Context) error {
			return f.pub.Publish(FollowUpSubject, data)
		})
	})
}
