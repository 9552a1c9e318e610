package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/threefoldtech/vaultbridge/pkg/metrics"
)

// Emitter publishes bridge events. Events are emitted after the change they
// describe has been committed.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Recorder keeps emitted events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Log writes events to the global logger
type Log struct{}

func (Log) Emit(ctx context.Context, event Event) error {
	log.Info().Str("subject", event.Subject()).Interface("event", event).Msg("bridge event")
	return nil
}

// Multi fans out to every emitter and returns the first error
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NATS publishes events as json under <prefix>.<subject>
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS connects to the server at url and keeps reconnecting forever
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("vaultbridge"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}
	metrics.NATSConnectionStatus.Set(1)
	return conn, nil
}

func NewNATS(conn *nats.Conn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

// SubjectFor returns the full subject an event of subject is published under
func SubjectFor(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Emit publishes event with a unique message id so a deduplicating stream
// drops accidental republishes
func (n *NATS) Emit(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", event.Subject())
	}
	subject := SubjectFor(n.prefix, event.Subject())
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	if err := n.conn.PublishMsg(msg); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", subject)
	}
	metrics.EventsPublished.WithLabelValues(event.Subject()).Inc()
	return nil
}

func (n *NATS) Close() {
	n.conn.Close()
}
