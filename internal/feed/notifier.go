// Package feed turns the expense store into a live source of household snapshots.
//
// Writers publish a change notice for every household a mutation touched. Subscribers
// re-read the full snapshot on notice; notices carry no payload beyond the household id.
package feed

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// Notifier fans out household change notices.
type Notifier interface {
	// Publish announces that householdID's contents changed.
	Publish(ctx context.Context, householdID string) error

	// Subscribe calls fn for every notice on any of householdIDs until cancel is called.
	// fn must not block.
	Subscribe(householdIDs []string, fn func(householdID string)) (cancel func(), err error)

	Close() error
}

// Broker is an in-process Notifier for single-node deployments and tests.
type Broker struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func(string)
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(map[string]map[int]func(string))}
}

// Publish delivers the notice synchronously to every current handler.
func (b *Broker) Publish(_ context.Context, householdID string) error {
	b.mu.RLock()
	fns := make([]func(string), 0, len(b.handlers[householdID]))
	for _, fn := range b.handlers[householdID] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(householdID)
	}
	return nil
}

func (b *Broker) Subscribe(householdIDs []string, fn func(string)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	for _, h := range householdIDs {
		if b.handlers[h] == nil {
			b.handlers[h] = make(map[int]func(string))
		}
		b.handlers[h][id] = fn
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, h := range householdIDs {
				delete(b.handlers[h], id)
				if len(b.handlers[h]) == 0 {
					delete(b.handlers, h)
				}
			}
		})
	}, nil
}

func (b *Broker) Close() error { return nil }

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "hogar.households"

// NATSNotifier publishes change notices over NATS so several server replicas can share
// one database.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSNotifier connects to url. Subjects are prefix + "." + hex(householdID), since
// household ids contain dots.
func NewNATSNotifier(url, prefix string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("hogar"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}, nil
}

// Subject returns the NATS subject carrying notices for householdID.
func (n *NATSNotifier) Subject(householdID string) string {
	return n.prefix + "." + hex.EncodeToString([]byte(householdID))
}

func (n *NATSNotifier) Publish(_ context.Context, householdID string) error {
	if err := n.nc.Publish(n.Subject(householdID), []byte(householdID)); err != nil {
		return fmt.Errorf("failed to publish change for %s: %w", householdID, err)
	}
	return nil
}

func (n *NATSNotifier) Subscribe(householdIDs []string, fn func(string)) (func(), error) {
	subs := make([]*nats.Subscription, 0, len(householdIDs))
	unsubscribe := func() {
		for _, s := range subs {
			if err := s.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
				n.logger.Debug("NATS unsubscribe failed", "subject", s.Subject, "error", err)
			}
		}
	}

	for _, h := range householdIDs {
		sub, err := n.nc.Subscribe(n.Subject(h), func(msg *nats.Msg) {
			fn(string(msg.Data))
		})
		if err != nil {
			unsubscribe()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", h, err)
		}
		subs = append(subs, sub)
	}

	var once sync.Once
	return func() { once.Do(unsubscribe) }, nil
}

// Close drains pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	return n.nc.Drain()
}
