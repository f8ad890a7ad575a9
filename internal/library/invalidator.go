package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/annel0/customobjects/internal/logging"
)

// Invalidator рассылает инвалидации структур между узлами
type Invalidator interface {
	Publish(ctx context.Context, name string) error
	Subscribe(ctx context.Context, handler InvalidationHandler) error
	Close() error
}

// InvalidationHandler обрабатывает имя сброшенной структуры
type InvalidationHandler func(name string) error

// InvalidationMessage представляет сообщение об инвалидации структуры.
type InvalidationMessage struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// NATSConfig содержит конфигурацию для NATS invalidator.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSInvalidator реализует Invalidator используя NATS Pub/Sub.
// Собственные сообщения узла игнорируются.
type NATSInvalidator struct {
	conn    *nats.Conn
	subject string
	nodeID  string

	mu           sync.Mutex
	subscription *nats.Subscription
	stopCh       chan struct{}
	wg           sync.WaitGroup

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// NewNATSInvalidator подключается к NATS. nodeID == "" - сгенерировать.
func NewNATSInvalidator(config NATSConfig, nodeID string) (*NATSInvalidator, error) {
	if config.Subject == "" {
		config.Subject = "customobjects.invalidate"
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = 10
	}
	if config.ReconnectWait == 0 {
		config.ReconnectWait = 2 * time.Second
	}
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	logger := logging.GetLibraryLogger()
	opts := []nats.Option{
		nats.Name("customobjects-" + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS invalidator initialized: %s (subject: %s)", config.URL, config.Subject)
	return &NATSInvalidator{
		conn:    conn,
		subject: config.Subject,
		nodeID:  nodeID,
		stopCh:  make(chan struct{}),
	}, nil
}

func (n *NATSInvalidator) Publish(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(&InvalidationMessage{
		Name:      name,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
	})
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	atomic.AddInt64(&n.publishedCount, 1)
	return nil
}

func (n *NATSInvalidator) Subscribe(ctx context.Context, handler InvalidationHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		n.handle(msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()
	return nil
}

func (n *NATSInvalidator) handle(msg *nats.Msg, handler InvalidationHandler) {
	atomic.AddInt64(&n.receivedCount, 1)
	logger := logging.GetLibraryLogger()

	var m InvalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logger.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}
	if m.NodeID == n.nodeID {
		return
	}
	if err := handler(m.Name); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logger.Error("Invalidation handler failed for %s: %v", m.Name, err)
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subscription != nil {
		if err := n.subscription.Unsubscribe(); err != nil {
			logging.GetLibraryLogger().Error("Failed to unsubscribe from invalidations: %v", err)
		}
		n.subscription = nil
	}
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	close(n.stopCh)
	n.wg.Wait()
	n.unsubscribe()
	n.conn.Close()
	return nil
}

// GetMetrics возвращает счётчики invalidator.
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
		"connected":       n.conn.IsConnected(),
	}
}

// LocalBus - Invalidator внутри одного процесса: каждая библиотека
// получает своё подключение через Join.
type LocalBus struct {
	mu      sync.RWMutex
	members map[string]InvalidationHandler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{members: make(map[string]InvalidationHandler)}
}

// Join возвращает подключение к шине с новым идентификатором узла
func (b *LocalBus) Join() Invalidator {
	return &localMember{bus: b, id: uuid.NewString()}
}

type localMember struct {
	bus *LocalBus
	id  string
}

func (m *localMember) Publish(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.bus.mu.RLock()
	defer m.bus.mu.RUnlock()

	var firstErr error
	for id, h := range m.bus.members {
		if id == m.id {
			continue
		}
		if err := h(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *localMember) Subscribe(ctx context.Context, handler InvalidationHandler) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if _, ok := m.bus.members[m.id]; ok {
		return fmt.Errorf("already subscribed to invalidations")
	}
	m.bus.members[m.id] = handler
	return nil
}

func (m *localMember) Close() error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	delete(m.bus.members, m.id)
	return nil
}
