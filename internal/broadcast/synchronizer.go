// Package broadcast propagates full-collection snapshots between the tab sessions
// attached to one store process.
package broadcast

import (
	"errors"
	"slices"
	"sync"

	"smart-store/internal/logger"
	"smart-store/internal/models"
)

// ErrClosed is returned when the synchronizer is not open
var ErrClosed = errors.New("synchronizer is not open")

// Listener receives a snapshot message. It runs on the broadcaster's goroutine and
// must not call Broadcast, Publish* or Paused itself.
type Listener func(msg models.SyncMessage)

type subscription struct {
	origin   string
	listener Listener
}

// Synchronizer is the handle tabs subscribe to. The zero value is closed; call Open
// before use.
type Synchronizer struct {
	mu        sync.RWMutex
	open      bool
	nextID    uint64
	listeners map[uint64]subscription
	order     []uint64

	// serializes deliveries so each listener sees broadcasts in call order
	sendMu sync.Mutex

	logger *logger.Logger
}

// New creates a closed synchronizer
func New(log *logger.Logger) *Synchronizer {
	return &Synchronizer{logger: log}
}

// Open makes the synchronizer ready to accept subscribers. Opening an open
// synchronizer has no effect.
func (s *Synchronizer) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return
	}
	s.open = true
	s.listeners = make(map[uint64]subscription)
	s.order = nil
}

// IsOpen reports whether Open was called and Close was not
func (s *Synchronizer) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// Subscribe registers listener for every message not sent by origin. The returned
// function removes the registration and may be called more than once.
func (s *Synchronizer) Subscribe(origin string, listener Listener) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrClosed
	}

	s.nextID++
	id := s.nextID
	s.listeners[id] = subscription{origin: origin, listener: listener}
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}, nil
}

func (s *Synchronizer) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners[id]; !ok {
		return
	}
	delete(s.listeners, id)
	s.order = slices.DeleteFunc(s.order, func(v uint64) bool { return v == id })
}

// Subscribers returns the number of registered listeners
func (s *Synchronizer) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Broadcast delivers msg to every listener whose origin differs from msg.Origin.
// An empty origin reaches everyone. Each listener gets its own copy of the payload.
func (s *Synchronizer) Broadcast(msg models.SyncMessage) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.broadcastLocked(msg)
}

// broadcastLocked expects sendMu to be held
func (s *Synchronizer) broadcastLocked(msg models.SyncMessage) error {
	s.mu.RLock()
	if !s.open {
		s.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]subscription, 0, len(s.order))
	for _, id := range s.order {
		sub := s.listeners[id]
		if msg.Origin != "" && sub.origin == msg.Origin {
			continue
		}
		targets = append(targets, sub)
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.listener(copyMessage(msg))
	}

	s.logger.Debug("snapshot_broadcast", "Broadcast collection snapshot", "", map[string]interface{}{
		"type":       string(msg.Topic),
		"origin":     msg.Origin,
		"recipients": len(targets),
	})
	return nil
}

// Close drops every listener. It is safe to call repeatedly and on a synchronizer
// that was never opened.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.listeners = nil
	s.order = nil
}

func copyMessage(msg models.SyncMessage) models.SyncMessage {
	out := msg
	if msg.Orders != nil {
		out.Orders = models.CloneOrders(msg.Orders)
	}
	if msg.Products != nil {
		out.Products = slices.Clone(msg.Products)
	}
	return out
}
