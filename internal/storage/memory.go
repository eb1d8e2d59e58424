package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smart-store/internal/models"
)

// MemoryStore implements Store and HistoryStore in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.Collection]map[string]models.Record
	order   map[models.Collection][]string // insertion order per collection
	history map[string][]models.OrderStatusHistory
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records: make(map[models.Collection]map[string]models.Record),
		order:   make(map[models.Collection][]string),
		history: make(map[string][]models.OrderStatusHistory),
	}
	for _, c := range models.Collections() {
		s.records[c] = make(map[string]models.Record)
	}
	return s
}

func (s *MemoryStore) List(_ context.Context, collection models.Collection) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.records[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection: %q", collection)
	}

	out := make([]models.Record, 0, len(recs))
	for _, id := range s.order[collection] {
		out = append(out, cloneRecord(recs[id]))
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, collection models.Collection, id string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(_ context.Context, record models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection := record.Collection()
	recs := s.records[collection]
	existing, exists := recs[record.RecordID()]

	if exists {
		if err := checkVersion(existing, record); err != nil {
			return err
		}
	}

	if c, ok := record.(models.Category); ok {
		for id, rec := range recs {
			if id != c.ID && rec.(models.Category).Name == c.Name {
				return fmt.Errorf("%w: category name %q", ErrDuplicate, c.Name)
			}
		}
	}

	if !exists {
		s.order[collection] = append(s.order[collection], record.RecordID())
	}
	recs[record.RecordID()] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection models.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[collection][id]; !ok {
		return nil
	}
	delete(s.records[collection], id)

	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if collection == models.CollectionOrders {
		delete(s.history, id)
	}
	return nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, entry models.OrderStatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.OrderID] = append(s.history[entry.OrderID], entry)
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.records[models.CollectionOrders][orderID]; !ok {
		return nil, fmt.Errorf("%w: orders/%s", ErrNotFound, orderID)
	}
	out := append([]models.OrderStatusHistory(nil), s.history[orderID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func cloneRecord(rec models.Record) models.Record {
	if o, ok := rec.(models.Order); ok {
		return o.Clone()
	}
	return rec
}
