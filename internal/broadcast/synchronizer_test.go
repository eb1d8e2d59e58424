package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

func sampleOrders() []models.Order {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	items := []models.OrderItem{
		{ProductID: "p1", Name: "Fuji Apples", Quantity: 3, Price: decimal.RequireFromString("8.5")},
		{ProductID: "p4", Name: "Spring Water", Quantity: 1, Price: decimal.RequireFromString("2")},
	}
	return []models.Order{{
		ID:          "ORD000001",
		ClientID:    "C-000001",
		Status:      models.StatusPending,
		Items:       items,
		TotalAmount: models.CalculateTotal(items),
		CreatedAt:   created,
		UpdatedAt:   created,
		Version:     1,
	}}
}

func openSync(t *testing.T) *Synchronizer {
	t.Helper()
	s := New(logger.Discard())
	s.Open()
	t.Cleanup(s.Close)
	return s
}

type recorder struct {
	mu   sync.Mutex
	msgs []models.SyncMessage
}

func (r *recorder) listen(msg models.SyncMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) received() []models.SyncMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SyncMessage(nil), r.msgs...)
}

func TestBroadcast_ReceiverGetsDeepEqualCollection(t *testing.T) {
	s := openSync(t)
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	orders := sampleOrders()
	require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", orders)))

	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, models.TopicOrdersUpdated, got[0].Topic)
	assert.Equal(t, orders, got[0].Orders)
}

func TestBroadcast_OrdersIndependentOfProductUpdates(t *testing.T) {
	s := openSync(t)
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	orders := sampleOrders()
	require.NoError(t, s.Broadcast(models.NewProductsMessage("tab-a", models.DefaultProducts())))
	require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", orders)))
	require.NoError(t, s.Broadcast(models.NewProductsMessage("tab-a", nil)))

	var lastOrders []models.Order
	for _, msg := range rec.received() {
		if msg.Topic == models.TopicOrdersUpdated {
			lastOrders = msg.Orders
		}
	}
	assert.Equal(t, orders, lastOrders)
}

func TestBroadcast_SkipsSenderOrigin(t *testing.T) {
	s := openSync(t)
	var sender, other recorder
	_, err := s.Subscribe("tab-a", sender.listen)
	require.NoError(t, err)
	_, err = s.Subscribe("tab-b", other.listen)
	require.NoError(t, err)

	require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", sampleOrders())))
	assert.Empty(t, sender.received())
	assert.Len(t, other.received(), 1)

	// server-originated messages reach everyone
	require.NoError(t, s.Broadcast(models.NewOrdersMessage("", sampleOrders())))
	assert.Len(t, sender.received(), 1)
	assert.Len(t, other.received(), 2)
}

func TestBroadcast_ListenersGetIndependentCopies(t *testing.T) {
	s := openSync(t)
	var first, second recorder
	_, err := s.Subscribe("tab-b", first.listen)
	require.NoError(t, err)
	_, err = s.Subscribe("tab-c", second.listen)
	require.NoError(t, err)

	require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", sampleOrders())))

	first.received()[0].Orders[0].Items[0].Quantity = 99
	assert.Equal(t, 3, second.received()[0].Orders[0].Items[0].Quantity)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := openSync(t)
	var rec recorder
	unsubscribe, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, s.Subscribers())

	require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", sampleOrders())))
	assert.Empty(t, rec.received())
}

func TestClose_Idempotent(t *testing.T) {
	never := New(logger.Discard())
	assert.NotPanics(t, never.Close)
	assert.NotPanics(t, never.Close)

	s := New(logger.Discard())
	s.Open()
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	s.Close()
	s.Close()
	assert.False(t, s.IsOpen())

	err = s.Broadcast(models.NewOrdersMessage("tab-a", sampleOrders()))
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = s.Subscribe("tab-c", rec.listen)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.Empty(t, rec.received())

	// reopening starts with no listeners
	s.Open()
	assert.Equal(t, 0, s.Subscribers())
}

func TestBroadcast_PreservesOrderPerListener(t *testing.T) {
	s := openSync(t)
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		orders := sampleOrders()
		orders[0].Version = i
		require.NoError(t, s.Broadcast(models.NewOrdersMessage("tab-a", orders)))
	}

	got := rec.received()
	require.Len(t, got, 5)
	for i, msg := range got {
		assert.Equal(t, i+1, msg.Orders[0].Version)
	}
}

func TestPublishOrders_ReloadsFromStore(t *testing.T) {
	s := openSync(t)
	store := storage.NewMemoryStore()
	orders := sampleOrders()
	require.NoError(t, store.Put(context.Background(), orders[0]))

	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	s.PublishOrders(context.Background(), store, "tab-a", "req-1")
	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, orders, got[0].Orders)

	s.Close()
	assert.NotPanics(t, func() { s.PublishProducts(context.Background(), store, "tab-a", "req-2") })
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) List(context.Context, models.Collection) ([]models.Record, error) {
	return nil, errors.New("connection refused")
}

func TestPublish_SkipsBroadcastWhenReloadFails(t *testing.T) {
	s := openSync(t)
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	store := failingStore{storage.NewMemoryStore()}
	s.PublishOrders(context.Background(), store, "tab-a", "req-1")
	s.PublishProducts(context.Background(), store, "tab-a", "req-2")

	assert.Empty(t, rec.received())
}

// gatedStore holds the result of its first List call until release is closed
type gatedStore struct {
	*storage.MemoryStore
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) List(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	records, err := g.MemoryStore.List(ctx, collection)
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return records, err
}

func TestPublishOrders_LaterWriteIsNotOvertaken(t *testing.T) {
	ctx := context.Background()
	s := openSync(t)
	store := &gatedStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}

	order := sampleOrders()[0]
	order.Status = models.StatusPickingDone
	require.NoError(t, store.Put(ctx, order))

	var rec recorder
	_, err := s.Subscribe("tab-c", rec.listen)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.PublishOrders(ctx, store, "tab-a", "req-a")
	}()
	<-store.entered

	order.Status = models.StatusCompleted
	order.Version = 2
	require.NoError(t, store.Put(ctx, order))

	var secondDone atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.PublishOrders(ctx, store, "tab-b", "req-b")
		secondDone.Store(true)
	}()

	// the second publish waits for the first to deliver
	assert.Never(t, secondDone.Load, 50*time.Millisecond, 5*time.Millisecond)
	close(store.release)
	wg.Wait()

	got := rec.received()
	require.Len(t, got, 2)
	assert.Equal(t, models.StatusPickingDone, got[0].Orders[0].Status)
	assert.Equal(t, models.StatusCompleted, got[1].Orders[0].Status)
}

func TestPaused_HoldsBroadcasts(t *testing.T) {
	s := openSync(t)
	var rec recorder
	_, err := s.Subscribe("tab-b", rec.listen)
	require.NoError(t, err)

	done := make(chan struct{})
	s.Paused(func() {
		go func() {
			defer close(done)
			s.Broadcast(models.NewOrdersMessage("tab-a", sampleOrders()))
		}()
		assert.Never(t, func() bool { return len(rec.received()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	})

	<-done
	assert.Len(t, rec.received(), 1)
}
