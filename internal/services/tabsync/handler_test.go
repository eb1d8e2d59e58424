package tabsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/broadcast"
	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

type fixture struct {
	sync    *broadcast.Synchronizer
	records *storage.MemoryStore
	handler *Handler
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sync:    broadcast.New(logger.Discard()),
		records: storage.NewMemoryStore(),
	}
	f.sync.Open()
	t.Cleanup(f.sync.Close)

	for _, p := range models.DefaultProducts() {
		require.NoError(t, f.records.Put(context.Background(), p))
	}

	f.handler = NewHandler(f.sync, f.records, logger.Discard())
	f.server = httptest.NewServer(f.handler)
	t.Cleanup(f.server.Close)
	t.Cleanup(f.handler.Shutdown)
	return f
}

func (f *fixture) dial(t *testing.T, tabID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/sync?tab=" + tabID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.SyncMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.SyncMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func productIDs(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSync_SendsInitialSnapshots(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "tab-a")

	first := readMessage(t, conn)
	assert.Equal(t, models.TopicOrdersUpdated, first.Topic)
	assert.Empty(t, first.Orders)

	second := readMessage(t, conn)
	assert.Equal(t, models.TopicProductsUpdated, second.Topic)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, productIDs(second.Products))
}

func TestSync_RelaysOtherTabsOnly(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "tab-a")
	readMessage(t, conn)
	readMessage(t, conn)

	require.Eventually(t, func() bool { return f.sync.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	// own write is skipped, the next one from another tab arrives
	require.NoError(t, f.sync.Broadcast(models.NewProductsMessage("tab-a", models.DefaultProducts()[:1])))
	require.NoError(t, f.sync.Broadcast(models.NewProductsMessage("tab-b", models.DefaultProducts()[:2])))

	msg := readMessage(t, conn)
	assert.Equal(t, models.TopicProductsUpdated, msg.Topic)
	assert.Equal(t, "tab-b", msg.Origin)
	assert.Equal(t, []string{"p1", "p2"}, productIDs(msg.Products))
}

func TestSync_UnsubscribesOnDisconnect(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "tab-a")
	readMessage(t, conn)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return f.sync.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return f.sync.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSync_ShutdownClosesSessions(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "tab-a")
	readMessage(t, conn)
	readMessage(t, conn)

	f.handler.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestSync_RejectsWhenClosed(t *testing.T) {
	f := newFixture(t)
	f.sync.Close()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync?tab=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
