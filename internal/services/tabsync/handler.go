// Package tabsync carries synchronizer snapshots to browser tabs over websockets.
package tabsync

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smart-store/internal/broadcast"
	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// snapshots a tab may fall behind before it is dropped
	sendBuffer = 64
)

// Handler upgrades GET /api/sync into a tab session
type Handler struct {
	sync     *broadcast.Synchronizer
	records  storage.Store
	logger   *logger.Logger
	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce sync.Once
}

func NewHandler(synchronizer *broadcast.Synchronizer, records storage.Store, log *logger.Logger) *Handler {
	return &Handler{
		sync:    synchronizer,
		records: records,
		logger:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// Shutdown closes every open tab session
func (h *Handler) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
}

type tab struct {
	id   string
	conn *websocket.Conn
	send chan models.SyncMessage

	done     chan struct{}
	doneOnce sync.Once
}

func (t *tab) stop() {
	t.doneOnce.Do(func() { close(t.done) })
}

// deliver runs on the broadcaster goroutine and never blocks it
func (t *tab) deliver(msg models.SyncMessage) bool {
	select {
	case <-t.done:
		return true
	case t.send <- msg:
		return true
	default:
		return false
	}
}

// ServeHTTP handles GET /api/sync?tab=<id>. The tab id is the origin used to skip a
// tab's own writes; a fresh one is assigned when missing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := httputil.RequestID(r.Context())

	id := r.URL.Query().Get("tab")
	if id == "" {
		id = uuid.NewString()
	}

	if !h.sync.IsOpen() {
		httputil.WriteError(w, http.StatusServiceUnavailable, "Synchronizer is not open", requestID)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("tab_upgrade_failed", "WebSocket upgrade failed", requestID, map[string]interface{}{
			"tab_id": id,
			"error":  err.Error(),
		})
		return
	}

	t := &tab{
		id:   id,
		conn: conn,
		send: make(chan models.SyncMessage, sendBuffer),
		done: make(chan struct{}),
	}

	unsubscribe, err := h.sync.Subscribe(id, func(msg models.SyncMessage) {
		if !t.deliver(msg) {
			h.logger.Warn("tab_overflow", "Tab fell behind, closing session", requestID, map[string]interface{}{
				"tab_id": id,
			})
			t.stop()
		}
	})
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}

	h.logger.Info("tab_connected", "Tab session opened", requestID, map[string]interface{}{
		"tab_id":      id,
		"subscribers": h.sync.Subscribers(),
	})

	// initial state for the new tab only
	ctx := context.WithoutCancel(r.Context())
	h.sync.Paused(func() {
		t.deliver(models.NewOrdersMessage("", storage.OrdersOrEmpty(ctx, h.records, h.logger, requestID)))
		t.deliver(models.NewProductsMessage("", storage.ProductsOrEmpty(ctx, h.records, h.logger, requestID)))
	})

	go h.readPump(t)
	h.writePump(t)

	unsubscribe()
	h.logger.Info("tab_disconnected", "Tab session closed", requestID, map[string]interface{}{
		"tab_id": id,
	})
}

// writePump owns every write to the connection
func (h *Handler) writePump(t *tab) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.stop()
		t.conn.Close()
	}()

	for {
		select {
		case msg := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-h.quit:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// readPump discards client frames and notices when the tab goes away
func (h *Handler) readPump(t *tab) {
	defer t.stop()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("tab_read_failed", "Tab connection dropped", "", map[string]interface{}{
					"tab_id": t.id,
					"error":  err.Error(),
				})
			}
			return
		}
	}
}
