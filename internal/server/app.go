package server

import (
	"context"
	"fmt"
	"net/http"

	"smart-store/internal/broadcast"
	"smart-store/internal/config"
	"smart-store/internal/logger"
	"smart-store/internal/messaging"
	"smart-store/internal/services/auth"
	"smart-store/internal/services/cart"
	"smart-store/internal/services/catalog"
	"smart-store/internal/services/order"
	"smart-store/internal/services/tabsync"
	"smart-store/internal/services/tracking"
	"smart-store/internal/storage"
)

// Backends are the stores and outbound channels the store service runs on
type Backends struct {
	Records  storage.Store
	History  storage.HistoryStore
	Images   *storage.DiskImageStore
	Carts    cart.Store
	Notifier messaging.Notifier
	// Checks are probed by /health in addition to the record store
	Checks []tracking.Check
}

// App is a fully wired store service
type App struct {
	Sync    *broadcast.Synchronizer
	Catalog *catalog.Service
	Cart    *cart.Service
	Order   *order.Service
	Handler http.Handler

	tabs *tabsync.Handler
}

// NewApp wires services and handlers and opens the synchronizer
func NewApp(cfg *config.Config, b Backends, log *logger.Logger) (*App, error) {
	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	synchronizer := broadcast.New(log)
	synchronizer.Open()

	var images storage.ImageStore
	uploadDir := ""
	if b.Images != nil {
		images = b.Images
		uploadDir = b.Images.Dir()
	}

	catalogService := catalog.NewService(b.Records, images, synchronizer, log)
	cartService := cart.NewService(b.Carts, b.Records, b.History, catalogService, synchronizer, b.Notifier, log)
	orderService := order.NewService(b.Records, b.History, synchronizer, b.Notifier, log)

	checks := append([]tracking.Check{{Name: "records", Ping: b.Records.Ping}}, b.Checks...)
	trackingService := tracking.NewService(b.History, log, checks...)

	tabs := tabsync.NewHandler(synchronizer, b.Records, log)

	handler := NewRouter(Handlers{
		Auth:      auth.NewHandler(authService, log),
		Catalog:   catalog.NewHandler(catalogService, log),
		Cart:      cart.NewHandler(cartService, log),
		Order:     order.NewHandler(orderService, log),
		Tracking:  tracking.NewHandler(trackingService, log),
		TabSync:   tabs,
		UploadDir: uploadDir,
	}, authService, log, cfg.Server.RequestTimeout)

	return &App{
		Sync:    synchronizer,
		Catalog: catalogService,
		Cart:    cartService,
		Order:   orderService,
		Handler: handler,
		tabs:    tabs,
	}, nil
}

// Seed fills an empty catalog with the defaults
func (a *App) Seed(ctx context.Context, requestID string) error {
	return a.Catalog.Seed(ctx, requestID)
}

// Close ends every tab session and closes the synchronizer
func (a *App) Close() {
	a.tabs.Shutdown()
	a.Sync.Close()
}
