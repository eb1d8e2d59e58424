package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/broadcast"
	"smart-store/internal/httputil"
	"smart-store/internal/logger"
	"smart-store/internal/models"
	"smart-store/internal/services/auth"
	"smart-store/internal/storage"
)

type fixture struct {
	service  *Service
	records  *storage.MemoryStore
	images   *storage.DiskImageStore
	mu       sync.Mutex
	received []models.SyncMessage
}

func (f *fixture) messages() []models.SyncMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SyncMessage(nil), f.received...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	images, err := storage.NewDiskImageStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{records: storage.NewMemoryStore(), images: images}

	syncer := broadcast.New(logger.Discard())
	syncer.Open()
	t.Cleanup(syncer.Close)
	_, err = syncer.Subscribe("other-tab", func(msg models.SyncMessage) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.received = append(f.received, msg)
	})
	require.NoError(t, err)

	f.service = NewService(f.records, images, syncer, logger.Discard())
	return f
}

func TestSeed_FillsEmptyCollectionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Seed(ctx, "req-1"))
	require.NoError(t, f.service.Seed(ctx, "req-2"))

	products, err := f.service.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(models.DefaultProducts()))

	categories, err := f.service.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, len(models.DefaultCategories()))
}

func TestSeed_KeepsExistingCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.records.Put(ctx, models.Product{ID: "x1", Name: "Rice", Price: decimal.NewFromInt(3)}))

	require.NoError(t, f.service.Seed(ctx, "req-1"))

	products, err := f.service.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "x1", products[0].ID)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Seed(ctx, "req-1"))

	tests := []struct {
		name     string
		category string
		query    string
		want     []string
	}{
		{name: "all", want: []string{"p1", "p2", "p3", "p4", "p5"}},
		{name: "by category", category: "Fruit", want: []string{"p1"}},
		{name: "by name", query: "Water", want: []string{"p4"}},
		{name: "query matches category", query: "Oil", want: []string{"p5"}},
		{name: "category and query disagree", category: "Fruit", query: "Water", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.service.Search(ctx, tt.category, tt.query, "req-1")
			ids := []string{}
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

type countingStore struct {
	*storage.MemoryStore
	lists   atomic.Int32
	release chan struct{}
}

func (s *countingStore) List(ctx context.Context, c models.Collection) ([]models.Record, error) {
	s.lists.Add(1)
	<-s.release
	return s.MemoryStore.List(ctx, c)
}

func TestProducts_ConcurrentCallersShareOneRead(t *testing.T) {
	store := &countingStore{MemoryStore: storage.NewMemoryStore(), release: make(chan struct{})}
	for _, p := range models.DefaultProducts() {
		require.NoError(t, store.Put(context.Background(), p))
	}
	svc := NewService(store, nil, broadcast.New(logger.Discard()), logger.Discard())

	const callers = 8
	var started, done sync.WaitGroup
	results := make([][]models.Product, callers)
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			products, err := svc.Products(context.Background())
			assert.NoError(t, err)
			results[i] = products
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return store.lists.Load() > 0 }, time.Second, time.Millisecond)
	close(store.release)
	done.Wait()

	assert.LessOrEqual(t, store.lists.Load(), int32(callers))
	for _, products := range results {
		assert.Len(t, products, 5)
	}

	// callers get their own slices
	results[0][0].Name = "changed"
	assert.Equal(t, "Fuji Apples", results[1][0].Name)
}

func TestSaveProduct_DefaultsImageAndBroadcasts(t *testing.T) {
	f := newFixture(t)

	saved, err := f.service.SaveProduct(context.Background(), models.Product{ID: "x1", Name: "Rice", Price: decimal.NewFromInt(3)}, "my-tab", "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultProductImage, saved.Image)

	msgs := f.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.TopicProductsUpdated, msgs[0].Topic)
	require.Len(t, msgs[0].Products, 1)
	assert.Equal(t, "x1", msgs[0].Products[0].ID)
}

func TestDeleteProduct_RemovesUploadedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path, err := f.service.UploadImage(ctx, "rice.png", strings.NewReader("png"), "req-1")
	require.NoError(t, err)
	_, err = f.service.SaveProduct(ctx, models.Product{ID: "x1", Name: "Rice", Price: decimal.NewFromInt(3), Image: path}, "", "req-1")
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteProduct(ctx, "x1", "", "req-2"))

	_, err = storage.GetProduct(ctx, f.records, "x1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.NoFileExists(t, filepath.Join(f.images.Dir(), strings.TrimPrefix(path, storage.UploadsURLPrefix)))

	err = f.service.DeleteProduct(ctx, "x1", "", "req-3")
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestCategories_UniqueNameAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SaveCategory(ctx, models.Category{ID: "c1", Name: "Bakery"}, "req-1")
	require.NoError(t, err)
	_, err = f.service.SaveCategory(ctx, models.Category{ID: "c2", Name: "Bakery"}, "req-1")
	assert.True(t, errors.Is(err, storage.ErrDuplicate))

	require.NoError(t, f.service.DeleteCategory(ctx, "c1", "req-2"))
	err = f.service.DeleteCategory(ctx, "c1", "req-3")
	assert.True(t, errors.Is(err, ErrCategoryNotFound))
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role, err := models.ParseRole(req.Header.Get("X-Test-Role"))
			if err != nil {
				role = models.RoleCustomer
			}
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Role: role})))
		})
	})
	r.Route("/api", h.Routes)
	return r
}

func TestHandler_ProductEditsNeedCashier(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(NewHandler(f.service, logger.Discard()))

	post := func(role string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
		req.Header.Set("X-Test-Role", role)
		req.Header.Set(httputil.TabHeader, "my-tab")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	body := `{"name":"Rice","price":"3.5","unit":"kg","category":"Grain & Oil"}`
	assert.Equal(t, http.StatusForbidden, post("PICKER", body).Code)
	assert.Equal(t, http.StatusForbidden, post("", body).Code)
	assert.Equal(t, http.StatusBadRequest, post("CASHIER", `{"name":"","price":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("CASHIER", `{"name":"Rice","colour":"white"}`).Code)

	rec := post("CASHIER", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "3.5", saved.Price.String())

	req := httptest.NewRequest(http.MethodGet, "/api/products?q=Rice", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), saved.ID)

	req = httptest.NewRequest(http.MethodDelete, "/api/products/"+saved.ID, nil)
	req.Header.Set("X-Test-Role", "CASHIER")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/products/"+saved.ID, nil)
	req.Header.Set("X-Test-Role", "CASHIER")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CategoryConflict(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(NewHandler(f.service, logger.Discard()))

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(body))
		req.Header.Set("X-Test-Role", "CASHIER")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post(`{"name":"Bakery"}`))
	assert.Equal(t, http.StatusConflict, post(`{"name":"Bakery"}`))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bakery"`)
}

func TestHandler_Upload(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(NewHandler(f.service, logger.Discard()))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "apple.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-Role", "CASHIER")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "apple.jpg", resp["filename"])
	assert.True(t, strings.HasPrefix(resp["path"], storage.UploadsURLPrefix))

	// missing file field
	req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("X-Test-Role", "CASHIER")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
