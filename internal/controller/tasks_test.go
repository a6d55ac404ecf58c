package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"shared-tasks/internal/models"
)

type fakeService struct {
	mu    sync.Mutex
	tasks []models.Task
	err   error
	lists int
}

func (f *fakeService) List(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return f.tasks, f.err
}

func (f *fakeService) Get(ctx context.Context, id int64) (models.Task, error) {
	if f.err != nil {
		return models.Task{}, f.err
	}
	return models.Task{ID: id, Title: "got"}, nil
}

func (f *fakeService) Create(ctx context.Context, title string) (models.Task, error) {
	if f.err != nil {
		return models.Task{}, f.err
	}
	return models.Task{ID: 1, Title: title, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeService) Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if f.err != nil {
		return models.Task{}, f.err
	}
	t := models.Task{ID: id, Title: "t"}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	return t, nil
}

func (f *fakeService) Delete(ctx context.Context, id int64) (models.Task, error) {
	if f.err != nil {
		return models.Task{}, f.err
	}
	return models.Task{ID: id, Title: "gone"}, nil
}

type recordingPublisher struct {
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev models.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

type fakeCache struct {
	mu          sync.Mutex
	disabled    bool
	raw         []byte
	version     int64
	invalidated int
	fills       int
}

func (c *fakeCache) Enabled() bool { return !c.disabled }

func (c *fakeCache) Get(ctx context.Context) ([]byte, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw, c.version, c.raw != nil
}

func (c *fakeCache) SetAsync(version int64, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fills++
	if version == c.version {
		c.raw = raw
	}
}

func (c *fakeCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.version++
	c.raw = nil
}

func newTestEngine(h *Tasks) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/tasks", h.List)
	r.GET("/tasks/:id", h.Get)
	r.POST("/tasks", h.Create)
	r.PATCH("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v; body=%s", err, w.Body.String())
	}
	if body.Message == "" {
		t.Fatalf("missing message: %s", w.Body.String())
	}
	return body.Error
}

func TestCreate_PublishesAfterSuccess(t *testing.T) {
	pub, cache := &recordingPublisher{}, &fakeCache{}
	r := newTestEngine(NewTasks(&fakeService{}, cache, pub))

	w := do(r, http.MethodPost, "/tasks", `{"title":"Buy milk"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(pub.events) != 1 || pub.events[0].Type != models.TaskCreated || pub.events[0].Task.Title != "Buy milk" {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	if cache.invalidated != 1 {
		t.Fatalf("expected cache invalidation, got %d", cache.invalidated)
	}
}

func TestCreate_CompletedTrueRejected(t *testing.T) {
	pub := &recordingPublisher{}
	r := newTestEngine(NewTasks(&fakeService{}, &fakeCache{}, pub))

	w := do(r, http.MethodPost, "/tasks", `{"title":"x","completed":true}`)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "validation_error" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing may be published for a rejected request")
	}
}

func TestMutations_ErrorsMappedAndNotPublished(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: title must not be empty", models.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("%w: id 9", models.ErrNotFound), http.StatusNotFound, "not_found"},
		{"store down", fmt.Errorf("%w: dial tcp", models.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{"unknown", fmt.Errorf("weird"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub, cache := &recordingPublisher{}, &fakeCache{}
			r := newTestEngine(NewTasks(&fakeService{err: tc.err}, cache, pub))

			for _, req := range []struct{ method, path, body string }{
				{http.MethodPost, "/tasks", `{"title":"x"}`},
				{http.MethodPatch, "/tasks/9", `{"completed":true}`},
				{http.MethodDelete, "/tasks/9", ""},
			} {
				w := do(r, req.method, req.path, req.body)
				if w.Code != tc.status || errorCode(t, w) != tc.code {
					t.Fatalf("%s %s: status=%d body=%s", req.method, req.path, w.Code, w.Body.String())
				}
			}
			if len(pub.events) != 0 || cache.invalidated != 0 {
				t.Fatalf("failed writes must not publish or invalidate: events=%v invalidated=%d", pub.events, cache.invalidated)
			}
		})
	}
}

func TestStoreUnavailable_HidesDetails(t *testing.T) {
	r := newTestEngine(NewTasks(&fakeService{err: fmt.Errorf("%w: password=secret", models.ErrStoreUnavailable)}, &fakeCache{}, &recordingPublisher{}))
	w := do(r, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusServiceUnavailable || strings.Contains(w.Body.String(), "secret") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestInvalidID(t *testing.T) {
	pub := &recordingPublisher{}
	r := newTestEngine(NewTasks(&fakeService{}, &fakeCache{}, pub))

	for _, path := range []string{"/tasks/abc", "/tasks/0", "/tasks/-3"} {
		w := do(r, http.MethodDelete, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", path, w.Code)
		}
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing may be published")
	}
}

func TestUpdate_MalformedBody(t *testing.T) {
	r := newTestEngine(NewTasks(&fakeService{}, &fakeCache{}, &recordingPublisher{}))
	w := do(r, http.MethodPatch, "/tasks/1", `{"completed":"yes"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestDelete_PublishesIDOnly(t *testing.T) {
	pub := &recordingPublisher{}
	r := newTestEngine(NewTasks(&fakeService{}, &fakeCache{}, pub))

	w := do(r, http.MethodDelete, "/tasks/12", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var deleted models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &deleted); err != nil || deleted.ID != 12 {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != models.TaskDeleted || pub.events[0].ID != 12 || pub.events[0].Task != nil {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestPublishFailure_StillSucceeds(t *testing.T) {
	pub := &recordingPublisher{err: fmt.Errorf("broker down")}
	r := newTestEngine(NewTasks(&fakeService{}, &fakeCache{}, pub))

	w := do(r, http.MethodPatch, "/tasks/3", `{"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestList_ServedFromCacheUntilInvalidated(t *testing.T) {
	svc := &fakeService{tasks: []models.Task{{ID: 1, Title: "cached"}}}
	cache := &fakeCache{}
	r := newTestEngine(NewTasks(svc, cache, &recordingPublisher{}))

	if w := do(r, http.MethodGet, "/tasks", ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	// the fill is asynchronous
	deadline := time.Now().Add(time.Second)
	for {
		if _, _, ok := cache.Get(context.Background()); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache was never filled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := do(r, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "cached") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	svc.mu.Lock()
	lists := svc.lists
	svc.mu.Unlock()
	if lists != 1 {
		t.Fatalf("expected one store read, got %d", lists)
	}

	do(r, http.MethodPatch, "/tasks/1", `{"completed":true}`)
	do(r, http.MethodGet, "/tasks", "")
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.lists != 2 {
		t.Fatalf("expected a store read after invalidation, got %d", svc.lists)
	}
}

func TestList_EmptyIsArray(t *testing.T) {
	r := newTestEngine(NewTasks(&fakeService{tasks: []models.Task{}}, &fakeCache{}, &recordingPublisher{}))
	w := do(r, http.MethodGet, "/tasks", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestList_DisabledCacheNeverFilled(t *testing.T) {
	cache := &fakeCache{disabled: true}
	r := newTestEngine(NewTasks(&fakeService{tasks: []models.Task{{ID: 1, Title: "a"}}}, cache, &recordingPublisher{}))

	for i := 0; i < 3; i++ {
		if w := do(r, http.MethodGet, "/tasks", ""); w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
	}
	// a stray fill goroutine would have run by now
	time.Sleep(20 * time.Millisecond)
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.fills != 0 {
		t.Fatalf("disabled cache filled %d times", cache.fills)
	}
}

func TestList_ConcurrentMissesShareOneFill(t *testing.T) {
	release := make(chan struct{})
	svc := &blockingService{
		fakeService: fakeService{tasks: []models.Task{{ID: 1, Title: "a"}}},
		release:     release,
		started:     make(chan struct{}),
	}
	cache := &fakeCache{}
	r := newTestEngine(NewTasks(svc, cache, &recordingPublisher{}))

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w := do(r, http.MethodGet, "/tasks", ""); w.Code != http.StatusOK {
				t.Errorf("status=%d", w.Code)
			}
		}()
	}
	// every request misses the empty cache and joins the one in-flight load
	svc.waitStarted(t)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	cache.mu.Lock()
	fills := cache.fills
	cache.mu.Unlock()
	svc.mu.Lock()
	loads := svc.lists
	svc.mu.Unlock()
	if fills != loads {
		t.Fatalf("fills=%d loads=%d, want one fill per store load", fills, loads)
	}
}

type blockingService struct {
	fakeService
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingService) List(ctx context.Context) ([]models.Task, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeService.List(ctx)
}

func (b *blockingService) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("load never started")
	}
}
