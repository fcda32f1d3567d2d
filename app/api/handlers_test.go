package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/cfg"
	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/database"
	"github.com/lysyi3m/blog-comb/app/tasks"
)

const testAPIKey = "secret"

type fakeScheduler struct {
	queued []tasks.TaskInterface
	err    error
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, task)
	return nil
}

type noopCollector struct{}

func (noopCollector) Collect(ctx context.Context, req collector.Request) (int64, error) {
	return 0, collector.ErrNoPosts
}

func (noopCollector) Update(ctx context.Context, blogID int64) (int, error) {
	return 0, nil
}

type testEnv struct {
	router    *gin.Engine
	blogs     *database.BlogRepo
	posts     *database.PostRepo
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("PORT", "8080")
	t.Setenv("BASE_URL", "https://comb.example")
	if _, err := cfg.LoadArgs([]string{}); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	blogsDir := t.TempDir()
	configCache := blog.NewConfigCache(blogsDir)
	if err := os.WriteFile(filepath.Join(blogsDir, "example.yml"), []byte(`
url: "https://example.com"
settings:
  enabled: true
  max_posts: 10
filters:
  - field: "title"
    excludes:
      - "sponsored"
`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		blogs:     database.NewBlogRepository(db),
		posts:     database.NewPostRepository(db),
		scheduler: &fakeScheduler{},
	}

	handler := NewHandler(configCache, env.blogs, env.posts, blog.NewFilterer(), noopCollector{}, env.scheduler)
	env.router = NewServer(handler, testAPIKey)

	return env
}

func (e *testEnv) seedBlog(t *testing.T) *database.Blog {
	t.Helper()

	b, err := e.blogs.GetOrCreateBlog(database.Blog{
		Name:             "Example",
		URL:              "https://example.com",
		FeedURL:          "https://example.com/feed",
		CollectionMethod: database.MethodRSS,
	})
	if err != nil {
		t.Fatal(err)
	}

	e.posts.UpsertPost(database.Post{BlogID: b.ID, URL: "https://example.com/one", Title: "First post", Content: "Hello world"})
	e.posts.UpsertPost(database.Post{BlogID: b.ID, URL: "https://example.com/ad", Title: "Sponsored", IsFiltered: true, FilterReason: "Excluded by title filter: contains 'sponsored'"})

	return b
}

func (e *testEnv) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		req.Header.Set("X-API-Key", testAPIKey)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetBlogFeed(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBlog(t)

	w := env.do(http.MethodGet, "/blogs/"+itoa(b.ID)+"/feed", "", false)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Errorf("Expected XML content type, got: %s", ct)
	}
	if items := w.Header().Get("X-Feed-Items"); items != "1" {
		t.Errorf("Expected 1 visible item, got: %s", items)
	}

	body := w.Body.String()
	if !strings.Contains(body, "First post") {
		t.Error("Expected visible post in feed")
	}
	if strings.Contains(body, "Sponsored") {
		t.Error("Expected filtered post to be excluded from feed")
	}
	if !strings.Contains(body, "https://comb.example/blogs/"+itoa(b.ID)+"/feed") {
		t.Error("Expected self link built from base URL")
	}
}

func TestGetBlogFeed_Errors(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/blogs/abc/feed", "", false); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid ID, got: %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/blogs/999/feed", "", false); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown blog, got: %d", w.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedBlog(t)

	w := env.do(http.MethodGet, "/health", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	w = env.do(http.MethodGet, "/stats", "", false)
	var stats map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats["blogs"] != 1 || stats["posts"] != 2 || stats["loaded_configurations"] != 1 {
		t.Errorf("Unexpected stats: %v", stats)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/blogs", "", false); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer key, got: %d", w.Code)
	}
}

func TestAPIListBlogs(t *testing.T) {
	env := newTestEnv(t)
	env.seedBlog(t)

	w := env.do(http.MethodGet, "/api/blogs", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var response struct {
		Blogs []map[string]interface{} `json:"blogs"`
		Total int                      `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Total != 1 {
		t.Fatalf("Expected 1 blog, got: %d", response.Total)
	}
	if response.Blogs[0]["configured"] != true {
		t.Error("Expected blog to be matched with its configuration")
	}
}

func TestAPIListPosts(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBlog(t)

	w := env.do(http.MethodGet, "/api/blogs/"+itoa(b.ID)+"/posts?limit=5", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var response struct {
		Posts []database.Post `json:"posts"`
		Limit int             `json:"limit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if len(response.Posts) != 1 || response.Limit != 5 {
		t.Errorf("Expected 1 visible post with limit 5, got: %d posts, limit %d", len(response.Posts), response.Limit)
	}
}

func TestAPICollectBlog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/blogs", `{"url":"https://writer.substack.com","method":"crawler"}`, true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got: %d (%s)", w.Code, w.Body.String())
	}

	if len(env.scheduler.queued) != 1 {
		t.Fatalf("Expected 1 queued task, got: %d", len(env.scheduler.queued))
	}
	task, ok := env.scheduler.queued[0].(*tasks.CollectBlogTask)
	if !ok {
		t.Fatalf("Expected CollectBlogTask, got: %T", env.scheduler.queued[0])
	}
	if task.Request.Method != "crawler" || task.BlogName != "Writer" {
		t.Errorf("Unexpected task: %+v", task.Request)
	}
}

func TestAPICollectBlog_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"invalid url", `{"url":"not a url"}`},
		{"unknown method", `{"url":"https://example.com","method":"scrape"}`},
		{"malformed", `{"url":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(http.MethodPost, "/api/blogs", tt.body, true); w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got: %d", w.Code)
			}
		})
	}

	if len(env.scheduler.queued) != 0 {
		t.Errorf("Expected no tasks for invalid requests, got: %d", len(env.scheduler.queued))
	}
}

func TestAPIUpdateAndRefilter(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBlog(t)

	w := env.do(http.MethodPost, "/api/blogs/"+itoa(b.ID)+"/update", "", true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202 for update, got: %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/blogs/"+itoa(b.ID)+"/refilter", "", true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202 for refilter, got: %d", w.Code)
	}

	if len(env.scheduler.queued) != 2 {
		t.Fatalf("Expected 2 queued tasks, got: %d", len(env.scheduler.queued))
	}

	update := env.scheduler.queued[0].(*tasks.CollectBlogTask)
	if update.Request.URL != b.URL || update.Request.Method != database.MethodRSS {
		t.Errorf("Expected update from stored blog, got: %+v", update.Request)
	}

	refilter := env.scheduler.queued[1].(*tasks.RefilterBlogTask)
	if len(refilter.Filters) != 1 || refilter.BlogID != b.ID {
		t.Errorf("Expected configured filters for blog, got: %+v", refilter.Filters)
	}
}

func TestAPIEnqueueConflict(t *testing.T) {
	env := newTestEnv(t)
	b := env.seedBlog(t)
	env.scheduler.err = tasks.ErrTaskPending

	w := env.do(http.MethodPost, "/api/blogs/"+itoa(b.ID)+"/update", "", true)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got: %d", w.Code)
	}
}

func TestAPIGetBlogDetails_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/blogs/42", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
