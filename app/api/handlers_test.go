package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/kingsfeeds/app/feed"
	"github.com/lysyi3m/kingsfeeds/app/tasks"
)

type mockLoader struct {
	result *feed.FeedResult
	err    error
	calls  int
}

func (m *mockLoader) Load(ctx context.Context) (*feed.FeedResult, error) {
	m.calls++
	return m.result, m.err
}

type mockRefresher struct {
	snapshot   *tasks.Snapshot
	refreshed  *tasks.Snapshot
	refreshErr error
}

func (m *mockRefresher) Start() {}
func (m *mockRefresher) Stop() {}

func (m *mockRefresher) Refresh(ctx context.Context) (*tasks.Snapshot, error) {
	return m.refreshed, m.refreshErr
}

func (m *mockRefresher) Snapshot() *tasks.Snapshot {
	return m.snapshot
}

func testFeedResult() *feed.FeedResult {
	return &feed.FeedResult{
		Status: feed.StatusOK,
		Feed: feed.Meta{
			Title:       "Stories by Kings",
			Description: "Stories on Medium",
			Link:        "https://medium.com/@kingsillu",
		},
		Items: []feed.Post{
			{
				Title:       "Hello",
				Link:        "https://medium.com/@kingsillu/hello",
				PublishedAt: "2025-01-05 12:00:00",
				Description: "<p>Hi there</p>",
				Content:     `<p>Hi there</p><img src="https://cdn.example.com/hello.png">`,
				GUID:        "https://medium.com/p/hello",
			},
		},
	}
}

func newTestServer(proxy LoaderInterface, refresher tasks.RefresherInterface, opts ServerOptions) *gin.Engine {
	handler := NewHandler(proxy, feed.NewGenerator("http://localhost:5000/api/rss.xml", "test"), refresher, "test")
	server := NewServer(handler, opts)
	gin.SetMode(gin.TestMode)
	return server
}

func doRequest(server http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestGetRSS(t *testing.T) {
	proxy := &mockLoader{result: testFeedResult()}
	server := newTestServer(proxy, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/rss")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result feed.FeedResult
	decodeBody(t, w, &result)

	if result.Status != "ok" || result.Feed.Title != "Stories by Kings" {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(result.Items) != 1 || result.Items[0].GUID != "https://medium.com/p/hello" {
		t.Errorf("Unexpected items %+v", result.Items)
	}
	if strings.Contains(w.Body.String(), `"thumbnail"`) {
		t.Error("Expected absent thumbnail to be omitted from the body")
	}
	if proxy.calls != 1 {
		t.Errorf("Expected 1 pipeline run per request, got %d", proxy.calls)
	}

	doRequest(server, http.MethodGet, "/api/rss")
	if proxy.calls != 2 {
		t.Errorf("Expected proxy responses not to be cached, got %d runs", proxy.calls)
	}
}

func TestGetRSSFailures(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		violations int
	}{
		{"upstream unavailable", &feed.UpstreamUnavailableError{StatusCode: 500, Message: "HTTP error! status: 500"}, 0},
		{"schema validation", &feed.SchemaValidationError{Violations: []feed.Violation{{Path: "feed.title", Reason: "Required"}}}, 1},
		{"upstream reported failure", &feed.UpstreamReportedFailureError{Status: "error"}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(&mockLoader{err: tc.err}, &mockRefresher{}, ServerOptions{})

			w := doRequest(server, http.MethodGet, "/api/rss")

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("Expected status 500, got %d", w.Code)
			}

			var body ErrorResponse
			decodeBody(t, w, &body)

			if body.Message != "Failed to fetch RSS feed" {
				t.Errorf("Unexpected message '%s'", body.Message)
			}
			if body.Error != tc.err.Error() || body.Error == "" {
				t.Errorf("Expected error '%s', got '%s'", tc.err.Error(), body.Error)
			}
			if len(body.Violations) != tc.violations {
				t.Errorf("Expected %d violations, got %v", tc.violations, body.Violations)
			}
		})
	}
}

func TestGetRSSUpstreamEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	fetcher, err := feed.NewFetcher(upstream.Client(), upstream.URL, "https://medium.com/feed/@kingsillu", "", 0)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	server := newTestServer(feed.NewPipeline(fetcher, feed.NewNormalizer()), &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/rss")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}

	var body ErrorResponse
	decodeBody(t, w, &body)

	if body.Message == "" {
		t.Error("Expected non-empty message")
	}
	if body.Error != "HTTP error! status: 500" {
		t.Errorf("Unexpected error '%s'", body.Error)
	}
}

func TestGetRSSFeed(t *testing.T) {
	server := newTestServer(&mockLoader{result: testFeedResult()}, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/rss.xml")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/rss+xml") {
		t.Errorf("Unexpected content type '%s'", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got '%s'", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "<title>Stories by Kings</title>") {
		t.Error("Expected channel title in feed")
	}
}

func TestGetRSSFeedFailure(t *testing.T) {
	server := newTestServer(&mockLoader{err: errors.New("boom")}, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/rss.xml")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestGetPostsNotReady(t *testing.T) {
	testCases := []struct {
		name     string
		snapshot *tasks.Snapshot
		errText  string
	}{
		{"no attempt yet", nil, "Unknown error"},
		{"first attempt failed", &tasks.Snapshot{LastError: errors.New("HTTP error! status: 502")}, "HTTP error! status: 502"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(&mockLoader{}, &mockRefresher{snapshot: tc.snapshot}, ServerOptions{})

			w := doRequest(server, http.MethodGet, "/api/posts")

			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("Expected status 503, got %d", w.Code)
			}

			var body ErrorResponse
			decodeBody(t, w, &body)
			if body.Message != "Feed not available yet" {
				t.Errorf("Unexpected message '%s'", body.Message)
			}
			if body.Error != tc.errText {
				t.Errorf("Expected error '%s', got '%s'", tc.errText, body.Error)
			}
		})
	}
}

func TestGetPosts(t *testing.T) {
	fetchedAt := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	refresher := &mockRefresher{snapshot: &tasks.Snapshot{
		Result:    testFeedResult(),
		FetchedAt: fetchedAt,
		LastError: errors.New("HTTP error! status: 503"),
	}}
	server := newTestServer(&mockLoader{}, refresher, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/posts")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body PostsResponse
	decodeBody(t, w, &body)

	if !body.Stale {
		t.Error("Expected stale flag while the last attempt failed")
	}
	if body.Error != "HTTP error! status: 503" {
		t.Errorf("Unexpected error '%s'", body.Error)
	}
	if !body.FetchedAt.Equal(fetchedAt) {
		t.Errorf("Expected fetched_at %s, got %s", fetchedAt, body.FetchedAt)
	}
	if body.Feed.Title != "Stories by Kings" || len(body.Feed.Posts) != 1 {
		t.Fatalf("Unexpected feed %+v", body.Feed)
	}

	post := body.Feed.Posts[0]
	if post.Excerpt != "Hi there" {
		t.Errorf("Unexpected excerpt '%s'", post.Excerpt)
	}
	if post.ImageURL != "https://cdn.example.com/hello.png" {
		t.Errorf("Unexpected image '%s'", post.ImageURL)
	}
	if post.Date == "" {
		t.Error("Expected formatted date")
	}
}

func TestRefreshPosts(t *testing.T) {
	refresher := &mockRefresher{refreshed: &tasks.Snapshot{Result: testFeedResult(), FetchedAt: time.Now()}}
	server := newTestServer(&mockLoader{}, refresher, ServerOptions{})

	w := doRequest(server, http.MethodPost, "/api/posts/refresh")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body PostsResponse
	decodeBody(t, w, &body)
	if body.Stale || len(body.Feed.Posts) != 1 {
		t.Errorf("Unexpected response %+v", body)
	}
}

func TestRefreshPostsFailure(t *testing.T) {
	refresher := &mockRefresher{refreshErr: &feed.UpstreamReportedFailureError{Status: "error"}}
	server := newTestServer(&mockLoader{}, refresher, ServerOptions{})

	w := doRequest(server, http.MethodPost, "/api/posts/refresh")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}

	var body ErrorResponse
	decodeBody(t, w, &body)
	if !strings.Contains(body.Error, "Failed to parse RSS feed") {
		t.Errorf("Unexpected error '%s'", body.Error)
	}
}

func TestGetHealth(t *testing.T) {
	refresher := &mockRefresher{snapshot: &tasks.Snapshot{Result: testFeedResult(), FetchedAt: time.Now()}}
	server := newTestServer(&mockLoader{}, refresher, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]any
	decodeBody(t, w, &body)

	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("Expected version test, got %v", body["version"])
	}
	if body["items"] != float64(1) {
		t.Errorf("Expected 1 item, got %v", body["items"])
	}
	if body["stale"] != false {
		t.Errorf("Expected stale false, got %v", body["stale"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(&mockLoader{result: testFeedResult()}, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/api/rss")
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("Expected generated request ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rss", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("Expected request ID to be echoed, got '%s'", w.Header().Get(requestIDHeader))
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(&mockLoader{}, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodOptions, "/api/rss")

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestServiceInfoAndMetrics(t *testing.T) {
	server := newTestServer(&mockLoader{}, &mockRefresher{}, ServerOptions{})

	w := doRequest(server, http.MethodGet, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/rss") {
		t.Errorf("Unexpected service info %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(server, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("Expected metrics status 200, got %d", w.Code)
	}

	w = doRequest(server, http.MethodGet, "/favicon.ico")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected favicon status 204, got %d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatalf("Failed to write asset: %v", err)
	}

	server := newTestServer(&mockLoader{}, &mockRefresher{}, ServerOptions{StaticDir: dir})

	w := doRequest(server, http.MethodGet, "/app.js")
	if w.Code != http.StatusOK || w.Body.String() != "console.log(1)" {
		t.Errorf("Expected asset, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(server, http.MethodGet, "/posts/some-route")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "app") {
		t.Errorf("Expected index fallback, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(server, http.MethodGet, "/api/unknown")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown API path, got %d", w.Code)
	}
}

func TestAccessLogIncludesResponseBody(t *testing.T) {
	var logs bytes.Buffer
	previous := gin.DefaultWriter
	gin.DefaultWriter = &logs
	defer func() { gin.DefaultWriter = previous }()

	server := newTestServer(&mockLoader{err: errors.New("boom")}, &mockRefresher{}, ServerOptions{})

	doRequest(server, http.MethodGet, "/api/rss")
	doRequest(server, http.MethodGet, "/health")

	line := logs.String()
	if !strings.Contains(line, "GET /api/rss 500") {
		t.Errorf("Expected access log line for /api/rss, got %q", line)
	}
	if !strings.Contains(line, `:: {"message":"Failed to fetch RSS feed","error":"boom"}`) {
		t.Errorf("Expected response body in access log, got %q", line)
	}
	if strings.Contains(line, "/health") {
		t.Errorf("Expected non-API paths to be skipped, got %q", line)
	}
}

func TestSummarizeBody(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{"short", `{"status":"ok"}`, `{"status":"ok"}`},
		{"whitespace", "{\n  \"status\": \"ok\"\n}", `{ "status": "ok" }`},
		{"empty", "", ""},
		{"exact limit", strings.Repeat("a", logBodyLimit), strings.Repeat("a", logBodyLimit)},
		{"long", strings.Repeat("a", 200), strings.Repeat("a", logBodyLimit-1) + "…"},
		{"multibyte", strings.Repeat("\u00e9", 100), strings.Repeat("\u00e9", logBodyLimit-1) + "…"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := summarizeBody(tc.body); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
