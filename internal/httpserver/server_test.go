package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *storage.SQLiteStore, http.Handler) {
	t.Helper()
	store, db, err := storage.Open(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	engine := logquery.NewEngine(store, logquery.Options{Location: time.UTC})
	srv := NewServer("", store, engine, opts)
	return srv, store, srv.Handler()
}

func addEvent(t *testing.T, store *storage.SQLiteStore, logger, key, login string) storage.Event {
	t.Helper()
	e := storage.Event{
		Timestamp:  baseTime,
		Logger:     logger,
		Level:      storage.LevelInfo,
		MessageKey: key,
		Message:    "Login by {login}",
		Context:    map[string]string{"login": login},
	}
	require.NoError(t, store.AddEvent(context.Background(), &e))
	return e
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	addEvent(t, store, "UserLogger", "user_login", "admin")

	w := get(t, h, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["event_count"])
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	_, _, h := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Contains(t, []int{http.StatusMethodNotAllowed, http.StatusNotFound}, w.Code)
}

func TestEventsEndpoint_CollapsesAndSetsHeaders(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	for i := 0; i < 5; i++ {
		addEvent(t, store, "PostLogger", "post_updated", "admin")
	}

	w := get(t, h, "/api/events?per_page=10&page=1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "5", w.Header().Get("X-WP-Total"))
	assert.Equal(t, "1", w.Header().Get("X-WP-TotalPages"))
	assert.Equal(t, "5", w.Header().Get("X-Max-Id-First-Page"))
	assert.Empty(t, w.Header().Get("Link"))

	var res logquery.QueryResult
	decode(t, w, &res)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(5), res.Rows[0].ID)
	assert.Equal(t, 5, res.Rows[0].SubsequentOccasionsCount)
	assert.Equal(t, "Login by admin", res.Rows[0].Message)
	assert.Equal(t, "Login by {login}", res.Rows[0].MessageUninterpolated)
}

func TestEventsEndpoint_PageLinks(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	for i := 0; i < 7; i++ {
		addEvent(t, store, "PostLogger", "post_updated", strconv.Itoa(i))
	}

	w := get(t, h, "/api/events?per_page=3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-WP-TotalPages"))
	assert.Equal(t,
		`<http://example.com/api/events?max_id_first_page=7&page=2&per_page=3>; rel="next"`,
		w.Header().Get("Link"))

	w = get(t, h, "/api/events?per_page=3&page=2&max_id_first_page=7")
	require.Equal(t, http.StatusOK, w.Code)
	link := w.Header().Get("Link")
	assert.Contains(t, link, `page=1&per_page=3>; rel="prev"`)
	assert.Contains(t, link, `page=3&per_page=3>; rel="next"`)
}

func TestEventsEndpoint_ValidationError(t *testing.T) {
	_, _, h := newTestServer(t, Options{})

	w := get(t, h, "/api/events?per_page=abc")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "validation", body["code"])
	assert.Equal(t, "per_page", body["param"])
	assert.NotEmpty(t, body["message"])
}

func TestEventsEndpoint_ArrayParams(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	addEvent(t, store, "PostLogger", "post_updated", "a")
	addEvent(t, store, "MediaLogger", "media_uploaded", "b")
	addEvent(t, store, "CommentsLogger", "comment_added", "c")

	w := get(t, h, "/api/events?loggers[]=PostLogger&loggers[]=CommentsLogger")
	require.Equal(t, http.StatusOK, w.Code)

	var res logquery.QueryResult
	decode(t, w, &res)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "CommentsLogger", res.Rows[0].Logger)
	assert.Equal(t, "PostLogger", res.Rows[1].Logger)
}

func TestEventsEndpoint_RestrictedLoggers(t *testing.T) {
	_, store, h := newTestServer(t, Options{RestrictedLoggers: []string{"UserLogger"}})
	addEvent(t, store, "PostLogger", "post_updated", "a")
	user := addEvent(t, store, "UserLogger", "user_login", "b")

	w := get(t, h, "/api/events")
	require.Equal(t, http.StatusOK, w.Code)
	var res logquery.QueryResult
	decode(t, w, &res)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "PostLogger", res.Rows[0].Logger)

	w = get(t, h, "/api/events/"+strconv.FormatInt(user.ID, 10))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventsEndpoint_AuthToken(t *testing.T) {
	_, store, h := newTestServer(t, Options{AuthToken: "s3cret", RestrictedLoggers: []string{"UserLogger"}})
	addEvent(t, store, "UserLogger", "user_login", "admin")

	w := get(t, h, "/api/events")
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "permission", body["code"])

	w = get(t, h, "/api/events", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(t, h, "/api/events", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	var res logquery.QueryResult
	decode(t, w, &res)
	assert.Len(t, res.Rows, 1)

	w = get(t, h, "/api/events/1", TokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventEndpoint(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	e := addEvent(t, store, "PostLogger", "post_updated", "editor")

	w := get(t, h, "/api/events/"+strconv.FormatInt(e.ID, 10))
	require.Equal(t, http.StatusOK, w.Code)
	var row logquery.ResultRow
	decode(t, w, &row)
	assert.Equal(t, e.ID, row.ID)
	assert.Equal(t, map[string]string{"login": "editor"}, row.Context)

	w = get(t, h, "/api/events/999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, h, "/api/events/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "id", body["param"])
}

func TestHasUpdatesEndpoint(t *testing.T) {
	_, store, h := newTestServer(t, Options{})
	for i := 0; i < 4; i++ {
		addEvent(t, store, "PostLogger", "post_updated", strconv.Itoa(i))
	}

	w := get(t, h, "/api/has-updates?since_id=1")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]int64
	decode(t, w, &body)
	assert.Equal(t, int64(3), body["new_events_count"])

	w = get(t, h, "/api/has-updates")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type brokenSource struct{}

func (brokenSource) ScanEvents(context.Context, storage.Query) ([]storage.Event, error) {
	return nil, errors.New("database is locked")
}

func (brokenSource) CountEvents(context.Context, storage.Query) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestEventsEndpoint_StorageError(t *testing.T) {
	src := brokenSource{}
	srv := NewServer("", src, logquery.NewEngine(src, logquery.Options{}), Options{})
	h := srv.Handler()

	w := get(t, h, "/api/events")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "storage", body["code"])
	assert.NotContains(t, body["message"], "locked")

	w = get(t, h, "/api/health")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv, _, _ := newTestServer(t, Options{})
	srv.addr = "127.0.0.1:0"
	require.NoError(t, srv.Start())
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
