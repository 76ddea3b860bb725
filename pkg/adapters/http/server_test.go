package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/internal/demo"
	"github.com/aretw0/tessera/pkg/observability"
	"github.com/aretw0/tessera/pkg/segment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	c, err := demo.New()
	require.NoError(t, err)
	t.Cleanup(c.Destroy)

	handler, stop, err := NewHandler(c, opts...)
	require.NoError(t, err)
	t.Cleanup(stop)
	return handler
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, "GET", "/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "tessera-http", info["app"])
	assert.NotEmpty(t, info["container_id"])
}

func TestDispatchAndState(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "POST", "/dispatch", `{"type":"todos/add","payload":"milk"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"changed":true,"namespaces":["todos"]}`, w.Body.String())

	w = do(t, h, "POST", "/dispatch", `{"type":"nope"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":false}`, w.Body.String())

	w = do(t, h, "GET", "/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"todos":["milk"]}`, w.Body.String())

	w = do(t, h, "GET", "/state/todos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["milk"]`, w.Body.String())

	w = do(t, h, "GET", "/state/tasks", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/dispatch", `{"payload":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSegmentsAndActions(t *testing.T) {
	h := newTestHandler(t)

	w := do(t, h, "GET", "/segments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"tasks","status":"unloaded"}]`, w.Body.String())

	w = do(t, h, "POST", "/actions/tasks.add", `{"payload":"write docs"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "POST", "/segments/tasks/load", `{"context":{"seed":["one"]}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"id":"tasks","status":"loaded"}`, w.Body.String())

	w = do(t, h, "POST", "/segments/missing/load", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, "GET", "/actions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, []string{"add", "insert", "pending", "remove", "toggle"}, listed["tasks"])
	assert.Equal(t, []string{"add", "clear"}, listed["todos"])

	w = do(t, h, "POST", "/actions/tasks.add", `{"payload":{"id":"t2","title":"two"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, []string{"tasks"}, resp.Namespaces)

	w = do(t, h, "POST", "/actions/tasks.pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":false,"result":2}`, w.Body.String())

	w = do(t, h, "GET", "/state/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2, "each add stores one task")
	assert.Equal(t, "t2", tasks[1]["id"])

	w = do(t, h, "POST", "/actions/tasks.add", `{"payload":"  "}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics("", reg)
	require.NoError(t, err)

	c, err := demo.New(tessera.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, err)

	h, stop, err := NewHandler(c, WithMetrics(reg))
	require.NoError(t, err)
	defer stop()

	w := do(t, h, "POST", "/segments/tasks/load", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tessera_segments_loading 0")
	assert.Contains(t, w.Body.String(), `tessera_segment_loads_total{result="loaded",segment_id="tasks"} 1`)

	hNoMetrics := newTestHandler(t)
	w = do(t, hNoMetrics, "GET", "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDestroyedContainer(t *testing.T) {
	c, err := demo.New()
	require.NoError(t, err)
	h, stop, err := NewHandler(c)
	require.NoError(t, err)
	defer stop()

	c.Destroy()
	w := do(t, h, "GET", "/state", "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestSubscribeEvents_StreamsDiffs(t *testing.T) {
	c, err := demo.New()
	require.NoError(t, err)
	server, err := NewServer(c)
	require.NoError(t, err)
	unsubscribe, err := c.Subscribe(server.broadcastDiff)
	require.NoError(t, err)
	defer unsubscribe()
	handler := server.Routes()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wAll := httptest.NewRecorder()
	wTasks := httptest.NewRecorder()
	doneAll := make(chan struct{})
	doneTasks := make(chan struct{})
	go func() {
		defer close(doneAll)
		handler.ServeHTTP(wAll, httptest.NewRequest("GET", "/events", nil).WithContext(ctx))
	}()
	go func() {
		defer close(doneTasks)
		handler.ServeHTTP(wTasks, httptest.NewRequest("GET", "/events?watch=tasks", nil).WithContext(ctx))
	}()

	require.Eventually(t, func() bool { return server.Streams.Len() == 2 }, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest("POST", "/dispatch", bytes.NewReader([]byte(`{"type":"todos/add","payload":"milk"}`)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	_, err = c.LoadSegment(context.Background(), demo.TasksSegment, segment.SkipOnLoaded())
	require.NoError(t, err)

	// Give the stream loops a moment to write, then stop them.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-doneAll
	<-doneTasks

	all := wAll.Body.String()
	assert.Contains(t, all, "event: ping")
	assert.Contains(t, all, `"namespaces":["todos"]`)
	assert.Contains(t, all, `"namespaces":["tasks"]`)

	tasksOnly := wTasks.Body.String()
	assert.NotContains(t, tasksOnly, `"namespaces":["todos"]`)
	assert.Contains(t, tasksOnly, `"namespaces":["tasks"]`)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe([]string{"a"})
	other, cancelOther := sm.Subscribe(nil)
	defer cancelOther()

	sm.Broadcast([]byte("b-only"), []string{"b"})
	sm.Broadcast([]byte("a-and-b"), []string{"a", "b"})

	assert.Equal(t, []byte("a-and-b"), <-ch)
	assert.Equal(t, []byte("b-only"), <-other)
	assert.Equal(t, []byte("a-and-b"), <-other)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 1, sm.Len())
}
