package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatinsight/chat-insight/internal/cache/memory"
	"github.com/chatinsight/chat-insight/internal/service"
	"github.com/chatinsight/chat-insight/internal/types"
)

type fakeLoader struct {
	calls atomic.Int32
	rel   *types.Relations
	err   error
}

func (f *fakeLoader) Load(context.Context) (*types.Relations, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.rel, nil
}

func sampleRelations() *types.Relations {
	return &types.Relations{
		Messages: []types.MessageRecord{
			{ConversationID: "c1", NodeID: "root", ChildrenIDs: []string{"a"}},
			{ConversationID: "c1", NodeID: "a", ParentID: types.StringPtr("root"), ChildrenIDs: []string{"b"}, Role: types.StringPtr("user")},
			{ConversationID: "c1", NodeID: "b", ParentID: types.StringPtr("a"), Role: types.StringPtr("assistant")},
			{ConversationID: "c2", NodeID: "x"},
		},
		Edges: []types.EdgeRecord{
			{ConversationID: "c1", ParentID: "root", ChildID: "a"},
			{ConversationID: "c1", ParentID: "a", ChildID: "b"},
		},
	}
}

type testEnv struct {
	e      *echo.Echo
	loader *fakeLoader
	auth   *service.AuthService
	static string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>insight</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "metrics.json"), []byte(`{"ok":true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "notes.txt"), []byte("secret"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(static, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "css", "site.css"), []byte("body{}"), 0o644))

	c, err := memory.New(1 << 20)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	logger, _ := logtest.NewNullLogger()
	loader := &fakeLoader{rel: sampleRelations()}
	auth := service.NewAuthService("test-secret")
	srv := NewServer(auth, loader, c, logger, Options{StaticDir: static, DepthSample: 100, CacheTTL: time.Minute})

	e := echo.New()
	srv.Register(e)
	return &testEnv{e: e, loader: loader, auth: auth, static: static}
}

func (env *testEnv) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	for _, p := range []string{"/health", "/healthz"} {
		rec := env.do(http.MethodGet, p, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>insight</h1>", rec.Body.String())

	rec = env.do(http.MethodGet, "/metrics.json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/static/css/site.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	for _, p := range []string{"/notes.txt", "/missing.png", "/static/../notes.txt", "/static/css/../../x.css"} {
		rec = env.do(http.MethodGet, p, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.JSONEq(t, `{"error":"file not found"}`, rec.Body.String(), p)
	}
}

func TestMetricsAreCached(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	overview := body["overview"].(map[string]any)
	assert.Equal(t, float64(2), overview["total_conversations"])
	assert.Equal(t, float64(4), overview["total_messages"])

	rec = env.do(http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), env.loader.calls.Load())
}

func TestMetricsLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.loader.err = errors.New("boom")

	rec := env.do(http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestConversationDepth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/conversations/c1/depth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_id":"c1","depth":2,"messages":3,"edges":2}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/conversations/c2/depth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversation_id":"c2","depth":0,"messages":1,"edges":0}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/conversations/nope/depth", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/refresh", http.Header{"Authorization": {"Bearer not-a-jwt"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/refresh", http.Header{"Authorization": {"Basic abc"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshReloads(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	token, err := env.auth.IssueToken("admin", time.Hour)
	require.NoError(t, err)

	env.loader.rel = &types.Relations{Messages: []types.MessageRecord{{ConversationID: "only", NodeID: "n"}}}
	rec = env.do(http.MethodPost, "/api/refresh", http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"conversations":1,"messages":1,"edges":0}`, rec.Body.String())
	assert.Equal(t, int32(2), env.loader.calls.Load())

	rec = env.do(http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["overview"].(map[string]any)["total_conversations"])
}
