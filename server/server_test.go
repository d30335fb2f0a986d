package server

import (
	"bytes"
	"context"
	"net"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/config"
	"github.com/brettbedarf/webtree/seed"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.AllowOrigins = []string{"http://localhost:3000"}
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(createTestConfig(), createTestSeed())
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTree(t *testing.T, rec *httptest.ResponseRecorder) treeResponse {
	t.Helper()
	var resp treeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func createSession(t *testing.T, h http.Handler) treeResponse {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeTree(t, rec)
}

func sessionURL(id, rest string) string {
	return "/api/v1/sessions/" + id + rest
}

func names(tr webtree.Tree) []string {
	out := make([]string, len(tr))
	for i, e := range tr {
		out[i] = e.Name
	}
	return out
}

func TestServer_Ping(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestServer(t).Handler(), http.MethodGet, "/api/v1/ping", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestServer_CreateSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp := createSession(t, srv.Handler())

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, uint64(0), resp.Version)
	assert.Equal(t, []string{"app", "package.json"}, names(resp.Tree))
	assert.Equal(t, 1, srv.Sessions().Len())

	rec := doJSON(t, srv.Handler(), http.MethodGet, sessionURL(resp.ID, "/tree"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp, decodeTree(t, rec))
}

func TestServer_UnknownSession(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	rec := doJSON(t, h, http.MethodGet, sessionURL("3f2504e0-4f89-11d3-9a0c-0305e82c3301", "/tree"), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session not found")
}

func TestServer_AddEntry(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	id := createSession(t, h).ID

	rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
		entryRequest{Prefix: "app", Name: "layout.tsx", Type: "file"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeTree(t, rec)
	assert.Equal(t, uint64(1), resp.Version)
	assert.Equal(t, []string{"page.tsx", "layout.tsx"}, names(resp.Tree[0].Items))

	t.Run("Duplicate", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "app", Name: "layout.tsx", Type: "file"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"message":"file named layout.tsx is already present","reason":"duplicate"}`, rec.Body.String())
	})

	t.Run("SameNameOtherKind", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "app", Name: "layout.tsx", Type: "folder"})

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("EmptyName", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "", Name: "", Type: "folder"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reason":"empty"`)
	})

	t.Run("NameWithSeparator", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "", Name: "a/b", Type: "file"})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"message":"file name must not contain /","reason":"invalid"}`, rec.Body.String())
	})

	t.Run("StalePrefix", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "gone", Name: "x", Type: "file"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("UnknownType", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
			entryRequest{Prefix: "", Name: "x", Type: "symlink"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingType", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"), map[string]string{"name": "x"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_RenameEntry(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	id := createSession(t, h).ID
	rec := doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"), entryRequest{Prefix: "", Name: "lib", Type: "folder"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		req    entryRequest
		status int
	}{
		{"Duplicate", entryRequest{Prefix: "app", Name: "lib", Type: "folder"}, http.StatusUnprocessableEntity},
		{"Unchanged", entryRequest{Prefix: "app", Name: "app", Type: "folder"}, http.StatusUnprocessableEntity},
		{"Empty", entryRequest{Prefix: "app", Name: "", Type: "folder"}, http.StatusUnprocessableEntity},
		{"UnchangedNested", entryRequest{Prefix: "app/page.tsx", Name: "page.tsx", Type: "file"}, http.StatusUnprocessableEntity},
		{"WrongKind", entryRequest{Prefix: "app", Name: "src", Type: "file"}, http.StatusConflict},
		{"NameWithSeparator", entryRequest{Prefix: "app", Name: "x/y", Type: "folder"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPatch, sessionURL(id, "/entries"), tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec = doJSON(t, h, http.MethodPatch, sessionURL(id, "/entries"),
		entryRequest{Prefix: "app", Name: "src", Type: "folder"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"src", "package.json", "lib"}, names(decodeTree(t, rec).Tree))

	rec = doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"),
		entryRequest{Prefix: "app", Name: "x", Type: "file"})
	assert.Equal(t, http.StatusConflict, rec.Code, "former path no longer resolves")
}

func TestServer_RemoveEntry(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	id := createSession(t, h).ID

	rec := doJSON(t, h, http.MethodDelete, sessionURL(id, "/entries?type=file&prefix=app"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "app is a folder")

	rec = doJSON(t, h, http.MethodDelete, sessionURL(id, "/entries?prefix=app"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"package.json"}, names(decodeTree(t, rec).Tree))

	rec = doJSON(t, h, http.MethodDelete, sessionURL(id, "/entries?prefix=app/page.tsx"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "descendants are gone")
}

func TestServer_Presence(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	id := createSession(t, h).ID

	tests := []struct {
		query string
		want  bool
	}{
		{"prefix=&name=package.json&type=file", true},
		{"prefix=&name=package.json&type=folder", false},
		{"prefix=app&name=page.tsx&type=file", true},
		{"prefix=app/page.tsx&name=page.tsx&type=file&rename=true", false},
		{"prefix=nope&name=x&type=file", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, sessionURL(id, "/presence?"+tt.query), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Present bool `json:"present"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Present)
		})
	}

	rec := doJSON(t, h, http.MethodGet, sessionURL(id, "/presence?name=x&type=link"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DeleteSession(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h).ID

	rec := doJSON(t, h, http.MethodDelete, sessionURL(id, ""), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, srv.Sessions().Len())

	rec = doJSON(t, h, http.MethodDelete, sessionURL(id, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Export(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()
	id := createSession(t, h).ID

	for _, format := range []seed.Format{seed.JSON, seed.YAML} {
		t.Run(string(format), func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, sessionURL(id, "/export?format="+string(format)), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			tr, err := seed.Decode(rec.Body.Bytes(), format)
			require.NoError(t, err)
			assert.Equal(t, []string{"app", "package.json"}, names(tr))
			assert.Equal(t, []string{"page.tsx"}, names(tr[0].Items))
		})
	}

	rec := doJSON(t, h, http.MethodGet, sessionURL(id, "/export?format=xml"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DialogDefaults(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestServer(t).Handler(), http.MethodGet, "/api/v1/dialog/defaults", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"file":"untitled.txt","folder":"newfolder"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	h := srv.Handler()
	id := createSession(t, h).ID
	doJSON(t, h, http.MethodPost, sessionURL(id, "/entries"), entryRequest{Prefix: "", Name: "package.json", Type: "file"})

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `webtree_operations_total{op="create_session",result="ok"} 1`)
	assert.Contains(t, body, `webtree_operations_total{op="add",result="rejected"} 1`)
	assert.Contains(t, body, `webtree_validation_rejections_total{reason="duplicate"} 1`)
	assert.Contains(t, body, "webtree_sessions 1")

	t.Run("Disabled", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.MetricsEnabled = false
		rec := doJSON(t, New(cfg, nil).Handler(), http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	h := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_Websocket(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := createSession(t, srv.Handler()).ID

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = sessionURL(id, "/ws")

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() treeResponse {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var resp treeResponse
		require.NoError(t, conn.ReadJSON(&resp))
		return resp
	}

	initial := read()
	assert.Equal(t, uint64(0), initial.Version)
	assert.Equal(t, id, initial.ID)

	rec := doJSON(t, srv.Handler(), http.MethodPost, sessionURL(id, "/entries"),
		entryRequest{Prefix: "", Name: "src", Type: "folder"})
	require.Equal(t, http.StatusCreated, rec.Code)

	update := read()
	assert.Equal(t, uint64(1), update.Version)
	assert.Equal(t, []string{"app", "package.json", "src"}, names(update.Tree))

	t.Run("RejectsForeignOrigin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestServer_ServeListener(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
