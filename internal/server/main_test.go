package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"prok/internal/config"
	"prok/internal/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Abcdef1!"

var dbSeq atomic.Int64

type testEnv struct {
	t     *testing.T
	srv   *Server
	app   *fiber.App
	db    *gorm.DB
	redis *miniredis.Miniredis
	cfg   *config.Config
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret-that-is-long-enough-1234",
		Port:              "0",
		Env:               "test",
		AllowedOrigins:    "http://localhost:5173",
		UploadDir:         t.TempDir(),
		UploadURLPrefix:   "/uploads/",
		MaxUploadSizeMB:   16,
		ProfileImageMaxMB: 5,
	}
}

// newTestEnv serves the full route table over a private in-memory sqlite
// database and a miniredis instance.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(t)
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{t: t, srv: srv, app: srv.NewApp(), db: db, redis: mr, cfg: cfg}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func (r response) str(key string) string {
	s, _ := r.body[key].(string)
	return s
}

func (r response) obj(key string) map[string]any {
	m, _ := r.body[key].(map[string]any)
	return m
}

func (e *testEnv) send(req *http.Request, token string) response {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	out := response{status: resp.StatusCode, header: resp.Header, body: map[string]any{}}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

// doJSON sends body encoded as JSON. A string body is sent verbatim.
func (e *testEnv) doJSON(method, path string, body any, token string) response {
	e.t.Helper()
	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	return e.send(req, token)
}

type formFileField struct {
	field, name string
	content     []byte
}

func (e *testEnv) doForm(method, path string, fields map[string]string, files []formFileField, token string) response {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(e.t, err)
		_, err = fw.Write(f.content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.send(req, token)
}

// signup registers username and returns its token and id.
func (e *testEnv) signup(username string) (string, uint) {
	e.t.Helper()
	resp := e.doJSON(http.MethodPost, "/api/signup", map[string]string{
		"username": username,
		"email":    username + "@test.com",
		"password": testPassword,
	}, "")
	require.Equal(e.t, fiber.StatusCreated, resp.status, resp.body)
	id, _ := resp.obj("user")["id"].(float64)
	return resp.str("access_token"), uint(id)
}

// createPost creates a JSON post and returns its id.
func (e *testEnv) createPost(token string, body map[string]any) uint {
	e.t.Helper()
	resp := e.doJSON(http.MethodPost, "/api/posts", body, token)
	require.Equal(e.t, fiber.StatusCreated, resp.status, resp.body)
	id, _ := resp.obj("post")["id"].(float64)
	return uint(id)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
