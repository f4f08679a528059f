package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"message-board/internal/board"
	"message-board/internal/uploads"
)

const testPage = "<!doctype html><title>board</title><p>hello</p>\n"

type testEnv struct {
	srv       *Server
	uploadDir string
}

type option func(*Config)

func withStore(s uploads.Store) option {
	return func(c *Config) { c.Uploads = s }
}

func withMaxUploadBytes(n int64) option {
	return func(c *Config) { c.MaxUploadBytes = n }
}

func withRateLimit(n int) option {
	return func(c *Config) { c.RateLimitPerMinute = n }
}

func withBoard(b *board.Board) option {
	return func(c *Config) { c.Board = b }
}

func withUploadDir(dir string) option {
	return func(c *Config) {
		store, err := uploads.NewDiskStore(dir)
		if err != nil {
			panic(err)
		}
		c.Uploads = store
	}
}

func newTestEnv(t *testing.T, opts ...option) *testEnv {
	t.Helper()
	req := require.New(t)

	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	req.NoError(os.WriteFile(page, []byte(testPage), 0o644))

	uploadDir := filepath.Join(dir, "uploads")
	store, err := uploads.NewDiskStore(uploadDir)
	req.NoError(err)

	cfg := Config{
		Addr:       "127.0.0.1:0",
		Version:    "test",
		StaticPage: page,
		Board:      board.New(),
		Uploads:    store,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := New(cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, uploadDir: uploadDir}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, r)
	return rr
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) send(message string) *httptest.ResponseRecorder {
	form := url.Values{"message": {message}}
	r := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(r)
}

func (e *testEnv) upload(path, filename string, content []byte) *httptest.ResponseRecorder {
	body, contentType := multipartBody(map[string]string{}, "file", filename, content)
	r := httptest.NewRequest(http.MethodPost, path, body)
	r.Header.Set("Content-Type", contentType)
	return e.do(r)
}

// multipartBody builds a form with plain fields and, when fileField is not
// empty, one file part.
func multipartBody(fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	if fileField != "" {
		part, _ := writer.CreateFormFile(fileField, filename)
		_, _ = part.Write(content)
	}
	_ = writer.Close()
	return body, writer.FormDataContentType()
}

// failingStore accepts nothing and finds nothing.
type failingStore struct {
	putErr  error
	pingErr error
}

func (f failingStore) Put(_ context.Context, _ string, r io.Reader) (uploads.Stored, error) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 16))
	return uploads.Stored{}, f.putErr
}

func (f failingStore) Open(context.Context, string) (*uploads.Object, error) {
	return nil, errors.New("backend offline")
}

func (f failingStore) Ping(context.Context) error {
	return f.pingErr
}
