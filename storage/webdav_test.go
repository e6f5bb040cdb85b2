package storage

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

func newWebDAVServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)
	return srv
}

func TestWebDAVStorage_RequiresURL(t *testing.T) {
	_, err := NewWebDAVStorage(WebDAVConfig{})
	assert.Error(t, err)
}

// TestWebDAVStorageFullPath 测试路径生成逻辑
func TestWebDAVStorageFullPath(t *testing.T) {
	tests := []struct {
		rootPath    string
		storagePath string
		want        string
	}{
		{"", "images/a.jpg", "/images/a.jpg"},
		{"/media", "images/a.jpg", "/media/images/a.jpg"},
		{"", "/a.jpg", "/a.jpg"},
	}

	for _, tt := range tests {
		s := &WebDAVStorage{rootPath: tt.rootPath}
		assert.Equal(t, tt.want, s.fullPath(tt.storagePath))
	}
}

func TestWebDAVStorage_Lifecycle(t *testing.T) {
	srv := newWebDAVServer(t)
	s, err := NewWebDAVStorage(WebDAVConfig{URL: srv.URL, RootPath: "/media"})
	require.NoError(t, err)
	ctx := context.Background()

	key := "images/bob_2_0a1b2c.png"
	require.NoError(t, s.SaveWithContext(ctx, key, strings.NewReader("png-bytes")))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := s.GetWithContext(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	keys, err := s.List(ctx, "images")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, s.DeleteWithContext(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetWithContext(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteWithContext(ctx, key), ErrNotFound)
}

func TestWebDAVStorage_CanceledContext(t *testing.T) {
	srv := newWebDAVServer(t)
	s, err := NewWebDAVStorage(WebDAVConfig{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SaveWithContext(ctx, "images/a.jpg", strings.NewReader("x")), context.Canceled)
}
