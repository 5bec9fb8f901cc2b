package statestore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/rollback"
)

var (
	_ rollback.Collaborator   = (*MemoryStore)(nil)
	_ rollback.StateValidator = (*MemoryStore)(nil)
	_ rollback.Collaborator   = (*RemoteStore)(nil)
	_ rollback.StateValidator = (*RemoteStore)(nil)
)

func TestMemoryStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("knowledge")
	s.Set("b", "2")
	s.Set("a", "1")
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	blob, err := s.ExportState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":"2"}`, string(blob))

	s.Set("a", "changed")
	s.Delete("b")
	require.NoError(t, s.ImportState(ctx, blob))

	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = s.Get("b")
	assert.True(t, ok)
}

func TestMemoryStore_RejectsBadState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("model")
	s.Set("k", "v")

	assert.Error(t, s.ValidateState(ctx, []byte("[1,2]")))
	assert.Error(t, s.ImportState(ctx, []byte("nope")))
	v, _ := s.Get("k")
	assert.Equal(t, "v", v)

	require.NoError(t, s.ImportState(ctx, []byte("null")))
	assert.Empty(t, s.Keys())
}

func TestMemoryStore_WithRollbackManager(t *testing.T) {
	ctx := context.Background()
	kb := NewMemoryStore("knowledge")
	m, err := rollback.NewManager(5, nil, kb)
	require.NoError(t, err)

	kb.Set("fact", "v1")
	_, err = m.SaveSnapshot(ctx)
	require.NoError(t, err)
	kb.Set("fact", "v2")
	_, err = m.SaveSnapshot(ctx)
	require.NoError(t, err)

	ok, err := m.RollbackToPrevious(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := kb.Get("fact")
	assert.Equal(t, "v1", v)
}

func TestRemoteStore(t *testing.T) {
	var (
		mu    sync.Mutex
		state = []byte(`{"weights":"w1"}`)
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write(state)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			state = body
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	s := NewRemoteStore("model", server.URL, time.Second)
	assert.Equal(t, "model", s.Name())

	blob, err := s.ExportState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weights":"w1"}`, string(blob))

	require.NoError(t, s.ImportState(ctx, []byte(`{"weights":"w0"}`)))
	blob, err = s.ExportState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weights":"w0"}`, string(blob))

	assert.Error(t, s.ValidateState(ctx, []byte("{")))
}

func TestRemoteStore_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "read only", http.StatusForbidden)
	}))
	defer server.Close()

	s := NewRemoteStore("model", server.URL, time.Second)
	_, err := s.ExportState(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.ImportState(context.Background(), []byte("{}")))
}
