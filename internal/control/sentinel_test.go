package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/core/config"
	"github.com/vietddude/sentinel/internal/core/domain"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Nodes: []config.NodeConfig{{Name: "a"}, {Name: "b"}},
	}
	cfg.ApplyDefaults()
	cfg.Server.Port = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSentinel_Lifecycle(t *testing.T) {
	app, err := NewSentinel(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Nil(t, app.validator, "no advisory endpoint disables validation")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx))

	resp, err := app.Gateway().Handle(ctx, domain.Request{Input: "ping"})
	require.NoError(t, err)
	assert.Equal(t, "ping", resp.Output)
	assert.Equal(t, "a", resp.NodeID)
	assert.NotEmpty(t, resp.RequestID)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, app.Stop(stopCtx))
}

func TestSentinel_HTTPRoundTrip(t *testing.T) {
	app, err := NewSentinel(testConfig(t))
	require.NoError(t, err)

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/process", "application/json", strings.NewReader(`{"input":"hello"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body domain.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "hello", body.Output)
	assert.Equal(t, res.Header.Get("X-Request-ID"), body.RequestID)

	put, err := http.NewRequest(http.MethodPut, ts.URL+"/state/knowledge/fact", strings.NewReader(`{"value":"v1"}`))
	require.NoError(t, err)
	res2, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	res2.Body.Close()
	require.Equal(t, http.StatusOK, res2.StatusCode)

	snap, err := http.Post(ts.URL+"/snapshots", "application/json", nil)
	require.NoError(t, err)
	snap.Body.Close()
	assert.Equal(t, http.StatusCreated, snap.StatusCode)
	assert.Len(t, app.rollback.History(), 1)
}
