package node

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func TestHTTPClient_Process(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("expected path /process, got %s", r.URL.Path)
		}
		var body processRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		_ = json.NewEncoder(w).Encode(processResponse{
			Output:    "echo: " + body.Input,
			LatencyMS: 12.5,
			Usage:     &domain.ResourceUsage{CPU: 40, Memory: 55},
		})
	}))
	defer server.Close()

	c := NewHTTPClient("node1", server.URL+"/", 5*time.Second)
	res, err := c.Process(context.Background(), domain.Request{ID: "r1", Input: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "echo: hi", res.Output)
	assert.Equal(t, "node1", res.NodeID)
	assert.Equal(t, 12500*time.Microsecond, res.Latency)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 40.0, res.Usage.CPU)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
			want: "http 503",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: "rate limited",
		},
		{
			name: "node error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(processResponse{Error: "model crashed"})
			},
			want: "model crashed",
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{"))
			},
			want: "parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewHTTPClient("n", server.URL, time.Second).Process(context.Background(), domain.Request{ID: "r"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPClient_RespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient("n", server.URL, 5*time.Second).Process(ctx, domain.Request{ID: "r"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool(t *testing.T) {
	p := NewPool()
	p.Add("node1", Echo())
	p.Add("node2", ClientFunc(func(context.Context, domain.Request) (domain.Result, error) {
		return domain.Result{}, errors.New("down")
	}))

	res, err := p.Process(context.Background(), domain.Request{Input: "ping"}, "node1")
	require.NoError(t, err)
	assert.Equal(t, "ping", res.Output)

	_, err = p.Process(context.Background(), domain.Request{}, "node2")
	assert.EqualError(t, err, "down")

	_, err = p.Process(context.Background(), domain.Request{}, "node9")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestGRPCProber(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	p, err := NewGRPCProber("passthrough:///bufnet", "",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, p.Probe(ctx))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	err = p.Probe(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}
