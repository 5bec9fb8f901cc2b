package node

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCProber checks a node through the standard gRPC health protocol.
type GRPCProber struct {
	service string
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
}

// NewGRPCProber creates a prober for endpoint. The connection is established lazily.
func NewGRPCProber(endpoint, service string, opts ...grpc.DialOption) (*GRPCProber, error) {
	target := endpoint
	if len(opts) == 0 {
		if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
			opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
			target = strings.TrimPrefix(target, "https://")
		} else {
			opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
			target = strings.TrimPrefix(target, "http://")
		}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return &GRPCProber{
		service: service,
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
	}, nil
}

// Probe succeeds only when the node reports SERVING.
func (p *GRPCProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("grpc health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc health status %s", resp.GetStatus())
	}
	return nil
}

// Close cleans up resources.
func (p *GRPCProber) Close() error {
	return p.conn.Close()
}
