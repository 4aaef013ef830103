package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var ErrNotServing = errors.New("remote not serving")

// HTTPProbe checks GET {BaseURL}/health. Any 2xx answer counts as online.
type HTTPProbe struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPProbe(baseURL string, client *http.Client) *HTTPProbe {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProbe{BaseURL: strings.TrimRight(baseURL, "/"), Client: client, Timeout: 5 * time.Second}
}

func (p *HTTPProbe) Probe(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health returned %s", ErrNotServing, resp.Status)
	}
	return nil
}

// GRPCHealthProbe asks a grpc.health.v1 server whether Service is SERVING.
// An empty Service checks the server as a whole.
type GRPCHealthProbe struct {
	Service string
	Timeout time.Duration

	client healthpb.HealthClient
	conn   *grpc.ClientConn
}

// NewGRPCHealthProbe connects lazily to addr with insecure transport
// credentials. Extra dial options are appended.
func NewGRPCHealthProbe(addr string, opts ...grpc.DialOption) (*GRPCHealthProbe, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCHealthProbe{
		Timeout: 5 * time.Second,
		client:  healthpb.NewHealthClient(conn),
		conn:    conn,
	}, nil
}

func (p *GRPCHealthProbe) Probe(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProbe) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
