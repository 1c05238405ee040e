package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultCallTimeout bounds a single call when no other timeout is configured.
const DefaultCallTimeout = 5 * time.Second

// Client reads the progress of a running upgrade.
type Client struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn
	// health checks whether the upgrade is still serving.
	health healthpb.HealthClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errSocketRequired is returned when the socket path is missing.
var errSocketRequired = errors.New("socket path must be provided")

// Dial creates a client for the progress socket. The connection is established
// lazily on the first call.
func Dial(_ context.Context, socketPath string, opts ...Option) (*Client, error) {
	if socketPath == "" {
		return nil, errSocketRequired
	}

	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial progress socket: %w", err)
	}

	client := &Client{
		conn:        conn,
		health:      healthpb.NewHealthClient(conn),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetProgress retrieves the current upgrade state.
func (c *Client) GetProgress(ctx context.Context) (Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	message := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, getProgressMethod, &emptypb.Empty{}, message); err != nil {
		return Snapshot{}, fmt.Errorf("get progress: %w", err)
	}

	return FromStruct(message)
}

// Serving reports whether the upgrade flow is still running.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("check health: %w", err)
	}

	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
