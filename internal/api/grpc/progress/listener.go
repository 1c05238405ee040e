package progress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/plesk/debian11to12/internal/logger"
)

// socketPermissions lets only root talk to the progress socket.
const socketPermissions = 0o600

// Listener serves the progress and health services on a unix socket.
type Listener struct {
	// server is the gRPC server.
	server *grpc.Server
	// health reports the flow state.
	health *health.Server
	// path is the socket path.
	path string
	// done is closed once Serve returned.
	done chan struct{}
}

// Listen creates the socket and starts serving in the background.
// A stale socket left by a previous run is replaced.
func Listen(ctx context.Context, socketPath string, service Service) (*Listener, error) {
	if socketPath == "" {
		return nil, errSocketRequired
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}

	if err = os.Chmod(socketPath, socketPermissions); err != nil {
		_ = lis.Close()

		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	l := &Listener{
		server: grpc.NewServer(),
		health: health.NewServer(),
		path:   socketPath,
		done:   make(chan struct{}),
	}

	RegisterProgressServer(l.server, NewServer(service))
	healthpb.RegisterHealthServer(l.server, l.health)
	l.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		defer close(l.done)

		if err := l.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.ErrorKV(ctx, "Progress server stopped", "error", err)
		}
	}()

	logger.DebugKV(ctx, "Progress server listening", "socket", socketPath)

	return l, nil
}

// Path returns the socket path.
func (l *Listener) Path() string {
	return l.path
}

// Stop marks the service as not serving, stops the server and removes the socket.
func (l *Listener) Stop() error {
	l.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	l.server.GracefulStop()
	<-l.done

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove socket: %w", err)
	}

	return nil
}
