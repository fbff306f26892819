// Package api hosts the replay's network listeners: the chart HTTP API and
// the gRPC bar stream with its health service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"replaychart/internal/barset"
)

// ShutdownTimeout bounds graceful shutdown of both listeners.
const ShutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	log      *slog.Logger

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	httpLn net.Listener
	grpcLn net.Listener
}

// NewServer creates a server for handler on httpAddr and, when grpcAddr is
// non-empty, the bar stream on grpcAddr.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, streams *barset.Server, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		httpAddr:   httpAddr,
		grpcAddr:   grpcAddr,
		log:        log.With("component", "api"),
		httpServer: &http.Server{Handler: handler},
	}
	if grpcAddr != "" && streams != nil {
		s.grpcServer = grpc.NewServer()
		streams.RegisterGRPC(s.grpcServer)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
	}
	return s
}

// Listen binds both listeners without serving. Binding early lets a loader
// in the same process fetch from the server's own /data route.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	s.httpLn = ln

	if s.grpcServer != nil {
		gln, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
		s.grpcLn = gln
	}
	return nil
}

// HTTPAddr returns the bound HTTP address, or the configured one before
// Listen.
func (s *Server) HTTPAddr() string {
	if s.httpLn != nil {
		return s.httpLn.Addr().String()
	}
	return s.httpAddr
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s.grpcLn != nil {
		return s.grpcLn.Addr().String()
	}
	if s.grpcServer == nil {
		return ""
	}
	return s.grpcAddr
}

// Serve serves until ctx is cancelled, then shuts both listeners down.
// Listen is called first if it has not been.
func (s *Server) Serve(ctx context.Context) error {
	if s.httpLn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	// Request contexts derive from ctx so open SSE streams end on shutdown.
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.HTTPAddr())
		if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(barset.ServiceName, healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", s.GRPCAddr())
			if err := s.grpcServer.Serve(s.grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

func (s *Server) shutdown() {
	s.log.Info("shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("shutdown error", "error", err)
		s.httpServer.Close()
	}

	if s.grpcServer == nil {
		return
	}
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		s.log.Warn("gRPC graceful stop timed out, forcing")
		s.grpcServer.Stop()
	}
}
