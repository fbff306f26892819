package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"replaychart/internal/barset"
	"replaychart/internal/chart"
	"replaychart/internal/domain"
	"replaychart/internal/httpapi"
)

func newTestServer(t *testing.T, grpcAddr string) (*barset.Book, *Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	norm, err := chart.NewNormalizer(domain.DisplayTimezone)
	require.NoError(t, err)
	book := barset.NewBook(norm, chart.DefaultStyle, logger)
	handler := httpapi.NewChartServer(book, t.TempDir(), logger).Handler()
	return book, NewServer("127.0.0.1:0", grpcAddr, handler, barset.NewServer(book, logger), logger)
}

func startServer(t *testing.T, s *Server) (cancel func(), done <-chan error) {
	t.Helper()
	require.NoError(t, s.Listen())
	ctx, cancelFn := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()
	return cancelFn, errc
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + 2*time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeHTTPAndGRPC(t *testing.T) {
	book, s := newTestServer(t, "127.0.0.1:0")
	cancel, done := startServer(t, s)

	assert.NotEqual(t, "127.0.0.1:0", s.HTTPAddr())
	require.NotEmpty(t, s.GRPCAddr())

	book.Started("run-1", []string{"a.json"})

	resp, err := http.Get("http://" + s.HTTPAddr() + "/api/status")
	require.NoError(t, err)
	var status httpapi.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "run-1", status.RunID)

	conn, err := grpc.NewClient(s.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()
	hc := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", barset.ServiceName} {
		res, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err, svc)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.Status, svc)
	}

	cancel()
	waitStopped(t, done)
}

func TestServeHTTPOnly(t *testing.T) {
	_, s := newTestServer(t, "")
	assert.Empty(t, s.GRPCAddr())

	cancel, done := startServer(t, s)
	resp, err := http.Get("http://" + s.HTTPAddr() + "/api/chart")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	waitStopped(t, done)
}

func TestShutdownEndsStreams(t *testing.T) {
	_, s := newTestServer(t, "")
	cancel, done := startServer(t, s)

	resp, err := http.Get("http://" + s.HTTPAddr() + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	start := time.Now()
	cancel()
	waitStopped(t, done)
	assert.Less(t, time.Since(start), ShutdownTimeout)
}

func TestListenError(t *testing.T) {
	_, s := newTestServer(t, "")
	require.NoError(t, s.Listen())
	defer s.httpLn.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	other := NewServer(s.HTTPAddr(), "", http.NotFoundHandler(), nil, logger)
	assert.Error(t, other.Listen())
}
