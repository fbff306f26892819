package barset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client connects to a BarStream gRPC server.
type Client struct {
	addr string
	opts []grpc.DialOption
	log  *slog.Logger
}

// NewClient creates a client targeting the given gRPC address. Extra dial
// options are appended after insecure transport credentials.
func NewClient(addr string, log *slog.Logger, opts ...grpc.DialOption) *Client {
	return &Client{addr: addr, opts: opts, log: log}
}

// Watch streams updates from the server to fn. It blocks until the stream
// ends, ctx is cancelled, or fn returns an error. With untilDone set the
// server closes the stream after the run-finished update.
func (c *Client) Watch(ctx context.Context, untilDone bool, fn func(Update) error) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, c.opts...)
	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	defer conn.Close()

	stream, err := conn.NewStream(ctx, &barStreamDesc.Streams[0], watchMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	req, err := encodeWatchRequest(watchRequest{UntilDone: untilDone})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing send: %w", err)
	}

	c.log.Info("connected to bar stream", "addr", c.addr)

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receiving update: %w", err)
		}
		upd, err := decodeUpdate(msg)
		if err != nil {
			return fmt.Errorf("decoding update: %w", err)
		}
		if err := fn(upd); err != nil {
			return err
		}
	}
}

// Mirror watches the server until it reports done and returns the final
// update.
func (c *Client) Mirror(ctx context.Context) (Update, error) {
	var last Update
	err := c.Watch(ctx, true, func(u Update) error {
		last = u
		return nil
	})
	return last, err
}
