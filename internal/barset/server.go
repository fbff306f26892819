package barset

import (
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name of the bar stream.
	ServiceName = "replaychart.v1.BarStream"
	watchMethod = "/" + ServiceName + "/Watch"
)

// BarStreamServer is the server API for the BarStream service. Messages are
// google.protobuf.Struct values, so no generated stubs are needed.
type BarStreamServer interface {
	Watch(req *structpb.Struct, stream grpc.ServerStream) error
}

var barStreamDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BarStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "replaychart/v1/barstream.proto",
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(BarStreamServer).Watch(req, stream)
}

// Server implements the Watch gRPC endpoint on top of a Book.
type Server struct {
	book *Book
	log  *slog.Logger
}

var _ BarStreamServer = (*Server)(nil)

// NewServer creates a gRPC server backed by the given Book.
func NewServer(book *Book, log *slog.Logger) *Server {
	return &Server{book: book, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&barStreamDesc, s)
}

// Watch sends the current series, then every later change. With
// until_done set the stream ends after the run-finished update.
func (s *Server) Watch(reqMsg *structpb.Struct, stream grpc.ServerStream) error {
	req := decodeWatchRequest(reqMsg)

	// Subscribe before the snapshot so no change falls in between.
	subID, ch := s.book.Subscribe(16)
	defer s.book.Unsubscribe(subID)

	s.log.Info("grpc client subscribed", "subID", subID, "untilDone", req.UntilDone)

	last := s.book.Snapshot()
	if last.Version > 0 || last.Done {
		if err := s.send(stream, last); err != nil {
			return err
		}
	}
	if req.UntilDone && last.Done {
		return nil
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("grpc client disconnected", "subID", subID)
			return nil
		case upd, ok := <-ch:
			if !ok {
				return nil
			}
			if upd.Version <= last.Version && upd.Done == last.Done {
				continue
			}
			if err := s.send(stream, upd); err != nil {
				return err
			}
			last = upd
			if req.UntilDone && upd.Done {
				return nil
			}
		}
	}
}

func (s *Server) send(stream grpc.ServerStream, upd Update) error {
	msg, err := encodeUpdate(upd)
	if err != nil {
		return fmt.Errorf("encoding update %d: %w", upd.Version, err)
	}
	return stream.SendMsg(msg)
}
