// Package otlpreceiver accepts OTLP/gRPC trace exports and hands the decoded
// spans to a SpanReceiver, usually the trace storage behind the flame views.
package otlpreceiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ErrNilReceiver is returned by NewServer when no SpanReceiver is supplied.
var ErrNilReceiver = errors.New("span receiver cannot be nil")

// SpanReceiver is the interface for storing received spans.
// Implementations must be thread-safe as Export may be called concurrently.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, spans []*tracepb.ResourceSpans) error
}

// Config holds configuration for the OTLP receiver.
type Config struct {
	Host    string // e.g., "127.0.0.1"
	Port    int    // 0 for ephemeral port assignment
	Verbose bool   // log every export
}

// Stats counts what the server has accepted since it was created.
type Stats struct {
	Requests uint64 `json:"requests"`
	Spans    uint64 `json:"spans"`
	Failures uint64 `json:"failures"`
}

// Server is the OTLP gRPC server that receives trace data.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	traces     *traceService
	stopOnce   sync.Once
	stopChan   chan struct{}
	stopDone   chan struct{}
}

// NewServer binds the configured host and port (port 0 picks an ephemeral one)
// and registers the OTLP trace service plus the standard gRPC health service.
func NewServer(cfg Config, receiver SpanReceiver) (*Server, error) {
	if receiver == nil {
		return nil, ErrNilReceiver
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		listener:   listener,
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		traces:     &traceService{receiver: receiver, verbose: cfg.Verbose},
		stopChan:   make(chan struct{}),
		stopDone:   make(chan struct{}, 1),
	}

	collectortrace.RegisterTraceServiceServer(s.grpcServer, s.traces)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(collectortrace.TraceService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s, nil
}

// Start serves OTLP requests until Stop is called or ctx is cancelled.
// It should typically be run in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
	}()

	err := s.grpcServer.Serve(s.listener)
	s.stopDone <- struct{}{}
	return err
}

// Stop initiates graceful shutdown of the server.
// Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		close(s.stopChan)
	})
}

// StopWait stops the server and waits for Start to return.
func (s *Server) StopWait() {
	s.Stop()
	<-s.stopDone
}

// Endpoint returns the actual listening address, e.g. "127.0.0.1:54321".
func (s *Server) Endpoint() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stats returns export counters.
func (s *Server) Stats() Stats {
	return Stats{
		Requests: s.traces.requests.Load(),
		Spans:    s.traces.spans.Load(),
		Failures: s.traces.failures.Load(),
	}
}

// traceService implements the OTLP TraceService gRPC interface.
type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	receiver SpanReceiver
	verbose  bool

	requests atomic.Uint64
	spans    atomic.Uint64
	failures atomic.Uint64
}

// Export handles incoming trace export requests from OTLP clients.
func (t *traceService) Export(
	ctx context.Context,
	req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	t.requests.Add(1)

	n := countSpans(req.ResourceSpans)
	if err := t.receiver.ReceiveSpans(ctx, req.ResourceSpans); err != nil {
		t.failures.Add(1)
		return nil, status.Errorf(codes.Internal, "failed to receive spans: %v", err)
	}
	t.spans.Add(uint64(n))

	if t.verbose {
		log.Printf("📥 received %d spans in %d resource groups", n, len(req.ResourceSpans))
	}
	return &collectortrace.ExportTraceServiceResponse{}, nil
}

func countSpans(resourceSpans []*tracepb.ResourceSpans) int {
	n := 0
	for _, rs := range resourceSpans {
		for _, ss := range rs.GetScopeSpans() {
			n += len(ss.GetSpans())
		}
	}
	return n
}
