package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// Scan service wire names.
const (
	ScanServiceName = "leakwatch.scan.v1.ScanService"

	ScanMethod        = "/" + ScanServiceName + "/Scan"
	ScoreSourceMethod = "/" + ScanServiceName + "/ScoreSource"
	AggregateMethod   = "/" + ScanServiceName + "/Aggregate"
)

// DefaultMaxTextBytes bounds the text of one Scan request.
const DefaultMaxTextBytes = 16 << 20

// ScanRequest asks for one text to be scanned and scored.
type ScanRequest struct {
	Text     string `json:"text"`
	Mode     string `json:"mode,omitempty"`
	Filename string `json:"filename,omitempty"`
	Source   string `json:"source,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// ScanResponse carries the scan result and the source score. Findings
// hold masked values only.
type ScanResponse struct {
	Result *scan.Result       `json:"result"`
	Score  *score.SourceScore `json:"score"`
}

// ScoreSourceRequest scores findings produced elsewhere.
type ScoreSourceRequest struct {
	Findings []scan.Finding `json:"findings"`
	Channel  string         `json:"channel,omitempty"`
}

// AggregateRequest summarises source scores.
type AggregateRequest struct {
	Scores []score.SourceScore `json:"scores"`
}

// ScanServer is the server API of the scan service.
type ScanServer interface {
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
	ScoreSource(ctx context.Context, req *ScoreSourceRequest) (*score.SourceScore, error)
	Aggregate(ctx context.Context, req *AggregateRequest) (*score.Summary, error)
}

// Service implements ScanServer on a scanner and a scorer.
type Service struct {
	scanner  scan.Scanner
	scorer   *score.Scorer
	maxBytes int
	logger   *slog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithMaxTextBytes bounds the size of scanned texts
func WithMaxTextBytes(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a scan service.
func NewService(scanner scan.Scanner, scorer *score.Scorer, opts ...ServiceOption) *Service {
	s := &Service{
		scanner:  scanner,
		scorer:   scorer,
		maxBytes: DefaultMaxTextBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan implements ScanServer
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if len(req.Text) > s.maxBytes {
		return nil, status.Errorf(codes.ResourceExhausted, "text is %d bytes, limit is %d", len(req.Text), s.maxBytes)
	}
	mode, err := scan.ParseMode(req.Mode)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.scanner.Scan(ctx, req.Text, scan.Options{
		Mode:     mode,
		Filename: req.Filename,
		Source:   req.Source,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Canceled, err.Error())
	}

	sc := s.scorer.ScoreSource(result.Findings, score.ParseChannel(req.Channel))
	s.logger.Debug("scan served",
		"scan_id", result.ID,
		"source", req.Source,
		"findings", len(result.Findings),
		"ess", sc.Score,
	)
	return &ScanResponse{Result: result, Score: &sc}, nil
}

// ScoreSource implements ScanServer
func (s *Service) ScoreSource(ctx context.Context, req *ScoreSourceRequest) (*score.SourceScore, error) {
	sc := s.scorer.ScoreSource(req.Findings, score.ParseChannel(req.Channel))
	return &sc, nil
}

// Aggregate implements ScanServer
func (s *Service) Aggregate(ctx context.Context, req *AggregateRequest) (*score.Summary, error) {
	sum := s.scorer.Aggregate(req.Scores)
	return &sum, nil
}

// RegisterScanServer registers srv on s.
func RegisterScanServer(s grpc.ServiceRegistrar, srv ScanServer) {
	s.RegisterService(&scanServiceDesc, srv)
}

var scanServiceDesc = grpc.ServiceDesc{
	ServiceName: ScanServiceName,
	HandlerType: (*ScanServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Scan",
			Handler: unaryHandler(ScanMethod, func(srv ScanServer, ctx context.Context, req *ScanRequest) (any, error) {
				return srv.Scan(ctx, req)
			}),
		},
		{
			MethodName: "ScoreSource",
			Handler: unaryHandler(ScoreSourceMethod, func(srv ScanServer, ctx context.Context, req *ScoreSourceRequest) (any, error) {
				return srv.ScoreSource(ctx, req)
			}),
		},
		{
			MethodName: "Aggregate",
			Handler: unaryHandler(AggregateMethod, func(srv ScanServer, ctx context.Context, req *AggregateRequest) (any, error) {
				return srv.Aggregate(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req any](fullMethod string, call func(ScanServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScanServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScanServer), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// Client calls the scan service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a client on an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Scan scans one text remotely.
func (c *Client) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	resp := &ScanResponse{}
	if err := c.conn.Invoke(ctx, ScanMethod, req, resp, grpc.ForceCodec(JSONCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

// ScoreSource scores findings remotely.
func (c *Client) ScoreSource(ctx context.Context, req *ScoreSourceRequest) (*score.SourceScore, error) {
	resp := &score.SourceScore{}
	if err := c.conn.Invoke(ctx, ScoreSourceMethod, req, resp, grpc.ForceCodec(JSONCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

// Aggregate summarises scores remotely.
func (c *Client) Aggregate(ctx context.Context, req *AggregateRequest) (*score.Summary, error) {
	resp := &score.Summary{}
	if err := c.conn.Invoke(ctx, AggregateMethod, req, resp, grpc.ForceCodec(JSONCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}
