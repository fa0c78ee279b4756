package semantic

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tributary-ai-services/leakwatch/pkg/rpc"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

// Judge service wire names.
const (
	JudgeServiceName    = "leakwatch.judge.v1.Judge"
	ClassifyMethod      = "/" + JudgeServiceName + "/Classify"
	classifyMethodShort = "Classify"
)

// ClassifyRequest is the request of the Judge/Classify RPC.
type ClassifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

// ClassifyResponse is the response of the Judge/Classify RPC.
type ClassifyResponse struct {
	Scores []scan.LabelScore `json:"scores"`
}

// RemoteJudge calls an NLI sidecar over gRPC.
type RemoteJudge struct {
	conn grpc.ClientConnInterface
}

// NewRemoteJudge creates a judge on an established connection.
func NewRemoteJudge(conn grpc.ClientConnInterface) *RemoteJudge {
	return &RemoteJudge{conn: conn}
}

// Classify implements scan.Judge
func (r *RemoteJudge) Classify(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
	req := &ClassifyRequest{Text: text, Labels: labels}
	resp := &ClassifyResponse{}
	if err := r.conn.Invoke(ctx, ClassifyMethod, req, resp, grpc.ForceCodec(rpc.JSONCodec{})); err != nil {
		return nil, fmt.Errorf("remote judge: %w", err)
	}

	scores := make(map[string]float64, len(resp.Scores))
	for _, s := range resp.Scores {
		scores[s.Label] += s.Score
	}
	return normalize(scores, labels)
}

// judgeServer serves any scan.Judge on the Judge service.
type judgeServer interface {
	Classify(ctx context.Context, req *ClassifyRequest) (*ClassifyResponse, error)
}

type judgeAdapter struct {
	judge scan.Judge
}

func (a judgeAdapter) Classify(ctx context.Context, req *ClassifyRequest) (*ClassifyResponse, error) {
	if req.Text == "" || len(req.Labels) == 0 {
		return nil, status.Error(codes.InvalidArgument, "text and labels are required")
	}
	dist, err := a.judge.Classify(ctx, req.Text, req.Labels)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "classify: %v", err)
	}
	return &ClassifyResponse{Scores: dist}, nil
}

// RegisterJudgeServer exposes judge on s as the Judge service, so one
// process can front a model for several scanners.
func RegisterJudgeServer(s grpc.ServiceRegistrar, judge scan.Judge) {
	s.RegisterService(&judgeServiceDesc, judgeAdapter{judge: judge})
}

var judgeServiceDesc = grpc.ServiceDesc{
	ServiceName: JudgeServiceName,
	HandlerType: (*judgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: classifyMethodShort,
			Handler:    classifyHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClassifyRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(judgeServer).Classify(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(judgeServer).Classify(ctx, req.(*ClassifyRequest))
	}
	return interceptor(ctx, req, info, handler)
}
