package semantic

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

func dialJudge(t *testing.T, judge scan.Judge) *RemoteJudge {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterJudgeServer(srv, judge)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewRemoteJudge(conn)
}

func TestRemoteJudgeRoundTrip(t *testing.T) {
	var gotText string
	var gotLabels []string
	remote := dialJudge(t, scan.JudgeFunc(func(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
		gotText, gotLabels = text, labels
		return scan.NewDistribution(map[string]float64{"real": 0.6, "fake": 0.2}), nil
	}))

	dist, err := remote.Classify(context.Background(), "pan ABCPE1234F", testLabels)
	require.NoError(t, err)
	assert.Equal(t, "pan ABCPE1234F", gotText)
	assert.Equal(t, testLabels, gotLabels)
	assert.Equal(t, "real", dist.Top().Label)
	assert.InDelta(t, 0.75, dist.Score("real"), 1e-9)
}

func TestRemoteJudgeServerError(t *testing.T) {
	remote := dialJudge(t, scan.JudgeFunc(func(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
		return nil, errors.New("model not loaded")
	}))

	_, err := remote.Classify(context.Background(), "text", testLabels)
	assert.Error(t, err)

	_, err = remote.Classify(context.Background(), "", testLabels)
	assert.Error(t, err)
}
