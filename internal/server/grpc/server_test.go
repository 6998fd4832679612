package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/api"
	"github.com/dmitrijs2005/linkvault/internal/server/auth"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startBufServer(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return conn
}

func TestServer_OverTheWire(t *testing.T) {
	q := &fakeQuota{acct: &models.QuotaAccount{LimitBytes: 100, UsedBytes: 40}}
	s := newServer(Services{Quota: q})
	conn := startBufServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, api.FullMethod(api.MethodPing), msg(t, api.M{}), out))
	assert.Equal(t, "OK", api.String(out, "status"))

	err := conn.Invoke(ctx, api.FullMethod(api.MethodGetQuota), msg(t, api.M{}), new(structpb.Struct))
	assertCode(t, err, codes.Unauthenticated)

	token, err := auth.GenerateToken("alice", []byte("k"), time.Minute)
	require.NoError(t, err)
	authCtx := metadata.AppendToOutgoingContext(ctx, api.AccessTokenKey, token)

	out = new(structpb.Struct)
	require.NoError(t, conn.Invoke(authCtx, api.FullMethod(api.MethodGetQuota), msg(t, api.M{}), out))
	assert.Equal(t, int64(60), api.Int(out, "remaining_bytes"))
}

func TestRun_BadAddress(t *testing.T) {
	s := NewGRPCServer("256.0.0.1:-1", "", newServer(Services{}).logger, Services{}, "k")
	err := s.Run(context.Background())
	assert.Error(t, err)
}
