package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/api"
	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeConn answers Invoke from canned replies keyed by method name.
type fakeConn struct {
	replies map[string]api.M
	errs    map[string]error

	lastMethod string
	lastReq    *structpb.Struct
}

func (f *fakeConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	f.lastMethod = method
	f.lastReq = args.(*structpb.Struct)
	if err := f.errs[method]; err != nil {
		return err
	}
	out, err := api.New(f.replies[method])
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), out)
	return nil
}

func (f *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not supported")
}

func newFakeClient(replies map[string]api.M) (*GRPCClient, *fakeConn) {
	fc := &fakeConn{replies: map[string]api.M{}, errs: map[string]error{}}
	for k, v := range replies {
		fc.replies[api.FullMethod(k)] = v
	}
	return &GRPCClient{conn: fc}, fc
}

/*************
 * accessTokenInterceptor tests
 *************/

func tokenFrom(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get(api.AccessTokenKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	c := &GRPCClient{accessToken: "A1", refreshToken: "R1"}

	var rotated []string
	c.OnTokensRefreshed(func(a, r string) { rotated = append(rotated, a, r) })

	var seen []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		seen = append(seen, method+":"+tokenFrom(ctx))
		if method == api.FullMethod(api.MethodRefreshToken) {
			assert.Equal(t, "R1", api.String(req.(*structpb.Struct), "refresh_token"))
			out, _ := api.New(api.M{"access_token": "A2", "refresh_token": "R2"})
			proto.Merge(reply.(*structpb.Struct), out)
			return nil
		}
		if tokenFrom(ctx) == "A1" {
			return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), api.FullMethod(api.MethodListLinks), &structpb.Struct{}, &structpb.Struct{}, nil, invoker)
	require.NoError(t, err)

	assert.Equal(t, []string{
		api.FullMethod(api.MethodListLinks) + ":A1",
		api.FullMethod(api.MethodRefreshToken) + ":",
		api.FullMethod(api.MethodListLinks) + ":A2",
	}, seen)
	assert.Equal(t, []string{"A2", "R2"}, rotated)

	access, refresh := c.tokens()
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R2", refresh)
}

func TestInterceptor_OtherErrorsPassThrough(t *testing.T) {
	c := &GRPCClient{accessToken: "A1", refreshToken: "R1"}
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	err := c.accessTokenInterceptor(context.Background(), api.FullMethod(api.MethodGetQuota), nil, nil, nil, invoker)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, 1, calls)
}

func TestInterceptor_NoRefreshTokenReturnsOriginal(t *testing.T) {
	c := &GRPCClient{accessToken: "A1"}
	calls := 0
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		calls++
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), api.FullMethod(api.MethodGetQuota), nil, nil, nil, invoker)
	assert.True(t, isTokenExpired(err))
	assert.Equal(t, 1, calls)
}

func TestInterceptor_RefreshFailureSurfaces(t *testing.T) {
	c := &GRPCClient{accessToken: "A1", refreshToken: "R1"}
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		if method == api.FullMethod(api.MethodRefreshToken) {
			return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
		}
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	err := c.accessTokenInterceptor(context.Background(), api.FullMethod(api.MethodGetQuota), nil, nil, nil, invoker)
	st, _ := status.FromError(err)
	assert.Equal(t, common.ErrRefreshTokenExpired.Error(), st.Message())
}

/*************
 * mapError
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
		{codes.NotFound, common.ErrorNotFound},
		{codes.AlreadyExists, common.ErrorAlreadyExists},
		{codes.InvalidArgument, common.ErrorValidation},
		{codes.ResourceExhausted, common.ErrQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.ErrorIs(t, c.mapError(status.Error(tt.code, "x")), tt.want)
		})
	}

	assert.Nil(t, c.mapError(nil))
	assert.ErrorContains(t, c.mapError(status.Error(codes.Internal, "boom")), "rpc error")
	plain := errors.New("plain")
	assert.Same(t, plain, c.mapError(plain))
}

/*************
 * methods
 *************/

func TestPing(t *testing.T) {
	c, _ := newFakeClient(map[string]api.M{api.MethodPing: {"status": "OK"}})
	require.NoError(t, c.Ping(context.Background()))

	c, _ = newFakeClient(map[string]api.M{api.MethodPing: {"status": "DOWN"}})
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestRegisterAndLogin(t *testing.T) {
	c, fc := newFakeClient(map[string]api.M{
		api.MethodRegister: {"user_id": "u1", "limit_bytes": int64(1 << 30)},
		api.MethodLogin:    {"access_token": "A", "refresh_token": "R"},
	})
	ctx := context.Background()

	limit, err := c.Register(ctx, "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), limit)
	assert.Equal(t, "ann", api.String(fc.lastReq, "username"))

	access, refresh, err := c.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, "A", access)
	assert.Equal(t, "R", refresh)

	a, r := c.tokens()
	assert.Equal(t, "A", a)
	assert.Equal(t, "R", r)
}

func TestLogin_Unauthorized(t *testing.T) {
	c, fc := newFakeClient(nil)
	fc.errs[api.FullMethod(api.MethodLogin)] = status.Error(codes.Unauthenticated, "unauthorized")

	_, _, err := c.Login(context.Background(), "ann", "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListObjects(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c, fc := newFakeClient(map[string]api.M{
		api.MethodListObjects: {"objects": []api.M{
			{"id": "o1", "name": "a.txt", "size": int64(12), "size_human": "12B", "created_at": created},
			{"id": "o2", "name": "b.txt", "size": int64(3), "created_at": created, "expires_at": created.Add(time.Hour)},
		}},
	})

	list, err := c.ListObjects(context.Background(), "txt", "size")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o1", list[0].ID)
	assert.Equal(t, int64(12), list[0].Size)
	assert.Equal(t, created, list[0].CreatedAt)
	assert.Nil(t, list[0].ExpiresAt)
	require.NotNil(t, list[1].ExpiresAt)
	assert.Equal(t, created.Add(time.Hour), *list[1].ExpiresAt)

	assert.Equal(t, api.FullMethod(api.MethodListObjects), fc.lastMethod)
	assert.Equal(t, "size", api.String(fc.lastReq, "sort"))
}

func TestIssueLinkAndList(t *testing.T) {
	exp := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	link := api.M{"token": "tok", "object_id": "o1", "kind": "protected", "active": true, "expires_at": exp, "url": "http://x/s/tok/"}
	c, fc := newFakeClient(map[string]api.M{
		api.MethodIssueLink: link,
		api.MethodListLinks: {"links": []api.M{link}},
	})
	ctx := context.Background()

	l, err := c.IssueLink(ctx, "o1", "24h", "1234")
	require.NoError(t, err)
	assert.Equal(t, "tok", l.Token)
	assert.True(t, l.Active)
	assert.Equal(t, exp, l.ExpiresAt)
	assert.Equal(t, "1234", api.String(fc.lastReq, "access_code"))
	assert.Equal(t, "24h", api.String(fc.lastReq, "duration"))

	links, err := c.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "http://x/s/tok/", links[0].URL)
}

func TestIngest_Notice(t *testing.T) {
	c, _ := newFakeClient(map[string]api.M{
		api.MethodIngest: {"object": api.M{"id": "o1", "name": "f"}, "notice": "you already own this file"},
	})

	obj, notice, err := c.Ingest(context.Background(), "http://x/s/tok/")
	require.NoError(t, err)
	assert.Equal(t, "o1", obj.ID)
	assert.Equal(t, "you already own this file", notice)
}

func TestIngest_LinkUnavailable(t *testing.T) {
	c, fc := newFakeClient(nil)
	fc.errs[api.FullMethod(api.MethodIngest)] = status.Error(codes.NotFound, "link unavailable")

	_, _, err := c.Ingest(context.Background(), "http://x/s/tok/")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorContains(t, err, "link unavailable")
}

func TestQuotaPlansAndPayments(t *testing.T) {
	c, fc := newFakeClient(map[string]api.M{
		api.MethodGetQuota:     {"limit_bytes": int64(100), "used_bytes": int64(40), "remaining_bytes": int64(60), "used_human": "40B"},
		api.MethodListPlans:    {"plans": []api.M{{"code": "5gb", "storage_increase": int64(5 << 30), "amount": int64(10000)}}},
		api.MethodOpenOrder:    {"order_id": "order_1", "amount": int64(10000), "currency": "INR", "status": "PENDING", "key_id": "rzp"},
		api.MethodSettleOrder:  {"order_id": "order_1", "payment_id": "pay_1", "status": "SUCCESS"},
		api.MethodListPayments: {"payments": []api.M{{"order_id": "order_1", "status": "SUCCESS"}}},
	})
	ctx := context.Background()

	q, err := c.GetQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60), q.RemainingBytes)
	assert.Equal(t, "40B", q.UsedHuman)

	plans, err := c.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, int64(5<<30), plans[0].StorageIncrease)

	order, err := c.OpenOrder(ctx, "5gb")
	require.NoError(t, err)
	assert.Equal(t, "rzp", order.KeyID)
	assert.Equal(t, "5gb", api.String(fc.lastReq, "plan"))

	paid, err := c.SettleOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", paid.Status)
	assert.Equal(t, "pay_1", paid.PaymentID)

	history, err := c.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeleteAndRevoke(t *testing.T) {
	c, fc := newFakeClient(map[string]api.M{})
	ctx := context.Background()

	require.NoError(t, c.DeleteObject(ctx, "o1"))
	assert.Equal(t, "o1", api.String(fc.lastReq, "id"))

	fc.errs[api.FullMethod(api.MethodRevokeLink)] = status.Error(codes.PermissionDenied, "forbidden")
	assert.ErrorIs(t, c.RevokeLink(ctx, "tok"), ErrUnauthorized)
}

func TestClose_NoConn(t *testing.T) {
	assert.NoError(t, (&GRPCClient{}).Close())
}
