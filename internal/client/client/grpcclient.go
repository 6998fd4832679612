package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/linkvault/internal/api"
	"github.com/dmitrijs2005/linkvault/internal/client/models"
	"github.com/dmitrijs2005/linkvault/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	httpBaseURL string
	conn        grpc.ClientConnInterface
	closer      io.Closer
	httpClient  *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    func(access, refresh string)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(api.AccessTokenKey, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	s.mu.Unlock()
}

// OnTokensRefreshed registers fn to be called after a silent token rotation.
func (s *GRPCClient) OnTokensRefreshed(fn func(access, refresh string)) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

func (s *GRPCClient) storeRotated(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	fn := s.onRefresh
	s.mu.Unlock()
	if fn != nil {
		fn(access, refresh)
	}
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// rotate exchanges the refresh token for a new pair using invoker directly.
func (s *GRPCClient) rotate(ctx context.Context, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}

	in, err := api.Encode(api.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return err
	}
	out := &structpb.Struct{}
	if err := invoker(ctx, api.FullMethod(api.MethodRefreshToken), in, out, cc, opts...); err != nil {
		return err
	}

	var pair api.TokenPair
	if err := api.Decode(out, &pair); err != nil {
		return err
	}
	s.storeRotated(pair.AccessToken, pair.RefreshToken)
	return nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, _ := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || !isTokenExpired(err) || method == api.FullMethod(api.MethodRefreshToken) {
		return err
	}

	if rerr := s.rotate(ctx, cc, invoker, opts...); rerr != nil {
		return rerr
	}

	// tokens refreshed, retry with the new access token
	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL, httpBaseURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, httpBaseURL: httpBaseURL, httpClient: &http.Client{}}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.closer = conn
	return nil
}

func (s *GRPCClient) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// call sends in and decodes the reply into out; out may be nil.
func (s *GRPCClient) call(ctx context.Context, method string, in, out any) error {
	req, err := api.Encode(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, api.FullMethod(method), req, resp); err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}
	return api.Decode(resp, out)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.AlreadyExists:
		return common.ErrorAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.ResourceExhausted:
		return common.ErrQuotaExceeded
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	var resp api.PingResponse
	if err := s.call(ctx, api.MethodPing, api.Empty{}, &resp); err != nil {
		return err
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// Register creates an account and returns the storage limit granted to it.
func (s *GRPCClient) Register(ctx context.Context, username, password string) (int64, error) {
	var resp api.RegisterResponse
	if err := s.call(ctx, api.MethodRegister, api.Credentials{Username: username, Password: password}, &resp); err != nil {
		return 0, err
	}
	return resp.LimitBytes, nil
}

// Login authenticates and keeps the returned token pair for later calls.
func (s *GRPCClient) Login(ctx context.Context, username, password string) (string, string, error) {
	var resp api.TokenPair
	if err := s.call(ctx, api.MethodLogin, api.Credentials{Username: username, Password: password}, &resp); err != nil {
		return "", "", err
	}

	s.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp.AccessToken, resp.RefreshToken, nil
}

func toObject(m api.Object) models.Object {
	o := models.Object{
		ID:        m.ID,
		Name:      m.Name,
		Size:      m.Size,
		SizeHuman: m.SizeHuman,
		CreatedAt: m.CreatedAt,
	}
	if !m.ExpiresAt.IsZero() {
		t := m.ExpiresAt
		o.ExpiresAt = &t
	}
	return o
}

func toLink(m api.Link) models.Link {
	return models.Link{
		Token:     m.Token,
		ObjectID:  m.ObjectID,
		Kind:      m.Kind,
		Active:    m.Active,
		ExpiresAt: m.ExpiresAt,
		URL:       m.URL,
	}
}

func toPayment(m api.Payment) models.Payment {
	return models.Payment{
		OrderID:         m.OrderID,
		PaymentID:       m.PaymentID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		StorageIncrease: m.StorageIncrease,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		KeyID:           m.KeyID,
	}
}

func (s *GRPCClient) ListObjects(ctx context.Context, search, sort string) ([]models.Object, error) {
	var resp api.ListObjectsResponse
	if err := s.call(ctx, api.MethodListObjects, api.ListObjectsRequest{Search: search, Sort: sort}, &resp); err != nil {
		return nil, err
	}

	var out []models.Object
	for _, m := range resp.Objects {
		out = append(out, toObject(m))
	}
	return out, nil
}

func (s *GRPCClient) DeleteObject(ctx context.Context, id string) error {
	return s.call(ctx, api.MethodDeleteObject, api.DeleteObjectRequest{ID: id}, nil)
}

func (s *GRPCClient) IssueLink(ctx context.Context, objectID, duration, accessCode string) (*models.Link, error) {
	var resp api.Link
	req := api.IssueLinkRequest{ObjectID: objectID, Duration: duration, AccessCode: accessCode}
	if err := s.call(ctx, api.MethodIssueLink, req, &resp); err != nil {
		return nil, err
	}
	l := toLink(resp)
	return &l, nil
}

func (s *GRPCClient) RevokeLink(ctx context.Context, token string) error {
	return s.call(ctx, api.MethodRevokeLink, api.RevokeLinkRequest{Token: token}, nil)
}

func (s *GRPCClient) ListLinks(ctx context.Context) ([]models.Link, error) {
	var resp api.ListLinksResponse
	if err := s.call(ctx, api.MethodListLinks, api.Empty{}, &resp); err != nil {
		return nil, err
	}

	var out []models.Link
	for _, m := range resp.Links {
		out = append(out, toLink(m))
	}
	return out, nil
}

// Ingest copies url into the caller's storage. The returned notice is
// non-empty when the server reused an object the caller already owns.
func (s *GRPCClient) Ingest(ctx context.Context, url string) (*models.Object, string, error) {
	var resp api.IngestResponse
	if err := s.call(ctx, api.MethodIngest, api.IngestRequest{URL: url}, &resp); err != nil {
		return nil, "", err
	}
	o := toObject(resp.Object)
	return &o, resp.Notice, nil
}

func (s *GRPCClient) GetQuota(ctx context.Context) (*models.Quota, error) {
	var resp api.Quota
	if err := s.call(ctx, api.MethodGetQuota, api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &models.Quota{
		LimitBytes:     resp.LimitBytes,
		UsedBytes:      resp.UsedBytes,
		RemainingBytes: resp.RemainingBytes,
		LimitHuman:     resp.LimitHuman,
		UsedHuman:      resp.UsedHuman,
	}, nil
}

func (s *GRPCClient) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var resp api.ListPlansResponse
	if err := s.call(ctx, api.MethodListPlans, api.Empty{}, &resp); err != nil {
		return nil, err
	}

	var out []models.Plan
	for _, m := range resp.Plans {
		out = append(out, models.Plan{
			Code:            m.Code,
			StorageIncrease: m.StorageIncrease,
			StorageHuman:    m.StorageHuman,
			Amount:          m.Amount,
		})
	}
	return out, nil
}

func (s *GRPCClient) OpenOrder(ctx context.Context, plan string) (*models.Payment, error) {
	var resp api.Payment
	if err := s.call(ctx, api.MethodOpenOrder, api.OpenOrderRequest{Plan: plan}, &resp); err != nil {
		return nil, err
	}
	p := toPayment(resp)
	return &p, nil
}

func (s *GRPCClient) SettleOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var resp api.Payment
	if err := s.call(ctx, api.MethodSettleOrder, api.SettleOrderRequest{OrderID: orderID}, &resp); err != nil {
		return nil, err
	}
	p := toPayment(resp)
	return &p, nil
}

func (s *GRPCClient) ListPayments(ctx context.Context) ([]models.Payment, error) {
	var resp api.ListPaymentsResponse
	if err := s.call(ctx, api.MethodListPayments, api.Empty{}, &resp); err != nil {
		return nil, err
	}

	var out []models.Payment
	for _, m := range resp.Payments {
		out = append(out, toPayment(m))
	}
	return out, nil
}

// refresh rotates tokens outside of a gRPC call, for the HTTP upload path.
func (s *GRPCClient) refresh(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrUnauthorized
	}

	var resp api.TokenPair
	if err := s.call(ctx, api.MethodRefreshToken, api.RefreshTokenRequest{RefreshToken: refresh}, &resp); err != nil {
		return err
	}

	s.storeRotated(resp.AccessToken, resp.RefreshToken)
	return nil
}

var _ Client = (*GRPCClient)(nil)
