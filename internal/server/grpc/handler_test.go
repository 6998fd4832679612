package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/linkvault/internal/api"
	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkvault/internal/server/services"
	"github.com/dmitrijs2005/linkvault/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---- fakes ----

type fakeUser struct {
	regUser *models.User
	regAcct *models.QuotaAccount
	regErr  error

	loginResp *services.TokenPair
	loginErr  error

	refreshResp *services.TokenPair
	refreshErr  error
}

func (f *fakeUser) Register(ctx context.Context, username, password string) (*models.User, *models.QuotaAccount, error) {
	return f.regUser, f.regAcct, f.regErr
}
func (f *fakeUser) Login(ctx context.Context, username, password string) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}
func (f *fakeUser) RefreshToken(ctx context.Context, refresh string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}

type fakeObjects struct {
	list      []*models.StoredObject
	gotFilter objects.ListFilter
	deleteErr error
	deleted   string
}

func (f *fakeObjects) List(ctx context.Context, ownerID string, filter objects.ListFilter) ([]*models.StoredObject, error) {
	f.gotFilter = filter
	return f.list, nil
}
func (f *fakeObjects) Delete(ctx context.Context, id, ownerID string) error {
	f.deleted = id
	return f.deleteErr
}

type fakeLinks struct {
	issued    *models.AccessLink
	issueErr  error
	gotOpts   services.IssueOptions
	revokeErr error
	list      []*models.AccessLink
}

func (f *fakeLinks) Issue(ctx context.Context, objectID, ownerID string, opts services.IssueOptions) (*models.AccessLink, error) {
	f.gotOpts = opts
	return f.issued, f.issueErr
}
func (f *fakeLinks) Revoke(ctx context.Context, token, ownerID string) error { return f.revokeErr }
func (f *fakeLinks) List(ctx context.Context, ownerID string) ([]*models.AccessLink, error) {
	return f.list, nil
}

type fakeIngest struct {
	obj *models.StoredObject
	err error
}

func (f *fakeIngest) Ingest(ctx context.Context, ownerID, sourceURL string) (*models.StoredObject, error) {
	return f.obj, f.err
}

type fakeQuota struct{ acct *models.QuotaAccount }

func (f *fakeQuota) Account(ctx context.Context, ownerID string) (*models.QuotaAccount, error) {
	return f.acct, nil
}

type fakePayments struct {
	txn     *models.PaymentTransaction
	err     error
	history []*models.PaymentTransaction
}

func (f *fakePayments) KeyID() string { return "rzp_test_key" }
func (f *fakePayments) OpenPlanOrder(ctx context.Context, ownerID, planCode string) (*models.PaymentTransaction, error) {
	return f.txn, f.err
}
func (f *fakePayments) Checkout(ctx context.Context, ownerID, orderID string) (*models.PaymentTransaction, error) {
	return f.txn, f.err
}
func (f *fakePayments) History(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error) {
	return f.history, nil
}

// ---- helpers ----

func newServer(svc Services) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", "http://vault.test/", logging.Nop{}, svc, "k")
}

func authed(user string) context.Context {
	return context.WithValue(context.Background(), userIDKey, user)
}

func msg(t *testing.T, fields api.M) *structpb.Struct {
	t.Helper()
	s, err := api.New(fields)
	require.NoError(t, err)
	return s
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	assert.Equal(t, want, st.Code(), st.Message())
}

// ---- tests ----

func TestPing_OK(t *testing.T) {
	s := newServer(Services{})
	resp, err := s.Ping(context.Background(), msg(t, api.M{}))
	require.NoError(t, err)
	assert.Equal(t, "OK", api.String(resp, "status"))
}

func TestRegister(t *testing.T) {
	u := &fakeUser{
		regUser: &models.User{ID: "42", UserName: "alice"},
		regAcct: &models.QuotaAccount{OwnerID: "42", LimitBytes: 1 << 30},
	}
	s := newServer(Services{Users: u})

	resp, err := s.Register(context.Background(), msg(t, api.M{"username": "alice", "password": "pw"}))
	require.NoError(t, err)
	assert.Equal(t, "42", api.String(resp, "user_id"))
	assert.Equal(t, int64(1<<30), api.Int(resp, "limit_bytes"))

	u.regErr = common.ErrorAlreadyExists
	_, err = s.Register(context.Background(), msg(t, api.M{"username": "alice", "password": "pw"}))
	assertCode(t, err, codes.AlreadyExists)
}

func TestLoginAndRefresh(t *testing.T) {
	u := &fakeUser{
		loginResp:   &services.TokenPair{AccessToken: "a", RefreshToken: "r"},
		refreshResp: &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"},
	}
	s := newServer(Services{Users: u})

	resp, err := s.Login(context.Background(), msg(t, api.M{"username": "u", "password": "p"}))
	require.NoError(t, err)
	assert.Equal(t, "a", api.String(resp, "access_token"))
	assert.Equal(t, "r", api.String(resp, "refresh_token"))

	resp, err = s.RefreshToken(context.Background(), msg(t, api.M{"refresh_token": "r"}))
	require.NoError(t, err)
	assert.Equal(t, "a2", api.String(resp, "access_token"))

	u.loginErr = common.ErrorUnauthorized
	_, err = s.Login(context.Background(), msg(t, api.M{}))
	assertCode(t, err, codes.Unauthenticated)

	u.refreshErr = common.ErrRefreshTokenExpired
	_, err = s.RefreshToken(context.Background(), msg(t, api.M{}))
	assertCode(t, err, codes.Unauthenticated)
}

func TestListObjects(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	o := &fakeObjects{list: []*models.StoredObject{{ID: "o1", Name: "a.txt", Size: 2048, CreatedAt: created}}}
	s := newServer(Services{Objects: o})

	resp, err := s.ListObjects(authed("alice"), msg(t, api.M{"search": "a", "sort": "size"}))
	require.NoError(t, err)
	assert.Equal(t, objects.ListFilter{Search: "a", Sort: "size"}, o.gotFilter)

	items := api.List(resp, "objects")
	require.Len(t, items, 1)
	assert.Equal(t, "o1", api.String(items[0], "id"))
	assert.Equal(t, int64(2048), api.Int(items[0], "size"))
	assert.Equal(t, "2.048kB", api.String(items[0], "size_human"))
	assert.True(t, created.Equal(api.Time(items[0], "created_at")))
}

func TestHandlers_RequireUser(t *testing.T) {
	s := newServer(Services{})
	_, err := s.ListObjects(context.Background(), msg(t, api.M{}))
	assertCode(t, err, codes.Unauthenticated)
}

func TestDeleteObject_Errors(t *testing.T) {
	o := &fakeObjects{}
	s := newServer(Services{Objects: o})

	_, err := s.DeleteObject(authed("alice"), msg(t, api.M{"id": "o1"}))
	require.NoError(t, err)
	assert.Equal(t, "o1", o.deleted)

	o.deleteErr = common.ErrorForbidden
	_, err = s.DeleteObject(authed("alice"), msg(t, api.M{"id": "o1"}))
	assertCode(t, err, codes.PermissionDenied)

	o.deleteErr = common.ErrorNotFound
	_, err = s.DeleteObject(authed("alice"), msg(t, api.M{"id": "o1"}))
	assertCode(t, err, codes.NotFound)
}

func TestIssueLink(t *testing.T) {
	l := &fakeLinks{issued: &models.AccessLink{
		Token:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		ObjectID:  "o1",
		Kind:      models.LinkProtected,
		Active:    true,
		ExpiresAt: time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
	}}
	s := newServer(Services{Links: l})

	resp, err := s.IssueLink(authed("alice"), msg(t, api.M{"object_id": "o1", "duration": "7d", "access_code": "1234"}))
	require.NoError(t, err)
	assert.Equal(t, services.IssueOptions{Duration: "7d", AccessCode: "1234"}, l.gotOpts)
	assert.Equal(t, "http://vault.test/s/0f8fad5b-d9cb-469f-a165-70867728950e/", api.String(resp, "url"))
	assert.Equal(t, "protected", api.String(resp, "kind"))
	assert.True(t, api.Bool(resp, "active"))

	l.issueErr = common.ErrorNotFound
	_, err = s.IssueLink(authed("alice"), msg(t, api.M{"object_id": "nope"}))
	assertCode(t, err, codes.NotFound)

	_, err = s.IssueLink(authed("alice"), msg(t, api.M{"object_id": 42}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestMalformedObjectIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	clock := &timex.ManualClock{T: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	quota := services.NewQuotaService(db, rm, 1<<20, logging.Nop{})
	s := newServer(Services{
		Objects: services.NewObjectService(db, rm, nil, quota, clock, logging.Nop{}, nil),
		Links:   services.NewLinkService(db, rm, clock, logging.Nop{}, nil),
	})

	_, err = s.IssueLink(authed("alice"), msg(t, api.M{"object_id": "abc"}))
	assertCode(t, err, codes.NotFound)

	_, err = s.DeleteObject(authed("alice"), msg(t, api.M{"id": "abc"}))
	assertCode(t, err, codes.NotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAndListLinks(t *testing.T) {
	l := &fakeLinks{list: []*models.AccessLink{{Token: "t1"}, {Token: "t2"}}}
	s := newServer(Services{Links: l})

	_, err := s.RevokeLink(authed("alice"), msg(t, api.M{"token": "t1"}))
	require.NoError(t, err)

	resp, err := s.ListLinks(authed("alice"), msg(t, api.M{}))
	require.NoError(t, err)
	assert.Len(t, api.List(resp, "links"), 2)

	l.revokeErr = common.ErrorForbidden
	_, err = s.RevokeLink(authed("bob"), msg(t, api.M{"token": "t1"}))
	assertCode(t, err, codes.PermissionDenied)
}

func TestIngest_Outcomes(t *testing.T) {
	obj := &models.StoredObject{ID: "o9", Name: "copy.txt", Size: 3}
	tests := []struct {
		name       string
		err        error
		wantCode   codes.Code
		wantNotice string
	}{
		{"ok", nil, codes.OK, ""},
		{"self copy", common.ErrSelfCopy, codes.OK, SelfCopyNotice},
		{"unknown link", common.ErrInvalidLink, codes.NotFound, ""},
		{"expired link", common.ErrLinkExpired, codes.NotFound, ""},
		{"fetch failed", common.ErrFetchFailed, codes.Unavailable, ""},
		{"quota", common.ErrQuotaExceeded, codes.ResourceExhausted, ""},
		{"protected", common.ErrorForbidden, codes.PermissionDenied, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(Services{Ingest: &fakeIngest{obj: obj, err: tt.err}})
			resp, err := s.Ingest(authed("bob"), msg(t, api.M{"url": "https://x"}))
			if tt.wantCode != codes.OK {
				assertCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "o9", api.String(api.StructField(resp, "object"), "id"))
			assert.Equal(t, tt.wantNotice, api.String(resp, "notice"))
		})
	}
}

func TestIngest_UnknownAndExpiredLookAlike(t *testing.T) {
	s1 := newServer(Services{Ingest: &fakeIngest{err: common.ErrInvalidLink}})
	s2 := newServer(Services{Ingest: &fakeIngest{err: common.ErrLinkExpired}})

	_, err1 := s1.Ingest(authed("bob"), msg(t, api.M{}))
	_, err2 := s2.Ingest(authed("bob"), msg(t, api.M{}))
	assert.Equal(t, err1.Error(), err2.Error())
}

func TestGetQuota(t *testing.T) {
	s := newServer(Services{Quota: &fakeQuota{acct: &models.QuotaAccount{LimitBytes: 1 << 30, UsedBytes: 1 << 20}}})

	resp, err := s.GetQuota(authed("alice"), msg(t, api.M{}))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), api.Int(resp, "limit_bytes"))
	assert.Equal(t, int64(1<<20), api.Int(resp, "used_bytes"))
	assert.Equal(t, int64(1<<30-1<<20), api.Int(resp, "remaining_bytes"))
	assert.Equal(t, "1GiB", api.String(resp, "limit_human"))
	assert.Equal(t, "1MiB", api.String(resp, "used_human"))
}

func TestListPlans(t *testing.T) {
	s := newServer(Services{})

	resp, err := s.ListPlans(context.Background(), msg(t, api.M{}))
	require.NoError(t, err)
	plans := api.List(resp, "plans")
	require.Len(t, plans, len(services.Plans))
	assert.Equal(t, "5gb", api.String(plans[0], "code"))
	assert.Equal(t, "5GiB", api.String(plans[0], "storage_human"))
}

func TestPayments(t *testing.T) {
	txn := &models.PaymentTransaction{OrderID: "order_1", Amount: 10000, Currency: "INR", StorageIncrease: 5, Status: models.PaymentPending}
	p := &fakePayments{txn: txn, history: []*models.PaymentTransaction{txn}}
	s := newServer(Services{Payments: p})

	resp, err := s.OpenOrder(authed("alice"), msg(t, api.M{"plan": "5gb"}))
	require.NoError(t, err)
	assert.Equal(t, "order_1", api.String(resp, "order_id"))
	assert.Equal(t, "rzp_test_key", api.String(resp, "key_id"))
	assert.Equal(t, "PENDING", api.String(resp, "status"))

	resp, err = s.ListPayments(authed("alice"), msg(t, api.M{}))
	require.NoError(t, err)
	assert.Len(t, api.List(resp, "payments"), 1)

	p.err = common.ErrSignatureInvalid
	_, err = s.SettleOrder(authed("alice"), msg(t, api.M{"order_id": "order_1"}))
	assertCode(t, err, codes.InvalidArgument)

	p.err = errors.New("db down")
	_, err = s.OpenOrder(authed("alice"), msg(t, api.M{"plan": "5gb"}))
	assertCode(t, err, codes.Internal)
}
