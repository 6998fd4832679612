package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"github.com/dmitrijs2005/linkvault/internal/dbx"
	"github.com/dmitrijs2005/linkvault/internal/logging"
	"github.com/dmitrijs2005/linkvault/internal/server/blob"
	"github.com/dmitrijs2005/linkvault/internal/server/config"
	"github.com/dmitrijs2005/linkvault/internal/server/fetch"
	"github.com/dmitrijs2005/linkvault/internal/server/gateway"
	"github.com/dmitrijs2005/linkvault/internal/server/metrics"
	"github.com/dmitrijs2005/linkvault/internal/server/models"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/links"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/objects"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/payments"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/quotas"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/linkvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/linkvault/internal/timex"
)

// -------- in-memory store --------

// fakeStore stands in for Postgres. Unique constraints and the conditional
// payment update behave like the real schema.
type fakeStore struct {
	mu sync.Mutex

	seq      int
	users    map[string]models.User
	refresh  map[string]models.RefreshToken
	objects  map[string]models.StoredObject
	links    map[string]models.AccessLink
	quotas   map[string]int64
	payments map[string]models.PaymentTransaction

	// failOn makes the named repository method return the error.
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]models.User{},
		refresh:  map[string]models.RefreshToken{},
		objects:  map[string]models.StoredObject{},
		links:    map[string]models.AccessLink{},
		quotas:   map[string]int64{},
		payments: map[string]models.PaymentTransaction{},
		failOn:   map[string]error{},
	}
}

func (s *fakeStore) nextID() string {
	s.seq++
	return "id-" + strconv.Itoa(s.seq)
}

func (s *fakeStore) fail(op string) error {
	return s.failOn[op]
}

func (s *fakeStore) setFail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

type fakeSnapshot struct {
	seq      int
	users    map[string]models.User
	refresh  map[string]models.RefreshToken
	objects  map[string]models.StoredObject
	links    map[string]models.AccessLink
	quotas   map[string]int64
	payments map[string]models.PaymentTransaction
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeStore) snapshot() fakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fakeSnapshot{
		seq:      s.seq,
		users:    copyMap(s.users),
		refresh:  copyMap(s.refresh),
		objects:  copyMap(s.objects),
		links:    copyMap(s.links),
		quotas:   copyMap(s.quotas),
		payments: copyMap(s.payments),
	}
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.users = snap.users
	s.refresh = snap.refresh
	s.objects = snap.objects
	s.links = snap.links
	s.quotas = snap.quotas
	s.payments = snap.payments
}

func (s *fakeStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *fakeStore) payment(orderID string) models.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[orderID]
}

// useFakeTx swaps withTx for one that serializes transactions and rolls the
// store back when fn fails.
func useFakeTx(t *testing.T, store *fakeStore) {
	t.Helper()
	var txMu sync.Mutex
	orig := withTx
	withTx = func(ctx context.Context, _ *sql.DB, _ *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
		txMu.Lock()
		defer txMu.Unlock()
		snap := store.snapshot()
		if err := fn(ctx, nil); err != nil {
			store.restore(snap)
			return err
		}
		return nil
	}
	t.Cleanup(func() { withTx = orig })
}

// -------- repositories --------

type fakeRepoManager struct {
	store *fakeStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository            { return &fakeUsers{m.store} }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return &fakeRefresh{m.store}
}
func (m *fakeRepoManager) Objects(dbx.DBTX) objects.Repository   { return &fakeObjects{m.store} }
func (m *fakeRepoManager) Links(dbx.DBTX) links.Repository       { return &fakeLinks{m.store} }
func (m *fakeRepoManager) Quotas(dbx.DBTX) quotas.Repository     { return &fakeQuotas{m.store} }
func (m *fakeRepoManager) Payments(dbx.DBTX) payments.Repository { return &fakePayments{m.store} }

type fakeUsers struct{ s *fakeStore }

func (r *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Create"); err != nil {
		return nil, err
	}
	if _, ok := r.s.users[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	out := *u
	out.ID = r.s.nextID()
	out.CreatedAt = time.Now()
	r.s.users[u.UserName] = out
	return &out, nil
}

func (r *fakeUsers) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

type fakeRefresh struct{ s *fakeStore }

func (r *fakeRefresh) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refresh.Create"); err != nil {
		return err
	}
	r.s.refresh[token] = models.RefreshToken{ID: r.s.nextID(), UserID: userID, Token: token, Expires: expiresAt}
	return nil
}

func (r *fakeRefresh) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.refresh[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *fakeRefresh) Delete(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("refresh.Delete"); err != nil {
		return err
	}
	delete(r.s.refresh, token)
	return nil
}

func (r *fakeRefresh) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, t := range r.s.refresh {
		if t.Expires.Before(before) {
			delete(r.s.refresh, k)
			n++
		}
	}
	return n, nil
}

type fakeObjects struct{ s *fakeStore }

func (r *fakeObjects) Create(ctx context.Context, obj *models.StoredObject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("objects.Create"); err != nil {
		return err
	}
	for _, o := range r.s.objects {
		if o.StorageKey == obj.StorageKey {
			return common.ErrorAlreadyExists
		}
	}
	r.s.objects[obj.ID] = *obj
	return nil
}

func (r *fakeObjects) GetByID(ctx context.Context, id string) (*models.StoredObject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.objects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &o, nil
}

func (r *fakeObjects) ListByOwner(ctx context.Context, ownerID string, filter objects.ListFilter) ([]*models.StoredObject, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.StoredObject
	for _, o := range r.s.objects {
		if !o.OwnedBy(ownerID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(o.Name), strings.ToLower(filter.Search)) {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool {
		switch filter.Sort {
		case objects.SortName:
			return out[i].Name < out[j].Name
		case objects.SortSize:
			return out[i].Size > out[j].Size
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})
	return out, nil
}

func (r *fakeObjects) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.objects[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.objects, id)
	for token, l := range r.s.links {
		if l.ObjectID == id {
			delete(r.s.links, token)
		}
	}
	return nil
}

func (r *fakeObjects) SumSizeByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, o := range r.s.objects {
		if o.OwnedBy(ownerID) {
			sum += o.Size
		}
	}
	return sum, nil
}

type fakeLinks struct{ s *fakeStore }

func (r *fakeLinks) Create(ctx context.Context, link *models.AccessLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("links.Create"); err != nil {
		return err
	}
	if _, ok := r.s.links[link.Token]; ok {
		return common.ErrorAlreadyExists
	}
	link.ID = r.s.nextID()
	r.s.links[link.Token] = *link
	return nil
}

func (r *fakeLinks) GetByToken(ctx context.Context, token string) (*models.AccessLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &l, nil
}

func (r *fakeLinks) ListByOwner(ctx context.Context, ownerID string) ([]*models.AccessLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AccessLink
	for _, l := range r.s.links {
		if o, ok := r.s.objects[l.ObjectID]; ok && o.OwnedBy(ownerID) {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.After(out[j].ExpiresAt) })
	return out, nil
}

func (r *fakeLinks) Deactivate(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[token]
	if !ok {
		return common.ErrorNotFound
	}
	l.Active = false
	r.s.links[token] = l
	return nil
}

func (r *fakeLinks) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for token, l := range r.s.links {
		if l.ExpiresAt.Before(before) {
			delete(r.s.links, token)
			n++
		}
	}
	return n, nil
}

type fakeQuotas struct{ s *fakeStore }

func (r *fakeQuotas) GetLimit(ctx context.Context, ownerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	limit, ok := r.s.quotas[ownerID]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return limit, nil
}

func (r *fakeQuotas) Ensure(ctx context.Context, ownerID string, defaultLimit int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("quotas.Ensure"); err != nil {
		return 0, err
	}
	limit, ok := r.s.quotas[ownerID]
	if !ok {
		limit = defaultLimit
		r.s.quotas[ownerID] = limit
	}
	return limit, nil
}

func (r *fakeQuotas) ApplyIncrease(ctx context.Context, ownerID string, delta, defaultLimit int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("quotas.ApplyIncrease"); err != nil {
		return 0, err
	}
	limit, ok := r.s.quotas[ownerID]
	if !ok {
		limit = defaultLimit
	}
	limit += delta
	r.s.quotas[ownerID] = limit
	return limit, nil
}

type fakePayments struct{ s *fakeStore }

func (r *fakePayments) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[txn.OrderID]; ok {
		return common.ErrorAlreadyExists
	}
	txn.Status = models.PaymentPending
	txn.CreatedAt = time.Now()
	txn.UpdatedAt = txn.CreatedAt
	r.s.payments[txn.OrderID] = *txn
	return nil
}

func (r *fakePayments) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *fakePayments) Transition(ctx context.Context, orderID, paymentID string, to models.PaymentStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[orderID]
	if !ok || p.Status != models.PaymentPending {
		return false, nil
	}
	p.Status = to
	p.PaymentID = paymentID
	p.UpdatedAt = time.Now()
	r.s.payments[orderID] = p
	return true, nil
}

func (r *fakePayments) ListByOwner(ctx context.Context, ownerID string) ([]*models.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PaymentTransaction
	for _, p := range r.s.payments {
		if p.OwnerID == ownerID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// -------- collaborators --------

// countingFetcher records every outbound fetch.
type countingFetcher struct {
	mu     sync.Mutex
	calls  []string
	body   string
	header http.Header
	err    error
}

func (f *countingFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	h := f.header
	if h == nil {
		h = http.Header{}
	}
	return &fetch.Result{Status: http.StatusOK, Header: h, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// -------- fixture --------

const testDefaultLimit = 1024

type fixture struct {
	store    *fakeStore
	clock    *timex.ManualClock
	blobs    *blob.FSStore
	blobRoot string
	fetcher  *countingFetcher
	sandbox  *gateway.Sandbox
	metrics  *metrics.Metrics
	quota    *QuotaService
	users    *UserService
	objects  *ObjectService
	links    *LinkService
	ingest   *IngestService
	payments *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFakeStore()
	useFakeTx(t, store)

	root := t.TempDir()
	blobs, err := blob.NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	rm := &fakeRepoManager{store: store}
	clock := &timex.ManualClock{T: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := logging.Nop{}
	mx := metrics.New()
	fetcher := &countingFetcher{}
	sandbox := gateway.NewSandbox("rzp_test_key", "rzp_test_secret")

	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}

	f := &fixture{store: store, clock: clock, blobs: blobs, blobRoot: root, fetcher: fetcher, sandbox: sandbox, metrics: mx}
	f.quota = NewQuotaService(nil, rm, testDefaultLimit, log)
	f.users = NewUserService(nil, rm, f.quota, clock, log, cfg)
	f.objects = NewObjectService(nil, rm, blobs, f.quota, clock, log, mx)
	f.links = NewLinkService(nil, rm, clock, log, mx)
	f.ingest = NewIngestService(f.links, f.objects, fetcher, log, mx)
	f.payments = NewPaymentService(nil, rm, sandbox, f.quota, "INR", log, mx)
	return f
}

func (f *fixture) upload(t *testing.T, owner, name, content string) *models.StoredObject {
	t.Helper()
	obj, err := f.objects.Create(context.Background(), owner, name, bytes.NewBufferString(content))
	if err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
	return obj
}

func (f *fixture) readAll(t *testing.T, obj *models.StoredObject) string {
	t.Helper()
	rc, err := f.objects.Open(context.Background(), obj)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(b)
}
