//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	CreateOrderFunc func(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error)
	FetchOrderFunc  func(ctx context.Context, orderID string) (*adapter.Order, error)

	Created []adapter.OrderRequest
	Fetched []string
	// Status returned by the default FetchOrder, keyed by order id.
	Statuses map[string]adapter.OrderStatus
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{Statuses: make(map[string]adapter.OrderStatus)}
}

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	m.mu.Lock()
	m.Created = append(m.Created, req)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	m.mu.Lock()
	m.Statuses[req.OrderID] = adapter.OrderActive
	m.mu.Unlock()
	return &adapter.Order{
		OrderID:    req.OrderID,
		SessionID:  "session_" + req.OrderID,
		PaymentURL: "https://pay.example/" + req.OrderID,
		Status:     adapter.OrderActive,
		Raw:        json.RawMessage(`{"order_status":"ACTIVE"}`),
	}, nil
}

func (m *MockPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*adapter.Order, error) {
	m.mu.Lock()
	m.Fetched = append(m.Fetched, orderID)
	m.mu.Unlock()
	if m.FetchOrderFunc != nil {
		return m.FetchOrderFunc(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.Statuses[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return &adapter.Order{OrderID: orderID, Status: st, Raw: json.RawMessage(fmt.Sprintf(`{"order_status":%q}`, st))}, nil
}

func (m *MockPaymentGateway) SetStatus(orderID string, st adapter.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[orderID] = st
}

func (m *MockPaymentGateway) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Fetched)
}

func (m *MockPaymentGateway) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}

// ---- Mock MediaStore ----

type MockMediaStore struct {
	mu sync.Mutex

	UploadFunc func(ctx context.Context, f adapter.MediaFile) (string, error)
	DeleteFunc func(ctx context.Context, url string) error

	Uploaded []string
	Deleted  []string
}

var _ adapter.MediaStore = (*MockMediaStore)(nil)

func (m *MockMediaStore) Upload(ctx context.Context, f adapter.MediaFile) (string, error) {
	if m.UploadFunc != nil {
		url, err := m.UploadFunc(ctx, f)
		if err == nil {
			m.mu.Lock()
			m.Uploaded = append(m.Uploaded, url)
			m.mu.Unlock()
		}
		return url, err
	}
	url := "https://media.example/" + f.Name
	m.mu.Lock()
	m.Uploaded = append(m.Uploaded, url)
	m.mu.Unlock()
	return url, nil
}

func (m *MockMediaStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, url)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, url)
	}
	return nil
}

func imageFile(name string) adapter.MediaFile {
	body := []byte("fake-image-" + name)
	return adapter.MediaFile{Name: name, ContentType: "image/jpeg", Size: int64(len(body)), Body: bytes.NewReader(body)}
}

// ---- Mock Locker ----

type MockLocker struct {
	mu      sync.Mutex
	held    map[string]string
	Locks   int
	Unlocks int
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrResourceBusy
	}
	token := fmt.Sprintf("tok-%d", m.Locks)
	m.held[key] = token
	m.Locks++
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	m.Unlocks++
	return nil
}

// ---- Mock Notifier ----

type sentNotification struct {
	UserID string
	N      model.Notification
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentNotification
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, userID string, n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentNotification{UserID: userID, N: n})
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	SaveFunc               func(ctx context.Context, tx repository.Tx, u *model.User) error
	ConsumeEntitlementFunc func(ctx context.Context, tx repository.Tx, userID string, e model.Entitlement) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	cp.JoinedActivities = append([]string(nil), u.JoinedActivities...)
	return &cp
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *MockUserRepo) FindByIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (m *MockUserRepo) ConsumeEntitlement(ctx context.Context, tx repository.Tx, userID string, e model.Entitlement) error {
	if m.ConsumeEntitlementFunc != nil {
		return m.ConsumeEntitlementFunc(ctx, tx, userID, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	return u.ConsumeEntitlement(e)
}

func (m *MockUserRepo) AddJoinedActivity(ctx context.Context, tx repository.Tx, userID, activityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !u.HasJoined(activityID) {
		u.JoinedActivities = append(u.JoinedActivities, activityID)
	}
	return nil
}

func (m *MockUserRepo) RemoveJoinedActivity(ctx context.Context, tx repository.Tx, userID, activityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	out := u.JoinedActivities[:0]
	for _, id := range u.JoinedActivities {
		if id != activityID {
			out = append(out, id)
		}
	}
	u.JoinedActivities = out
	return nil
}

// ---- Mock ActivityRepository ----

type MockActivityRepo struct {
	mu         sync.Mutex
	activities map[string]*model.Activity

	SaveFunc func(ctx context.Context, tx repository.Tx, a *model.Activity) error
}

var _ repository.ActivityRepository = (*MockActivityRepo)(nil)

func NewMockActivityRepo() *MockActivityRepo {
	return &MockActivityRepo{activities: make(map[string]*model.Activity)}
}

func cloneActivity(a *model.Activity) *model.Activity {
	cp := *a
	cp.Participants = append([]string(nil), a.Participants...)
	cp.Photos = append([]string(nil), a.Photos...)
	return &cp
}

func (m *MockActivityRepo) Save(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[a.ID] = cloneActivity(a)
	return nil
}

func (m *MockActivityRepo) Update(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.activities[a.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if a.MaxCapacity < len(cur.Participants) {
		return domain.ErrInvalidArgument
	}
	next := cloneActivity(a)
	next.Participants = cur.Participants
	next.Photos = cur.Photos
	next.CreatedBy = cur.CreatedBy
	m.activities[a.ID] = next
	return nil
}

func (m *MockActivityRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return cloneActivity(a), nil
}

func (m *MockActivityRepo) List(ctx context.Context, tx repository.Tx, f model.ActivityFilter) ([]*model.Activity, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Activity
	for _, a := range m.activities {
		if a.Date.Before(f.From) {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		all = append(all, cloneActivity(a))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].StartTime < all[j].StartTime
	})
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

// AddParticipant mirrors the conditional write: check and add under one lock.
func (m *MockActivityRepo) AddParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	if a.HasParticipant(userID) {
		return nil, domain.ErrAlreadyParticipant
	}
	if a.IsFull() {
		return nil, domain.ErrActivityFull
	}
	a.Participants = append(a.Participants, userID)
	return cloneActivity(a), nil
}

func (m *MockActivityRepo) RemoveParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	if !a.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	out := make([]string, 0, len(a.Participants)-1)
	for _, id := range a.Participants {
		if id != userID {
			out = append(out, id)
		}
	}
	a.Participants = out
	return cloneActivity(a), nil
}

// cachedActivityRepo answers plain reads from an earlier snapshot, the way a
// read cache does before it sees the latest commit. Reads inside a tx go through.
type cachedActivityRepo struct {
	*MockActivityRepo
	snapshot map[string]*model.Activity
}

func (c *cachedActivityRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
	if tx == nil {
		if a, ok := c.snapshot[id]; ok {
			return cloneActivity(a), nil
		}
	}
	return c.MockActivityRepo.FindByID(ctx, tx, id)
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.ActivityPayment

	SaveFunc   func(ctx context.Context, tx repository.Tx, p *model.ActivityPayment) error
	ReopenFunc func(ctx context.Context, tx repository.Tx, p *model.ActivityPayment, prevRef string) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{payments: make(map[string]*model.ActivityPayment)}
}

func clonePayment(p *model.ActivityPayment) *model.ActivityPayment {
	cp := *p
	return &cp
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.ActivityPayment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	return m.insert(p)
}

// insert enforces the (user, activity) uniqueness like the database index.
func (m *MockPaymentRepo) insert(p *model.ActivityPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.payments {
		if x.UserID == p.UserID && x.ActivityID == p.ActivityID {
			return domain.ErrPaymentExists
		}
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ActivityPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (m *MockPaymentRepo) FindByUserActivity(ctx context.Context, tx repository.Tx, userID, activityID string) (*model.ActivityPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.UserID == userID && p.ActivityID == activityID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.ActivityPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderRef == ref {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *MockPaymentRepo) Reopen(ctx context.Context, tx repository.Tx, p *model.ActivityPayment, prevRef string) (bool, error) {
	if m.ReopenFunc != nil {
		return m.ReopenFunc(ctx, tx, p, prevRef)
	}
	return m.reopen(p, prevRef)
}

// reopen compares on the previous provider ref like the database update.
func (m *MockPaymentRepo) reopen(p *model.ActivityPayment, prevRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.payments[p.ID]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if cur.Status != model.PaymentStatusPending && cur.Status != model.PaymentStatusFailed {
		return false, domain.ErrAlreadyPaid
	}
	if cur.ProviderRef != prevRef {
		return false, nil
	}
	m.payments[p.ID] = clonePayment(p)
	return true, nil
}

func (m *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, raw json.RawMessage, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.RawResponse = raw
	p.PaidAt = paidAt
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.ActivityPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivityPayment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.UpdatedAt.Before(before) {
			out = append(out, clonePayment(p))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// mockTx marks calls made inside MockTxManager.WithTx.
type mockTx struct{}

// WithTx runs fn immediately with a mockTx handle and fires commit hooks when fn
// succeeds, unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	txCtx, committed := repository.WithCommitHooks(ctx)
	if err := fn(txCtx, mockTx{}); err != nil {
		return err
	}
	committed()
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
