//go:build !integration

package api

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"activity-engine/internal/config"
	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/usecase"
)

// --- Mock use cases ---

type mockActivityUC struct {
	usecase.ActivityUseCase // Embed interface for forward compatibility

	CreateFunc       func(ctx context.Context, actor model.Actor, f model.ActivityFields, files []adapter.MediaFile) (*model.Activity, error)
	UpdateFunc       func(ctx context.Context, actor model.Actor, id string, p model.ActivityPatch) (*model.Activity, error)
	GetFunc          func(ctx context.Context, id string) (*model.Activity, error)
	ListFunc         func(ctx context.Context, f model.ActivityFilter) (*model.ActivityPage, error)
	ParticipantsFunc func(ctx context.Context, id string) ([]model.ParticipantSummary, error)
}

func (m *mockActivityUC) Create(ctx context.Context, actor model.Actor, f model.ActivityFields, files []adapter.MediaFile) (*model.Activity, error) {
	return m.CreateFunc(ctx, actor, f, files)
}

func (m *mockActivityUC) Update(ctx context.Context, actor model.Actor, id string, p model.ActivityPatch) (*model.Activity, error) {
	return m.UpdateFunc(ctx, actor, id, p)
}

func (m *mockActivityUC) Get(ctx context.Context, id string) (*model.Activity, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockActivityUC) List(ctx context.Context, f model.ActivityFilter) (*model.ActivityPage, error) {
	return m.ListFunc(ctx, f)
}

func (m *mockActivityUC) Participants(ctx context.Context, id string) ([]model.ParticipantSummary, error) {
	return m.ParticipantsFunc(ctx, id)
}

type mockRosterUC struct {
	usecase.RosterUseCase

	JoinFunc  func(ctx context.Context, actor model.Actor, id string) (*model.Activity, error)
	LeaveFunc func(ctx context.Context, actor model.Actor, id string) (*model.Activity, error)
}

func (m *mockRosterUC) Join(ctx context.Context, actor model.Actor, id string) (*model.Activity, error) {
	return m.JoinFunc(ctx, actor, id)
}

func (m *mockRosterUC) Leave(ctx context.Context, actor model.Actor, id string) (*model.Activity, error) {
	return m.LeaveFunc(ctx, actor, id)
}

type mockPaymentUC struct {
	usecase.PaymentUseCase

	CreateOrderFunc     func(ctx context.Context, actor model.Actor, activityID string) (*model.ActivityPayment, *adapter.Order, error)
	VerifyFunc          func(ctx context.Context, actor model.Actor, activityID, orderID string) (*model.ActivityPayment, error)
	VerifyByOrderIDFunc func(ctx context.Context, orderID string) (*model.ActivityPayment, error)
}

func (m *mockPaymentUC) CreateOrder(ctx context.Context, actor model.Actor, activityID string) (*model.ActivityPayment, *adapter.Order, error) {
	return m.CreateOrderFunc(ctx, actor, activityID)
}

func (m *mockPaymentUC) Verify(ctx context.Context, actor model.Actor, activityID, orderID string) (*model.ActivityPayment, error) {
	return m.VerifyFunc(ctx, actor, activityID, orderID)
}

func (m *mockPaymentUC) VerifyByOrderID(ctx context.Context, orderID string) (*model.ActivityPayment, error) {
	return m.VerifyByOrderIDFunc(ctx, orderID)
}

// mockUserUC resolves tokens against a fixed user set.
type mockUserUC struct {
	usecase.UserUseCase

	users       map[string]*model.User
	ProfileFunc func(ctx context.Context, actor model.Actor) (*usecase.Profile, error)
}

func newMockUserUC(users ...*model.User) *mockUserUC {
	m := &mockUserUC{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserUC) Get(ctx context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserUC) Profile(ctx context.Context, actor model.Actor) (*usecase.Profile, error) {
	return m.ProfileFunc(ctx, actor)
}

// --- Mock limiter ---

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	keys      []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.AllowFunc(ctx, key, limit, window)
}

// --- helpers ---

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: "test-secret", Issuer: "activity-engine-test", TokenTTL: time.Hour}
}
