//go:build !integration

package postgres

import (
	"context"
	"time"

	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
	red "activity-engine/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerActivityRepo mocks the database repository that the activity decorator wraps.
type mockInnerActivityRepo struct {
	SaveFunc              func(ctx context.Context, tx repository.Tx, a *model.Activity) error
	UpdateFunc            func(ctx context.Context, tx repository.Tx, a *model.Activity) error
	FindByIDFunc          func(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error)
	ListFunc              func(ctx context.Context, tx repository.Tx, f model.ActivityFilter) ([]*model.Activity, int, error)
	AddParticipantFunc    func(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error)
	RemoveParticipantFunc func(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error)
}

func (m *mockInnerActivityRepo) Save(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	return m.SaveFunc(ctx, tx, a)
}
func (m *mockInnerActivityRepo) Update(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	return m.UpdateFunc(ctx, tx, a)
}
func (m *mockInnerActivityRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerActivityRepo) List(ctx context.Context, tx repository.Tx, f model.ActivityFilter) ([]*model.Activity, int, error) {
	return m.ListFunc(ctx, tx, f)
}
func (m *mockInnerActivityRepo) AddParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	return m.AddParticipantFunc(ctx, tx, activityID, userID)
}
func (m *mockInnerActivityRepo) RemoveParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	return m.RemoveParticipantFunc(ctx, tx, activityID, userID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
