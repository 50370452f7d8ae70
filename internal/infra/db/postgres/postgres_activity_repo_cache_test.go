//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
)

func TestActivityRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	activity := &model.Activity{ID: "act-123", Title: "Pickup football", MaxCapacity: 4, Participants: []string{"u1"}}
	activityJSON, _ := json.Marshal(activity)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		// Arrange
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(activityJSON), nil
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerActivityRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
				innerRepoCalled = true
				return nil, nil
			},
		}
		decorator := NewActivityRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		// Act
		result, err := decorator.FindByID(ctx, nil, "act-123")

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.ID != "act-123" || len(result.Participants) != 1 {
			t.Errorf("did not return the cached activity, got %+v", result)
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		var setKey string
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", goredis.Nil },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey = key
				return nil
			},
		}
		mockInnerRepo := &mockInnerActivityRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
				return activity, nil
			},
		}
		decorator := NewActivityRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		result, err := decorator.FindByID(ctx, nil, "act-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.ID != "act-123" || setKey != "activity:act-123" {
			t.Errorf("expected cache fill under activity:act-123, got %q", setKey)
		}
	})

	t.Run("FindByID inside a transaction bypasses the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return "", goredis.Nil
			},
		}
		mockInnerRepo := &mockInnerActivityRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
				return activity, nil
			},
		}
		decorator := NewActivityRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		if _, err := decorator.FindByID(ctx, struct{}{}, "act-123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("AddParticipant should invalidate the entry only on success", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		full := true
		mockInnerRepo := &mockInnerActivityRepo{
			AddParticipantFunc: func(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
				if full {
					return nil, domain.ErrActivityFull
				}
				return activity, nil
			},
		}
		decorator := NewActivityRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		if _, err := decorator.AddParticipant(ctx, nil, "act-123", "u2"); !errors.Is(err, domain.ErrActivityFull) {
			t.Fatalf("expected ErrActivityFull, got %v", err)
		}
		if len(deletedKeys) != 0 {
			t.Fatalf("expected no invalidation on failure, got %v", deletedKeys)
		}

		full = false
		if _, err := decorator.AddParticipant(ctx, nil, "act-123", "u2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deletedKeys) != 1 || deletedKeys[0] != "activity:act-123" {
			t.Fatalf("expected activity:act-123 to be deleted, got %v", deletedKeys)
		}
	})

	t.Run("read between a roster write and its commit is not served afterwards", func(t *testing.T) {
		// in-memory cache shared by both callers
		store := map[string]string{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				v, ok := store[key]
				if !ok {
					return "", goredis.Nil
				}
				return v, nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				store[key] = string(value.([]byte))
				return nil
			},
			DelFunc: func(ctx context.Context, keys ...string) error {
				for _, k := range keys {
					delete(store, k)
				}
				return nil
			},
		}
		committed := &model.Activity{ID: "act-9", MaxCapacity: 4, Participants: []string{"owner", "guest"}}
		mockInnerRepo := &mockInnerActivityRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
				cp := *committed
				cp.Participants = append([]string(nil), committed.Participants...)
				return &cp, nil
			},
			RemoveParticipantFunc: func(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
				return &model.Activity{ID: activityID, MaxCapacity: 4, Participants: []string{"owner"}}, nil
			},
		}
		decorator := NewActivityRepoCacheDecorator(mockInnerRepo, mockRedis, time.Minute)

		txCtx, commit := repository.WithCommitHooks(ctx)
		if _, err := decorator.RemoveParticipant(txCtx, "tx", "act-9", "guest"); err != nil {
			t.Fatalf("remove: %v", err)
		}

		// concurrent plain read still sees the committed roster and caches it
		stale, _ := decorator.FindByID(ctx, nil, "act-9")
		if !stale.HasParticipant("guest") {
			t.Fatal("expected the pre-commit read to see the old roster")
		}

		committed.Participants = []string{"owner"}
		commit()

		got, err := decorator.FindByID(ctx, nil, "act-9")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.HasParticipant("guest") {
			t.Fatalf("stale roster served after commit: %v", got.Participants)
		}
	})
}
