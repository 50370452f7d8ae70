package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/repository"
	"activity-engine/internal/infra/metrics"
	red "activity-engine/internal/infra/redis"
)

var _ repository.ActivityRepository = (*activityRepoCacheDecorator)(nil)

// activityRepoCacheDecorator serves non-transactional FindByID from Redis.
// Reads inside a tx always hit the database; every write drops the entry,
// again after commit when it ran in a transaction.
type activityRepoCacheDecorator struct {
	inner repository.ActivityRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewActivityRepoCacheDecorator(inner repository.ActivityRepository, cache red.RedisClient, ttl time.Duration) repository.ActivityRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &activityRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func activityKey(id string) string { return fmt.Sprintf("activity:%s", id) }

func (d *activityRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Activity, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := activityKey(id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var a model.Activity
		if json.Unmarshal([]byte(val), &a) == nil {
			metrics.IncActivityCacheLookup("hit")
			return &a, nil
		}
		metrics.IncActivityCacheLookup("corrupt")
	case red.IsMiss(err):
		metrics.IncActivityCacheLookup("miss")
	default:
		metrics.IncActivityCacheLookup("error")
	}

	a, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(a); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return a, nil
}

func (d *activityRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	return d.inner.Save(ctx, tx, a)
}

func (d *activityRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, a *model.Activity) error {
	if err := d.inner.Update(ctx, tx, a); err != nil {
		return err
	}
	d.invalidate(ctx, tx, a.ID)
	return nil
}

func (d *activityRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, f model.ActivityFilter) ([]*model.Activity, int, error) {
	return d.inner.List(ctx, tx, f)
}

func (d *activityRepoCacheDecorator) AddParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	a, err := d.inner.AddParticipant(ctx, tx, activityID, userID)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, tx, activityID)
	return a, nil
}

func (d *activityRepoCacheDecorator) RemoveParticipant(ctx context.Context, tx repository.Tx, activityID, userID string) (*model.Activity, error) {
	a, err := d.inner.RemoveParticipant(ctx, tx, activityID, userID)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, tx, activityID)
	return a, nil
}

// invalidate drops the entry now and, inside a transaction, once more after
// commit: a plain read between the write and the commit still sees the old row
// and may have cached it.
func (d *activityRepoCacheDecorator) invalidate(ctx context.Context, tx repository.Tx, id string) {
	ctx = context.WithoutCancel(ctx)
	key := activityKey(id)
	_ = d.cache.Del(ctx, key)
	if tx != nil {
		repository.OnCommit(ctx, func() { _ = d.cache.Del(ctx, key) })
	}
}
