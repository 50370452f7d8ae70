package presence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"activity-engine/internal/domain/model"
	"activity-engine/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Registry)(nil)

// Registry maps user ids to their open sockets. It is created once in main and
// handed to the use cases as their Notifier.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	log   *zerolog.Logger
}

func NewRegistry(logger *zerolog.Logger) *Registry {
	l := logger.With().Str("component", "presence").Logger()
	return &Registry{users: make(map[string]map[*Client]struct{}), log: &l}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	set, ok := r.users[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[c.userID] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()
	r.log.Debug().Str("user_id", c.userID).Msg("socket connected")
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	set, ok := r.users[c.userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(r.users, c.userID)
	}
	r.mu.Unlock()
	r.log.Debug().Str("user_id", c.userID).Msg("socket disconnected")
}

// Notify queues n on every socket of userID. Full buffers drop the message.
func (r *Registry) Notify(ctx context.Context, userID string, n model.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal notification")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.users[userID] {
		select {
		case c.send <- data:
		default:
			r.log.Warn().Str("user_id", userID).Str("kind", string(n.Kind)).Msg("notification dropped, buffer full")
		}
	}
}

// ConnectionCount returns the number of open sockets across all users.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}
