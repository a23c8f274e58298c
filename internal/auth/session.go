package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"classroom/internal/metrics"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Session is server-held proof of a login. Identity is the admin username or
// the student id.
type Session struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Identity string    `json:"identity"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Registry stores sessions by id. Sessions never expire; they live until
// revoked or the registry is cleared.
type Registry interface {
	Issue(ctx context.Context, role Role, identity string) (Session, error)
	// Resolve returns ok=false for unknown ids; that is not an error.
	Resolve(ctx context.Context, id string) (Session, bool, error)
	Revoke(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

func newSession(role Role, identity string, now time.Time) Session {
	return Session{ID: uuid.NewString(), Role: role, Identity: identity, IssuedAt: now.UTC()}
}

// MemoryRegistry is a process-local registry safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]Session), now: time.Now}
}

func (r *MemoryRegistry) Issue(_ context.Context, role Role, identity string) (Session, error) {
	s := newSession(role, identity, r.now())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sessions[s.ID]; dup {
		return Session{}, errors.New("session id collision")
	}
	r.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return s, nil
}

func (r *MemoryRegistry) Resolve(_ context.Context, id string) (Session, bool, error) {
	if id == "" {
		return Session{}, false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok, nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

func (r *MemoryRegistry) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]Session)
	metrics.ActiveSessions.Set(0)
	return nil
}

// Len reports the number of live sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RedisRegistry shares sessions between processes. Keys carry no TTL.
// ActiveSessions tracks what this process issued and revoked; sessions
// issued by other processes are not counted.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "classroom:session:"
	}
	return &RedisRegistry{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRegistry) Issue(ctx context.Context, role Role, identity string) (Session, error) {
	s := newSession(role, identity, r.now())
	data, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	ok, err := r.client.SetNX(ctx, r.prefix+s.ID, data, 0).Result()
	if err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return Session{}, errors.New("session id collision")
	}
	metrics.ActiveSessions.Inc()
	return s, nil
}

func (r *RedisRegistry) Resolve(ctx context.Context, id string) (Session, bool, error) {
	if id == "" {
		return Session{}, false, nil
	}
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.prefix+id).Result()
	if err != nil {
		return err
	}
	metrics.ActiveSessions.Sub(float64(n))
	return nil
}

func (r *RedisRegistry) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	metrics.ActiveSessions.Set(0)
	return nil
}
