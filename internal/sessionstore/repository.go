package sessionstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/menta2k/drawing-converter/pkg/session"
	"github.com/patrickmn/go-cache"
)

// Factory builds a session for a freshly minted id.
type Factory func(id string) *session.Session

// Repository keeps sessions in memory. A session expires after ttl without
// being touched.
type Repository struct {
	cache   *cache.Cache
	factory Factory
}

// NewRepository purges expired sessions every ttl/6. An evicted or deleted
// session has its run in flight cancelled.
func NewRepository(ttl time.Duration, factory Factory) *Repository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, ttl/6)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session.Session); ok {
			go s.Close()
		}
	})
	return &Repository{
		cache:   c,
		factory: factory,
	}
}

// Create stores a new session under a random id.
func (r *Repository) Create() *session.Session {
	s := r.factory(uuid.NewString())
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
	return s
}

// Get returns a session and extends its lifetime.
func (r *Repository) Get(id string) (*session.Session, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	s := x.(*session.Session)
	r.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// Delete discards a session.
func (r *Repository) Delete(id string) bool {
	if _, found := r.cache.Get(id); !found {
		return false
	}
	r.cache.Delete(id)
	return true
}

// Len counts live sessions.
func (r *Repository) Len() int {
	return r.cache.ItemCount()
}
