package auth

import (
	"sync"

	"github.com/google/uuid"
)

// sessionCache keeps the users behind recently validated tokens, so every request
// does not cost a lookup. It is owned by the auth service and invalidated exactly
// on logout or deactivation.
type sessionCache struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func newSessionCache() *sessionCache {
	return &sessionCache{users: make(map[uuid.UUID]User)}
}

func (c *sessionCache) get(id uuid.UUID) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, found := c.users[id]
	return user, found
}

func (c *sessionCache) put(user User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.UUID] = user
}

func (c *sessionCache) invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
}
