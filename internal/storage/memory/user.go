package memory

import (
	"context"
	"sync"

	"github.com/xenking/orderdesk/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository is an in-memory user directory keyed by id and
// normalized email.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[int64]user.User
	byEmail map[string]int64
	nextID  int64
}

// NewUserRepository returns an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[int64]user.User),
		byEmail: make(map[string]int64),
	}
}

// Create stores u and assigns its id.
func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := user.NormalizeEmail(u.Email)
	if _, ok := r.byEmail[email]; ok {
		return user.ErrEmailTaken
	}
	r.nextID++
	u.ID = r.nextID
	u.Email = email
	r.byID[u.ID] = *u
	r.byEmail[email] = u.ID
	return nil
}

// GetByID returns the user with the given id.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

// GetByEmail returns the user registered under email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}
