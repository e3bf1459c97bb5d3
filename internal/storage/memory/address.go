package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/orderdesk/internal/domain/address"
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository keeps saved addresses in a map keyed by id.
type AddressRepository struct {
	mu     sync.RWMutex
	byID   map[int64]address.Address
	nextID int64
}

// NewAddressRepository returns an empty AddressRepository.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{byID: make(map[int64]address.Address)}
}

// clearDefault unsets IsDefault on every other address of userID.
func (r *AddressRepository) clearDefault(userID, keep int64) {
	for id, a := range r.byID {
		if a.UserID == userID && id != keep && a.IsDefault {
			a.IsDefault = false
			r.byID[id] = a
		}
	}
}

// Create stores a and assigns its id.
func (r *AddressRepository) Create(_ context.Context, a *address.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	a.ID = r.nextID
	if a.IsDefault {
		r.clearDefault(a.UserID, a.ID)
	}
	r.byID[a.ID] = *a
	return nil
}

// GetByID returns the address with the given id.
func (r *AddressRepository) GetByID(_ context.Context, id int64) (*address.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return &a, nil
}

// ListByUser returns the addresses of userID, oldest first.
func (r *AddressRepository) ListByUser(_ context.Context, userID int64) ([]address.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]address.Address, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update replaces the stored address. The owner and creation time are kept.
func (r *AddressRepository) Update(_ context.Context, a *address.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[a.ID]
	if !ok {
		return address.ErrNotFound
	}
	a.UserID = stored.UserID
	a.CreatedAt = stored.CreatedAt
	if a.IsDefault {
		r.clearDefault(a.UserID, a.ID)
	}
	r.byID[a.ID] = *a
	return nil
}

// Delete removes the address with the given id.
func (r *AddressRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return address.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
