// Package memory is an in-process CustomerStore for tests and single-node
// development runs (STORAGE_DRIVER=memory).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/customer-be/internal/models"
	"github.com/hongminglow/customer-be/internal/storage"
)

var _ storage.CustomerStore = (*Store)(nil)

// Store keeps customers in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]models.Customer
	byEmail map[string]string
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]models.Customer),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// CreateCustomer inserts customer, assigning an id when it has none.
func (s *Store) CreateCustomer(_ context.Context, customer models.Customer) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[customer.Email]; taken {
		return models.Customer{}, storage.ErrAlreadyExists
	}
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	if _, taken := s.byID[customer.ID]; taken {
		return models.Customer{}, storage.ErrAlreadyExists
	}
	now := s.now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	s.byID[customer.ID] = customer
	s.byEmail[customer.Email] = customer.ID
	return customer, nil
}

// FindByID fetches a customer by id.
func (s *Store) FindByID(_ context.Context, id string) (models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.byID[id]
	if !ok {
		return models.Customer{}, storage.ErrNotFound
	}
	return customer, nil
}

// FindByEmail fetches a customer by email address.
func (s *Store) FindByEmail(_ context.Context, email string) (models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.Customer{}, storage.ErrNotFound
	}
	return s.byID[id], nil
}

// UpdateCustomer replaces the mutable fields of an existing customer.
func (s *Store) UpdateCustomer(_ context.Context, customer models.Customer) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[customer.ID]
	if !ok {
		return models.Customer{}, storage.ErrNotFound
	}
	if owner, taken := s.byEmail[customer.Email]; taken && owner != customer.ID {
		return models.Customer{}, storage.ErrAlreadyExists
	}

	delete(s.byEmail, existing.Email)
	existing.Name = customer.Name
	existing.Email = customer.Email
	existing.PasswordHash = customer.PasswordHash
	existing.ProfilePicture = customer.ProfilePicture
	existing.UpdatedAt = s.now().UTC()

	s.byID[existing.ID] = existing
	s.byEmail[existing.Email] = existing.ID
	return existing, nil
}

// DeleteCustomer removes a customer by id.
func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, existing.Email)
	return nil
}
