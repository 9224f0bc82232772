package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/customer-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// CustomerStore captures persistence operations needed by the customer service.
// Emails are compared exactly; callers normalize them first.
type CustomerStore interface {
	CreateCustomer(ctx context.Context, customer models.Customer) (models.Customer, error)
	FindByID(ctx context.Context, id string) (models.Customer, error)
	FindByEmail(ctx context.Context, email string) (models.Customer, error)
	UpdateCustomer(ctx context.Context, customer models.Customer) (models.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}
