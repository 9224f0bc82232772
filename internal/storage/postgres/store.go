package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hongminglow/customer-be/internal/models"
	"github.com/hongminglow/customer-be/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Ensure Store satisfies the storage.CustomerStore interface at compile time.
var _ storage.CustomerStore = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeInvalidTextEncoding = "22P02"
)

const customerColumns = `id::text, name, email, password_hash, profile_picture, created_at, updated_at`

// Store provides Postgres-backed persistence for customers.
type Store struct {
	pool *pgxpool.Pool
}

// NewCustomerStore creates a new Store and runs migrations.
func NewCustomerStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CreateCustomer inserts a new customer row.
func (s *Store) CreateCustomer(ctx context.Context, customer models.Customer) (models.Customer, error) {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	query := `
		INSERT INTO customers (id, name, email, password_hash, profile_picture)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, customer.ID, customer.Name, customer.Email, customer.PasswordHash, customer.ProfilePicture)
	return scanCustomer(row)
}

// FindByID fetches a customer by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1::uuid`
	return scanCustomer(s.pool.QueryRow(ctx, query, id))
}

// FindByEmail fetches a customer by email address, including its password hash.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE email = $1`
	return scanCustomer(s.pool.QueryRow(ctx, query, email))
}

// UpdateCustomer writes the mutable fields of an existing customer.
func (s *Store) UpdateCustomer(ctx context.Context, customer models.Customer) (models.Customer, error) {
	query := `
		UPDATE customers
		SET name = $2, email = $3, password_hash = $4, profile_picture = $5, updated_at = NOW()
		WHERE id = $1::uuid
		RETURNING ` + customerColumns
	row := s.pool.QueryRow(ctx, query, customer.ID, customer.Name, customer.Email, customer.PasswordHash, customer.ProfilePicture)
	return scanCustomer(row)
}

// DeleteCustomer removes a customer row.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1::uuid`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.ProfilePicture, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.Customer{}, translate(err)
	}
	return c, nil
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return storage.ErrAlreadyExists
		case codeInvalidTextEncoding:
			// A malformed id cannot match any row.
			return storage.ErrNotFound
		}
	}
	return err
}
