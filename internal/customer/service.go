// Package customer implements the account operations behind the HTTP API:
// registration, login, profile reads and updates, deletion and profile pictures.
package customer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/apperr"
	"github.com/hongminglow/customer-be/internal/auth"
	"github.com/hongminglow/customer-be/internal/media"
	"github.com/hongminglow/customer-be/internal/models"
	"github.com/hongminglow/customer-be/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// MaxPasswordBytes is the most bcrypt will hash.
const MaxPasswordBytes = 72

const (
	msgNotFound           = "Customer not found"
	msgInvalidCredentials = "Invalid credentials"
	msgNotImage           = "Only image files are allowed"
	msgNoFile             = "No file uploaded"
)

// FileStore persists uploaded files and hands out their public relative paths.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	Remove(ctx context.Context, rel string) error
}

// Session is an issued login token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// UpdateInput carries a partial update. Nil or empty fields are left unchanged.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Upload is a profile picture on its way in. Size is the declared length, or
// zero when unknown.
type Upload struct {
	Body io.Reader
	Size int64
}

// Service runs customer operations against a store.
type Service struct {
	store     storage.CustomerStore
	tokens    *auth.TokenManager
	files     FileStore
	maxUpload int64
	logger    *zap.Logger
}

// NewService wires a Service. maxUpload bounds profile pictures in bytes.
func NewService(store storage.CustomerStore, tokens *auth.TokenManager, files FileStore, maxUpload int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, files: files, maxUpload: maxUpload, logger: logger}
}

// Register creates a customer with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.Customer, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return models.Customer{}, apperr.Validation("Please provide a name, email and password")
	}
	if err := validateEmail(email); err != nil {
		return models.Customer{}, err
	}
	if err := validatePassword(password); err != nil {
		return models.Customer{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Customer{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateCustomer(ctx, models.Customer{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.Customer{}, apperr.Conflict("Email already exists")
		}
		return models.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer registered", zap.String("customer_id", created.ID))
	return created, nil
}

// Login verifies credentials and issues a session token. Unknown emails and
// wrong passwords fail with the same error.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.Validation("Please provide an email and password")
	}

	found, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperr.Authentication(msgInvalidCredentials)
		}
		return Session{}, fmt.Errorf("find customer: %w", err)
	}

	ok, err := auth.CheckPassword(found.PasswordHash, password)
	if err != nil {
		return Session{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return Session{}, apperr.Authentication(msgInvalidCredentials)
	}

	token, expiresAt, err := s.tokens.Generate(found.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Get returns the customer identified by id when actor owns it.
func (s *Service) Get(ctx context.Context, actor, id string) (models.Customer, error) {
	return s.owned(ctx, actor, id, "Not authorized to access this customer")
}

// Update applies the non-empty fields of in to the customer.
func (s *Service) Update(ctx context.Context, actor, id string, in UpdateInput) (models.Customer, error) {
	current, err := s.owned(ctx, actor, id, "Not authorized to update this customer")
	if err != nil {
		return models.Customer{}, err
	}

	if name := trimmed(in.Name); name != "" {
		current.Name = name
	}
	if email := normalizeEmail(deref(in.Email)); email != "" {
		if err := validateEmail(email); err != nil {
			return models.Customer{}, err
		}
		current.Email = email
	}
	if password := deref(in.Password); password != "" {
		if err := validatePassword(password); err != nil {
			return models.Customer{}, err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return models.Customer{}, fmt.Errorf("hash password: %w", err)
		}
		current.PasswordHash = hash
	}

	updated, err := s.store.UpdateCustomer(ctx, current)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return models.Customer{}, apperr.Conflict("Email already exists")
		case errors.Is(err, storage.ErrNotFound):
			return models.Customer{}, apperr.NotFound(msgNotFound)
		}
		return models.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

// Delete removes the customer and its stored profile picture.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	current, err := s.owned(ctx, actor, id, "Not authorized to delete this customer")
	if err != nil {
		return err
	}

	if err := s.store.DeleteCustomer(ctx, current.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	s.removePicture(ctx, current.ProfilePicture)
	s.logger.Info("customer deleted", zap.String("customer_id", current.ID))
	return nil
}

// UploadPicture stores a new profile picture and returns its relative path.
// The previous picture is removed once the new path is persisted.
func (s *Service) UploadPicture(ctx context.Context, actor, id string, up Upload) (string, error) {
	current, err := s.owned(ctx, actor, id, "Not authorized to update this customer")
	if err != nil {
		return "", err
	}
	if up.Body == nil {
		return "", apperr.Upload(msgNoFile)
	}
	if up.Size > s.maxUpload {
		return "", TooLargeError(s.maxUpload)
	}

	mimeType, ext, body, err := media.DetectImage(up.Body)
	switch {
	case errors.Is(err, media.ErrEmpty):
		return "", apperr.Upload(msgNoFile)
	case errors.Is(err, media.ErrNotImage):
		return "", apperr.Upload(msgNotImage)
	case err != nil:
		return "", fmt.Errorf("read upload: %w", err)
	}

	rel, err := s.files.Save(ctx, body, ext)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return "", TooLargeError(s.maxUpload)
		}
		return "", fmt.Errorf("store picture: %w", err)
	}

	previous := current.ProfilePicture
	current.ProfilePicture = rel
	if _, err := s.store.UpdateCustomer(ctx, current); err != nil {
		s.removePicture(ctx, rel)
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperr.NotFound(msgNotFound)
		}
		return "", fmt.Errorf("save picture path: %w", err)
	}

	if previous != "" && previous != rel {
		s.removePicture(ctx, previous)
	}
	s.logger.Info("profile picture stored",
		zap.String("customer_id", current.ID),
		zap.String("path", rel),
		zap.String("mime", mimeType),
	)
	return rel, nil
}

// owned loads id and checks that actor is the same customer.
func (s *Service) owned(ctx context.Context, actor, id, denied string) (models.Customer, error) {
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Customer{}, apperr.NotFound(msgNotFound)
		}
		return models.Customer{}, fmt.Errorf("find customer: %w", err)
	}
	if actor == "" || found.ID != actor {
		return models.Customer{}, apperr.Authorization(denied)
	}
	return found, nil
}

func (s *Service) removePicture(ctx context.Context, rel string) {
	if !strings.HasPrefix(rel, media.PublicPrefix) {
		return
	}
	if err := s.files.Remove(ctx, rel); err != nil {
		s.logger.Warn("remove profile picture", zap.String("path", rel), zap.Error(err))
	}
}

// TooLargeError is the upload error for files above maxBytes.
func TooLargeError(maxBytes int64) *apperr.Error {
	return apperr.Upload(fmt.Sprintf("File exceeds the %d MB limit", maxBytes>>20))
}

func validateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t\r\n") {
		return apperr.Validation("Please provide a valid email")
	}
	return nil
}

func validatePassword(password string) error {
	if !utf8.ValidString(password) || utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return apperr.Validation(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(s *string) string {
	return strings.TrimSpace(deref(s))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
