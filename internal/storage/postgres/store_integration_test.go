package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/customer-be/internal/models"
	"github.com/hongminglow/customer-be/internal/storage"
)

// TestStoreIntegration exercises the store against a live database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run this integration test")
	}

	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := os.Getenv("DATABASE_URL")
	require.NotEmpty(t, dbURL, "DATABASE_URL is required")

	ctx := context.Background()
	store, err := NewCustomerStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()

	email := fmt.Sprintf("it_%d@example.com", time.Now().UnixNano())
	created, err := store.CreateCustomer(ctx, models.Customer{Name: "Integration", Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DeleteCustomer(context.Background(), created.ID) })

	_, err = store.CreateCustomer(ctx, models.Customer{Name: "Dup", Email: email, PasswordHash: "hash"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := store.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	found.Name = "Renamed"
	found.ProfilePicture = "/public/item_photos/p.png"
	updated, err := store.UpdateCustomer(ctx, found)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "/public/item_photos/p.png", updated.ProfilePicture)

	_, err = store.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteCustomer(ctx, created.ID))
	assert.ErrorIs(t, store.DeleteCustomer(ctx, created.ID), storage.ErrNotFound)
}
