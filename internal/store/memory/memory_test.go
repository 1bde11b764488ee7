package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/store"
)

func TestUpsertUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.UpsertUser(ctx, 777, store.Profile{Login: "octocat", Email: "a@x"})
	require.NoError(t, err)
	assert.Equal(t, "free", created.Tier, "new users start on the free tier")
	assert.NotEmpty(t, created.ID)

	// Re-login refreshes profile fields but keeps identity and tier.
	s.users[777].Tier = "pro"
	updated, err := s.UpsertUser(ctx, 777, store.Profile{Login: "octocat2", Email: "b@x"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "pro", updated.Tier)
	assert.Equal(t, "octocat2", updated.Login)

	got, err := s.GetUserByProviderID(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, "b@x", got.Email)

	_, err = s.GetUserByProviderID(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertInstallation(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.UpsertInstallation(ctx, 42, store.Account{Login: "octo-org", Type: "Organization"}, "active"))
	require.NoError(t, s.UpsertInstallation(ctx, 42, store.Account{Login: "octo-org", Type: "Organization"}, "suspended"))
	assert.Equal(t, "suspended", s.installations[42].status)
}
