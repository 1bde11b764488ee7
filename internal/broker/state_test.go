package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/apperr"
	memcache "github.com/hubgate/hubgate/internal/cache/memory"
)

func newStateBroker(t *testing.T) (*Broker, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := &Broker{
		cfg: Config{
			StateSecret:  "state-secret",
			StateTTL:     10 * time.Minute,
			ClientID:     "client-id",
			AuthEndpoint: defaultAuthEndpoint,
			Scopes:       []string{"read:user"},
		},
		store: memcache.New(time.Minute),
	}
	b.now = func() time.Time { return now }
	return b, &now
}

func TestState_SingleUse(t *testing.T) {
	b, _ := newStateBroker(t)

	token, err := b.GenerateState("/after-login", 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	st, err := b.ConsumeState(token)
	require.NoError(t, err)
	assert.Equal(t, "/after-login", st.RedirectURL)
	assert.Equal(t, int64(42), st.InstallationID)
	assert.NotEmpty(t, st.Nonce)

	_, err = b.ConsumeState(token)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "a state token is consumable exactly once")
}

func TestState_Expiry(t *testing.T) {
	b, now := newStateBroker(t)

	token, err := b.GenerateState("", 0)
	require.NoError(t, err)

	*now = now.Add(11 * time.Minute)
	_, err = b.ConsumeState(token)
	assert.Error(t, err)
}

func TestState_NeverIssued(t *testing.T) {
	b, _ := newStateBroker(t)

	_, err := b.ConsumeState("deadbeef")
	assert.Error(t, err)

	_, err = b.ConsumeState("")
	assert.Error(t, err)
}

func TestState_TokensAreUnique(t *testing.T) {
	b, _ := newStateBroker(t)

	a, err := b.GenerateState("/x", 0)
	require.NoError(t, err)
	c, err := b.GenerateState("/x", 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "identical inputs must still yield distinct tokens")
}

func TestAuthorizeURL(t *testing.T) {
	b, _ := newStateBroker(t)
	b.cfg.CallbackURL = "https://gw.example.com/auth/github/callback"

	u := b.AuthorizeURL("tok-1", "")
	assert.Contains(t, u, defaultAuthEndpoint)
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=tok-1")
	assert.Contains(t, u, "redirect_uri=")
}
