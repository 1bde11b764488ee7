package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/apperr"
)

func newOAuthBroker(tokenEndpoint, apiBaseURL string) *Broker {
	b := &Broker{
		cfg: Config{
			ClientID:      "client-id",
			ClientSecret:  "client-secret",
			TokenEndpoint: tokenEndpoint,
			APIBaseURL:    apiBaseURL,
		},
		http: &http.Client{Timeout: 5 * time.Second},
	}
	b.now = time.Now
	return b
}

func TestExchangeCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "the-code", r.PostForm.Get("code"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"gho_tok","token_type":"bearer","scope":"read:user"}`))
		}))
		defer srv.Close()

		b := newOAuthBroker(srv.URL, "")
		tr, err := b.ExchangeCode(context.Background(), "the-code", "")
		require.NoError(t, err)
		assert.Equal(t, "gho_tok", tr.AccessToken)
	})

	t.Run("provider error in body", func(t *testing.T) {
		// GitHub reports exchange failures with a 200 and an error field.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code is incorrect"}`))
		}))
		defer srv.Close()

		b := newOAuthBroker(srv.URL, "")
		_, err := b.ExchangeCode(context.Background(), "stale-code", "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("upstream 5xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		b := newOAuthBroker(srv.URL, "")
		_, err := b.ExchangeCode(context.Background(), "any", "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindProvider))
	})

	t.Run("empty token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		b := newOAuthBroker(srv.URL, "")
		_, err := b.ExchangeCode(context.Background(), "any", "")
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindProvider))
	})
}

func TestFetchUser_PrivateEmailFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":777,"login":"octocat","name":"Octo","email":"","avatar_url":"https://a/u/777"}`))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"email":"old@example.com","primary":false,"verified":true},
			{"email":"main@example.com","primary":true,"verified":true}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := newOAuthBroker("", srv.URL)
	info, err := b.FetchUser(context.Background(), "gho_tok")
	require.NoError(t, err)
	assert.Equal(t, int64(777), info.ID)
	assert.Equal(t, "octocat", info.Login)
	assert.Equal(t, "main@example.com", info.Email, "primary verified address wins")
}

func TestPickEmail(t *testing.T) {
	assert.Equal(t, "", pickEmail(nil))
	assert.Equal(t, "a@x", pickEmail([]emailInfo{{Email: "a@x"}}))
	assert.Equal(t, "v@x", pickEmail([]emailInfo{
		{Email: "a@x"},
		{Email: "v@x", Verified: true},
	}))
}
