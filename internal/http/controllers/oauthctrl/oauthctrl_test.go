package oauthctrl

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/broker"
	memcache "github.com/hubgate/hubgate/internal/cache/memory"
	memstore "github.com/hubgate/hubgate/internal/store/memory"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// newFlow wires a controller against a well-behaved fake provider.
func newFlow(t *testing.T) (*Controller, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_tok","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":777,"login":"octocat","name":"Octo","email":"octo@example.com","avatar_url":"https://a/u/777"}`))
	})
	return newFlowWith(t, mux)
}

// newFlowWith wires a controller against the given provider behavior.
func newFlowWith(t *testing.T, mux *http.ServeMux) (*Controller, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	brk, err := broker.New(broker.Config{
		AppID:         1,
		PrivateKeyPEM: testKeyPEM(t),
		ClientID:      "cid",
		ClientSecret:  "csecret",
		StateSecret:   "state-secret",
		SessionSecret: "session-secret",
		AuthEndpoint:  srv.URL + "/login/oauth/authorize",
		TokenEndpoint: srv.URL + "/login/oauth/access_token",
		APIBaseURL:    srv.URL,
	}, memcache.New(time.Minute))
	require.NoError(t, err)

	ctrl := New(brk, memstore.New(), audit.Nop{}, nil, CookieConfig{
		Name:   "hubgate_session",
		MaxAge: time.Hour,
	}, "/dashboard")
	return ctrl, srv
}

func TestLoginFlow(t *testing.T) {
	ctrl, srv := newFlow(t)

	// Initiate: the browser is sent to the provider with a state bound to
	// the requested post-login redirect.
	rec := httptest.NewRecorder()
	ctrl.Initiate(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/login?redirect_uri=/next&installation_id=42", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Contains(t, srv.URL, loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "cid", loc.Query().Get("client_id"))

	// Callback: exchange, profile fetch, upsert, session cookies, redirect.
	rec = httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?code=the-code&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/next", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	var session, display *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case "hubgate_session":
			session = c
		case "hubgate_session_user":
			display = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)
	require.NotNil(t, display)
	assert.False(t, display.HttpOnly)

	// Session endpoint recognizes the issued cookie.
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	ctrl.Session(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"octocat"`)
	assert.Contains(t, rec.Body.String(), `"monthly_issues":100`, "new users carry free-tier quotas")

	// The state was consumed: replaying the callback fails.
	rec = httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?code=the-code&state="+url.QueryEscape(state), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallback_ProviderDenied(t *testing.T) {
	ctrl, _ := newFlow(t)

	rec := httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?error=access_denied&error_description=user+said+no", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestCallback_ProviderOutageRedirectsToErrorPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctrl, _ := newFlowWith(t, mux)

	rec := httptest.NewRecorder()
	ctrl.Initiate(rec, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	// The user did everything right; a broken provider sends them to the
	// error page instead of a JSON wall.
	rec = httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/callback?code=the-code&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/error", target.Path)
	assert.NotEmpty(t, target.Query().Get("code"))
}

func TestCallback_MissingParams(t *testing.T) {
	ctrl, _ := newFlow(t)

	rec := httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiate_BadInstallationID(t *testing.T) {
	ctrl, _ := newFlow(t)

	rec := httptest.NewRecorder()
	ctrl.Initiate(rec, httptest.NewRequest(http.MethodGet,
		"/auth/github/login?installation_id=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_Unauthenticated(t *testing.T) {
	ctrl, _ := newFlow(t)

	rec := httptest.NewRecorder()
	ctrl.Session(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "hubgate_session", Value: "forged"})
	rec = httptest.NewRecorder()
	ctrl.Session(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
