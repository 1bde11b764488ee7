// Package broker manages every credential the gateway touches: one-time
// OAuth state, user token exchange, app-level assertions, cached
// installation access tokens and platform session tokens.
//
// GitHub Apps use OAuth 2.0 without ID tokens, so user identity requires a
// separate API call after the code exchange. Installation credentials are a
// second, independent trust domain: short-lived tokens minted with an
// RS256-signed app assertion and cached per installation.
package broker

import (
	"crypto/rsa"
	"net/http"
	"os"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/cache"
)

const (
	defaultAuthEndpoint  = "https://github.com/login/oauth/authorize"
	defaultTokenEndpoint = "https://github.com/login/oauth/access_token"
	defaultAPIBaseURL    = "https://api.github.com"

	defaultStateTTL      = 10 * time.Minute
	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultSafetyBuffer  = 5 * time.Minute
	assertionTTL         = 10 * time.Minute
	assertionClockSkew   = 60 * time.Second
	defaultClientTimeout = 10 * time.Second
)

// Config carries the broker's credentials and knobs. AppID, ClientID,
// ClientSecret, the private key and both signing secrets are mandatory;
// missing values are a startup-time configuration error.
type Config struct {
	AppID          int64
	PrivateKeyPEM  []byte
	PrivateKeyPath string

	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// StateSecret keys the digest that becomes the opaque state token.
	StateSecret string
	// SessionSecret signs platform session tokens. Deliberately distinct
	// from the app private key so the two trust domains cannot be confused.
	SessionSecret string

	StateTTL     time.Duration
	SessionTTL   time.Duration
	SafetyBuffer time.Duration

	// Endpoint overrides for GitHub Enterprise and for tests.
	AuthEndpoint  string
	TokenEndpoint string
	APIBaseURL    string
}

// Broker is the credential broker. Safe for concurrent use.
type Broker struct {
	cfg        Config
	privateKey *rsa.PrivateKey
	store      cache.Cache
	http       *http.Client
	mintGroup  singleflight.Group
	now        func() time.Time
}

// New validates cfg and builds a Broker backed by store.
func New(cfg Config, store cache.Cache) (*Broker, error) {
	if cfg.AppID == 0 {
		return nil, apperr.ErrConfigMissing.WithDetail("github app id")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, apperr.ErrConfigMissing.WithDetail("oauth client id/secret")
	}
	if cfg.StateSecret == "" {
		return nil, apperr.ErrConfigMissing.WithDetail("oauth state secret")
	}
	if cfg.SessionSecret == "" {
		return nil, apperr.ErrConfigMissing.WithDetail("session signing secret")
	}

	keyBytes := cfg.PrivateKeyPEM
	if len(keyBytes) == 0 && cfg.PrivateKeyPath != "" {
		contents, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, apperr.ErrConfigMissing.WithDetail("app private key file").WithCause(err)
		}
		keyBytes = contents
	}
	if len(keyBytes) == 0 {
		return nil, apperr.ErrConfigMissing.WithDetail("app private key")
	}
	key, err := jwtv5.ParseRSAPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, apperr.ErrConfigMissing.WithDetail("app private key is not valid PEM").WithCause(err)
	}

	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	if cfg.StateTTL == 0 {
		cfg.StateTTL = defaultStateTTL
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.SafetyBuffer == 0 {
		cfg.SafetyBuffer = defaultSafetyBuffer
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaultAuthEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}

	return &Broker{
		cfg:        cfg,
		privateKey: key,
		store:      store,
		http:       &http.Client{Timeout: defaultClientTimeout},
		now:        time.Now,
	}, nil
}
