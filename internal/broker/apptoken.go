package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/metrics"
	"github.com/hubgate/hubgate/internal/observability/logger"
)

const instTokenPrefix = "gh:insttoken:"

// InstallationToken is a short-lived installation-scoped credential.
type InstallationToken struct {
	Token               string            `json:"token"`
	ExpiresAt           time.Time         `json:"expires_at"`
	Permissions         map[string]string `json:"permissions,omitempty"`
	RepositorySelection string            `json:"repository_selection,omitempty"`
}

// AppAssertion mints the app-level signed assertion used to authenticate as
// the GitHub App itself. iat is backdated 60s to tolerate clock skew
// between the gateway and the provider.
func (b *Broker) AppAssertion() (string, error) {
	now := b.now()
	claims := jwtv5.MapClaims{
		"iat": now.Add(-assertionClockSkew).Unix(),
		"exp": now.Add(assertionTTL).Unix(),
		"iss": fmt.Sprintf("%d", b.cfg.AppID),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	signed, err := tk.SignedString(b.privateKey)
	if err != nil {
		return "", apperr.ErrInternal.WithCause(err)
	}
	return signed, nil
}

// InstallationToken returns a valid token for the installation, minting one
// when the cache is empty or the cached token is inside the safety buffer.
// Concurrent callers for the same installation share a single mint.
func (b *Broker) InstallationToken(ctx context.Context, installationID int64) (*InstallationToken, error) {
	key := fmt.Sprintf("%s%d", instTokenPrefix, installationID)

	if tok := b.cachedToken(key); tok != nil {
		metrics.IncTokenRequest("cache_hit")
		return tok, nil
	}

	v, err, _ := b.mintGroup.Do(key, func() (any, error) {
		// Re-check under the flight: a sibling may have refreshed already.
		if tok := b.cachedToken(key); tok != nil {
			return tok, nil
		}
		tok, err := b.mintInstallationToken(ctx, installationID)
		if err != nil {
			return nil, err
		}
		metrics.IncTokenRequest("mint")
		raw, merr := json.Marshal(tok)
		if merr == nil {
			// The slot expires when the safety buffer starts, so a cache
			// hit is always a servable token.
			ttl := tok.ExpiresAt.Sub(b.now()) - b.cfg.SafetyBuffer
			if ttl > 0 {
				b.store.Set(key, raw, ttl)
			}
		}
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*InstallationToken), nil
}

func (b *Broker) cachedToken(key string) *InstallationToken {
	raw, ok := b.store.Get(key)
	if !ok {
		return nil
	}
	var tok InstallationToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil
	}
	if !b.now().Before(tok.ExpiresAt.Add(-b.cfg.SafetyBuffer)) {
		return nil
	}
	return &tok
}

func (b *Broker) mintInstallationToken(ctx context.Context, installationID int64) (*InstallationToken, error) {
	assertion, err := b.AppAssertion()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", b.cfg.APIBaseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, apperr.ErrInternal.WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, apperr.ErrProvider.WithDetail("installation token endpoint unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.ErrProviderRateLimited.WithDetail(string(body))
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apperr.ErrProvider.WithDetail(
			fmt.Sprintf("installation token mint status %d", resp.StatusCode))
	}

	var tok InstallationToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, apperr.ErrProvider.WithDetail("undecodable installation token").WithCause(err)
	}

	logger.From(ctx).Info("installation token minted",
		logger.InstallationID(installationID),
		logger.Duration(time.Until(tok.ExpiresAt)))
	return &tok, nil
}
