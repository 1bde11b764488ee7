package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/observability/logger"
)

// TokenResponse is the provider's token endpoint response. GitHub reports
// errors in the body with a 200 status, so Error/ErrorDesc are part of the
// wire format rather than an HTTP concern.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	Scope                 string `json:"scope"`
	ExpiresIn             int64  `json:"expires_in,omitempty"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in,omitempty"`
	Error                 string `json:"error,omitempty"`
	ErrorDesc             string `json:"error_description,omitempty"`
}

// ExchangeCode exchanges an authorization code for a user access token.
// Provider-reported errors surface as OAuthDenied; network and decode
// failures as provider errors.
func (b *Broker) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", b.cfg.ClientID)
	form.Set("client_secret", b.cfg.ClientSecret)
	form.Set("code", code)
	if redirectURI == "" {
		redirectURI = b.cfg.CallbackURL
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return b.tokenRequest(ctx, form)
}

// RefreshAccessToken redeems a refresh token for a fresh user token.
func (b *Broker) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", b.cfg.ClientID)
	form.Set("client_secret", b.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return b.tokenRequest(ctx, form)
}

func (b *Broker) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.ErrInternal.WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, apperr.ErrProvider.WithDetail("token endpoint unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperr.ErrProvider.WithDetail(fmt.Sprintf("token endpoint status %d", resp.StatusCode))
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, apperr.ErrProvider.WithDetail("undecodable token response").WithCause(err)
	}
	if tr.Error != "" {
		return nil, apperr.ErrOAuthDenied.WithDetail(fmt.Sprintf("%s: %s", tr.Error, tr.ErrorDesc))
	}
	if tr.AccessToken == "" {
		return nil, apperr.ErrProvider.WithDetail("no access_token in response")
	}
	return &tr, nil
}

// RevokeAccessToken revokes a user token. Best-effort: failures are logged
// at warn and swallowed, revocation is not worth failing a logout over.
func (b *Broker) RevokeAccessToken(ctx context.Context, accessToken string) {
	endpoint := fmt.Sprintf("%s/applications/%s/token", b.cfg.APIBaseURL, b.cfg.ClientID)
	body := strings.NewReader(fmt.Sprintf(`{"access_token":%q}`, accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, body)
	if err != nil {
		return
	}
	req.SetBasicAuth(b.cfg.ClientID, b.cfg.ClientSecret)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := b.http.Do(req)
	if err != nil {
		logger.From(ctx).Warn("token revoke failed", logger.Err(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		logger.From(ctx).Warn("token revoke rejected", logger.Status(resp.StatusCode))
	}
}

// UserInfo is the provider's user profile, trimmed to what the platform
// persists.
type UserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchUser fetches the authenticated user's profile. Some users keep their
// email private, in which case a second call to the emails endpoint fills
// it in with the primary verified address.
func (b *Broker) FetchUser(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	if err := b.apiGet(ctx, accessToken, "/user", &info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		var emails []emailInfo
		if err := b.apiGet(ctx, accessToken, "/user/emails", &emails); err == nil {
			info.Email = pickEmail(emails)
		}
	}
	return &info, nil
}

func pickEmail(emails []emailInfo) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

func (b *Broker) apiGet(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.APIBaseURL+path, nil)
	if err != nil {
		return apperr.ErrInternal.WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := b.http.Do(req)
	if err != nil {
		return apperr.ErrProvider.WithDetail("api unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.ErrProvider.WithDetail(fmt.Sprintf("GET %s status %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.ErrProvider.WithDetail("undecodable api response").WithCause(err)
	}
	return nil
}
