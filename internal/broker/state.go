package broker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hubgate/hubgate/internal/apperr"
	tokens "github.com/hubgate/hubgate/internal/security/token"
)

const statePrefix = "oauth:state:"

// State is the ephemeral record bound to one authorization redirect. The
// opaque token handed to the browser is a keyed digest of this package and
// doubles as the store key; single-use semantics come from the atomic
// fetch-and-delete on consumption, not from recomputing the digest.
type State struct {
	Nonce          string `json:"nonce"`
	RedirectURL    string `json:"redirect_url,omitempty"`
	InstallationID int64  `json:"installation_id,omitempty"`
	IssuedAt       int64  `json:"issued_at"`
}

// GenerateState creates a single-use, TTL-bounded state token. redirectURL
// and installationID are optional context carried through the flow.
func (b *Broker) GenerateState(redirectURL string, installationID int64) (string, error) {
	nonce, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", apperr.ErrInternal.WithCause(err)
	}

	st := State{
		Nonce:          nonce,
		RedirectURL:    redirectURL,
		InstallationID: installationID,
		IssuedAt:       b.now().Unix(),
	}

	payload := fmt.Sprintf("%s|%s|%d|%d", st.Nonce, st.RedirectURL, st.InstallationID, st.IssuedAt)
	token := tokens.HMACSHA256Hex([]byte(b.cfg.StateSecret), []byte(payload))

	raw, err := json.Marshal(st)
	if err != nil {
		return "", apperr.ErrInternal.WithCause(err)
	}
	b.store.Set(statePrefix+token, raw, b.cfg.StateTTL)
	return token, nil
}

// ConsumeState validates and deletes a state token in one step. Expired,
// already-consumed and never-issued tokens are indistinguishable: all
// return ErrInvalidState.
func (b *Broker) ConsumeState(token string) (*State, error) {
	if token == "" {
		return nil, apperr.ErrInvalidState
	}
	raw, ok := b.store.GetDel(statePrefix + token)
	if !ok {
		return nil, apperr.ErrInvalidState
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, apperr.ErrInvalidState.WithCause(err)
	}
	// The store already expires entries; this guards backends with coarser
	// TTL resolution.
	if b.now().Sub(time.Unix(st.IssuedAt, 0)) > b.cfg.StateTTL {
		return nil, apperr.ErrInvalidState
	}
	return &st, nil
}

// AuthorizeURL builds the provider authorization URL for a generated state.
// Pure construction, no side effects.
func (b *Broker) AuthorizeURL(state, redirectURI string) string {
	u, _ := url.Parse(b.cfg.AuthEndpoint)
	q := u.Query()
	q.Set("client_id", b.cfg.ClientID)
	q.Set("scope", strings.Join(b.cfg.Scopes, " "))
	q.Set("state", state)
	if redirectURI == "" {
		redirectURI = b.cfg.CallbackURL
	}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
