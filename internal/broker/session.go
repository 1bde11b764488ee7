package broker

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/hubgate/hubgate/internal/apperr"
)

// Session tokens live in their own trust domain: a dedicated HMAC secret
// plus fixed issuer/audience, so a stolen app assertion can never pass as a
// session and vice versa.
const (
	sessionIssuer   = "hubgate"
	sessionAudience = "hubgate:session"
)

// SessionUser is the claim payload for a platform session.
type SessionUser struct {
	UserID     string
	ProviderID string
	Login      string
	AvatarURL  string
	Tier       string
}

// SessionClaims are the verified claims of a session token.
type SessionClaims struct {
	ProviderID string `json:"pid"`
	Login      string `json:"login"`
	AvatarURL  string `json:"avatar,omitempty"`
	Tier       string `json:"tier"`
	jwtv5.RegisteredClaims
}

// GenerateSessionToken issues a signed session token for u.
func (b *Broker) GenerateSessionToken(u SessionUser) (string, error) {
	now := b.now()
	claims := SessionClaims{
		ProviderID: u.ProviderID,
		Login:      u.Login,
		AvatarURL:  u.AvatarURL,
		Tier:       u.Tier,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    sessionIssuer,
			Audience:  jwtv5.ClaimStrings{sessionAudience},
			Subject:   u.UserID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(b.cfg.SessionTTL)),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString([]byte(b.cfg.SessionSecret))
	if err != nil {
		return "", apperr.ErrInternal.WithCause(err)
	}
	return signed, nil
}

// VerifySessionToken returns the claims of a valid session token, or nil.
// Expired, tampered and wrong-audience tokens are all just nil: callers get
// no signal about why verification failed.
func (b *Broker) VerifySessionToken(token string) *SessionClaims {
	claims := &SessionClaims{}
	parsed, err := jwtv5.ParseWithClaims(token, claims,
		func(t *jwtv5.Token) (any, error) { return []byte(b.cfg.SessionSecret), nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(sessionIssuer),
		jwtv5.WithAudience(sessionAudience),
		jwtv5.WithTimeFunc(b.now),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	return claims
}
