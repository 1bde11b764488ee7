// Package oauthctrl serves the browser-facing OAuth flow: the login
// redirect into the provider and the callback that turns an authorization
// code into a platform session.
package oauthctrl

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hubgate/hubgate/internal/apperr"
	"github.com/hubgate/hubgate/internal/audit"
	"github.com/hubgate/hubgate/internal/broker"
	"github.com/hubgate/hubgate/internal/http/helpers"
	"github.com/hubgate/hubgate/internal/metrics"
	"github.com/hubgate/hubgate/internal/observability/logger"
	"github.com/hubgate/hubgate/internal/rate"
	"github.com/hubgate/hubgate/internal/store"
)

// CookieConfig shapes the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// errorPath is where callback failures outside the user's control land;
// the frontend renders it as a "try again" page.
const errorPath = "/auth/error"

type Controller struct {
	broker      *broker.Broker
	store       store.Store
	audit       audit.Recorder
	tiers       rate.TierTable
	cookie      CookieConfig
	defaultPath string
}

func New(b *broker.Broker, st store.Store, rec audit.Recorder, tiers rate.TierTable, cookie CookieConfig, defaultPath string) *Controller {
	if cookie.Name == "" {
		cookie.Name = "hubgate_session"
	}
	if defaultPath == "" {
		defaultPath = "/dashboard"
	}
	if tiers == nil {
		tiers = rate.DefaultTierTable()
	}
	return &Controller{broker: b, store: st, audit: rec, tiers: tiers, cookie: cookie, defaultPath: defaultPath}
}

// Initiate starts the login flow: mint a single-use state and redirect the
// browser to the provider's authorization page. redirect_uri and
// installation_id are optional and travel inside the state record, never in
// the provider round trip.
func (c *Controller) Initiate(w http.ResponseWriter, r *http.Request) {
	redirectURL := r.URL.Query().Get("redirect_uri")
	var installationID int64
	if raw := r.URL.Query().Get("installation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			helpers.WriteError(w, apperr.ErrBadRequest.WithDetail("installation_id must be numeric"))
			return
		}
		installationID = id
	}

	state, err := c.broker.GenerateState(redirectURL, installationID)
	if err != nil {
		logger.From(r.Context()).Error("state generation failed", logger.Err(err))
		helpers.WriteError(w, err)
		return
	}

	http.Redirect(w, r, c.broker.AuthorizeURL(state, ""), http.StatusFound)
}

// Callback completes the flow: consume the state, exchange the code, fetch
// the provider profile, upsert the user and hand the browser a session.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		c.audit.Record(ctx, "oauth.login", "denied", map[string]any{"error": errCode})
		metrics.IncOAuthLogin("denied")
		helpers.WriteError(w, apperr.ErrOAuthDenied.WithDetail(errCode+": "+q.Get("error_description")))
		return
	}

	code, stateToken := q.Get("code"), q.Get("state")
	if code == "" || stateToken == "" {
		helpers.WriteError(w, apperr.ErrBadRequest.WithDetail("code and state are required"))
		return
	}

	st, err := c.broker.ConsumeState(stateToken)
	if err != nil {
		c.audit.Record(ctx, "oauth.login", "invalid_state", nil)
		metrics.IncOAuthLogin("invalid_state")
		helpers.WriteError(w, err)
		return
	}

	tok, err := c.broker.ExchangeCode(ctx, code, "")
	if err != nil {
		log.Warn("code exchange failed", logger.Err(err))
		metrics.IncOAuthLogin("exchange_failed")
		c.fail(w, r, err)
		return
	}

	info, err := c.broker.FetchUser(ctx, tok.AccessToken)
	if err != nil {
		log.Warn("profile fetch failed", logger.Err(err))
		metrics.IncOAuthLogin("profile_failed")
		c.fail(w, r, err)
		return
	}

	user, err := c.store.UpsertUser(ctx, info.ID, store.Profile{
		Login:     info.Login,
		Name:      info.Name,
		Email:     info.Email,
		AvatarURL: info.AvatarURL,
	})
	if err != nil {
		log.Error("user upsert failed", logger.Err(err))
		c.fail(w, r, apperr.ErrInternal.WithCause(err))
		return
	}

	// A login that arrived through an installation setup redirect also
	// records the installation.
	if st.InstallationID != 0 {
		if err := c.store.UpsertInstallation(ctx, st.InstallationID,
			store.Account{Login: info.Login, Type: "User"}, "active"); err != nil {
			log.Warn("installation upsert failed",
				logger.InstallationID(st.InstallationID), logger.Err(err))
		}
	}

	session, err := c.broker.GenerateSessionToken(broker.SessionUser{
		UserID:     user.ID,
		ProviderID: strconv.FormatInt(user.ProviderID, 10),
		Login:      user.Login,
		AvatarURL:  user.AvatarURL,
		Tier:       user.Tier,
	})
	if err != nil {
		log.Error("session mint failed", logger.UserID(user.ID), logger.Err(err))
		c.fail(w, r, err)
		return
	}

	c.setSessionCookies(w, session, user)

	c.audit.Record(ctx, "oauth.login", "success", map[string]any{
		"user_id": user.ID,
		"login":   user.Login,
	})
	metrics.IncOAuthLogin("success")
	log.Info("oauth login completed", logger.UserID(user.ID), logger.Subject(user.Login))

	target := st.RedirectURL
	if target == "" {
		target = c.defaultPath
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// fail renders a callback error. The caller did nothing wrong when the
// provider or the gateway breaks mid-flow, so those land on the error page;
// validation failures stay JSON with their status.
func (c *Controller) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.FromError(err)
	if ae.Kind == apperr.KindProvider || ae.Kind == apperr.KindInternal {
		http.Redirect(w, r, errorPath+"?code="+url.QueryEscape(ae.Code), http.StatusFound)
		return
	}
	helpers.WriteError(w, ae)
}

// setSessionCookies writes the httpOnly session token plus a display cookie
// the frontend may read. The display cookie carries no secrets.
func (c *Controller) setSessionCookies(w http.ResponseWriter, session string, u *store.User) {
	maxAge := int(c.cookie.MaxAge / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    session,
		Path:     "/",
		Domain:   c.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   c.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	display, err := json.Marshal(map[string]string{
		"id":     u.ID,
		"login":  u.Login,
		"avatar": u.AvatarURL,
		"tier":   u.Tier,
	})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name + "_user",
		Value:    base64.RawURLEncoding.EncodeToString(display),
		Path:     "/",
		Domain:   c.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   c.cookie.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout revokes nothing upstream by default; it clears the cookies and
// records the event. Token revocation happens only when the session is
// still verifiable and a user token is attached server-side, which the
// gateway does not persist.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{c.cookie.Name, c.cookie.Name + "_user"} {
		http.SetCookie(w, &http.Cookie{
			Name:   name,
			Value:  "",
			Path:   "/",
			Domain: c.cookie.Domain,
			MaxAge: -1,
		})
	}
	c.audit.Record(r.Context(), "oauth.logout", "success", nil)
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session reports the verified claims of the current session cookie, or 401.
func (c *Controller) Session(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(c.cookie.Name)
	if err != nil || ck.Value == "" {
		helpers.WriteJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}
	claims := c.broker.VerifySessionToken(ck.Value)
	if claims == nil {
		helpers.WriteJSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}

	// Surface the tier's quotas so the frontend can render usage meters.
	// -1 means unlimited.
	limits := c.tiers[claims.Tier]
	if _, ok := c.tiers[claims.Tier]; !ok {
		limits = c.tiers["free"]
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":     claims.Subject,
			"login":  claims.Login,
			"avatar": claims.AvatarURL,
			"tier":   claims.Tier,
		},
		"quotas": map[string]int{
			"monthly_issues":    limits.MonthlyIssueLimit,
			"concurrent_agents": limits.ConcurrentAgentLimit,
			"repositories":      limits.RepositoryLimit,
		},
	})
}
