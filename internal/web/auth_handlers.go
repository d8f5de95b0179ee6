package web

import (
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/nhle/showbot/internal/credential"
	"github.com/nhle/showbot/internal/model"
)

// pendingTokenTTL bounds how long a request token waits for the callback.
const pendingTokenTTL = time.Hour

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if !s.Config.Cohuman.HasConsumer() {
		s.render(w, http.StatusServiceUnavailable, "config_error.html", configErrorPage{
			Missing: s.Config.Missing(),
		})
		return
	}

	ctx := r.Context()
	if n, err := s.Store.PurgePendingTokens(ctx, s.now().Add(-pendingTokenTTL)); err != nil {
		s.Logger.Warn("purging request tokens", "err", err)
	} else if n > 0 {
		s.Logger.Debug("purged stale request tokens", "count", n)
	}

	token, secret, authorizeURL, err := s.Authorizer.RequestToken(siteURL(r) + "/authorized")
	if err != nil {
		s.Logger.Error("requesting token", "err", err)
		http.Error(w, "could not reach Cohuman", http.StatusBadGateway)
		return
	}

	if err := s.Store.SavePendingToken(ctx, model.PendingToken{Token: token, Secret: secret}); err != nil {
		s.Logger.Error("saving request token", "err", err)
		http.Error(w, "could not start authorization", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

func (s *Server) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	requestToken, verifier, err := oauth1.ParseAuthorizationCallback(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing oauth_token or oauth_verifier")
		return
	}

	ctx := r.Context()
	pending, err := s.Store.TakePendingToken(ctx, requestToken)
	if err != nil {
		s.Logger.Warn("unknown request token", "err", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown or expired request token")
		return
	}

	token, secret, err := s.Authorizer.AccessToken(pending.Token, pending.Secret, verifier)
	if err != nil {
		s.Logger.Error("exchanging access token", "err", err)
		http.Error(w, "could not complete authorization", http.StatusBadGateway)
		return
	}

	s.Session.SetAccessToken(token, secret)
	if s.Vault != nil {
		if err := s.Vault.Set(credential.KeyCohumanAccessToken, token); err != nil {
			s.Logger.Warn("saving access token", "err", err)
		}
		if err := s.Vault.Set(credential.KeyCohumanAccessSecret, secret); err != nil {
			s.Logger.Warn("saving access secret", "err", err)
		}
	}

	s.Logger.Info("connected to cohuman")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.Session.Authorized() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	result := "logged out"
	if err := s.Session.Logout(r.Context()); err != nil {
		s.Logger.Warn("cohuman logout", "err", err)
		result = err.Error()
	}

	if s.Vault != nil {
		_ = s.Vault.Delete(credential.KeyCohumanAccessToken)
		_ = s.Vault.Delete(credential.KeyCohumanAccessSecret)
	}

	s.render(w, http.StatusOK, "result.html", resultPage{Title: "Logout", Result: result})
}

// siteURL is the scheme and host the client used to reach us.
func siteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
