package cohuman

import (
	"fmt"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/nhle/showbot/internal/model"
)

// OAuth 1.0a endpoints, relative to the API base URL.
const (
	requestTokenPath = "/api/token/request"
	authorizePath    = "/api/authorize"
	accessTokenPath  = "/api/token/access"
)

// Authorizer runs the three-legged OAuth 1.0a dance against Cohuman.
type Authorizer struct {
	config oauth1.Config
}

// NewAuthorizer builds an Authorizer from the consumer key and secret in cfg.
func NewAuthorizer(cfg model.CohumanConfig) *Authorizer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Authorizer{
		config: oauth1.Config{
			ConsumerKey:    cfg.APIKey,
			ConsumerSecret: cfg.APISecret,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: base + requestTokenPath,
				AuthorizeURL:    base + authorizePath,
				AccessTokenURL:  base + accessTokenPath,
			},
		},
	}
}

// RequestToken obtains a request token and the URL the user must visit to
// approve it. Cohuman redirects back to callbackURL afterwards.
func (a *Authorizer) RequestToken(callbackURL string) (token, secret, authorizeURL string, err error) {
	cfg := a.config
	cfg.CallbackURL = callbackURL

	token, secret, err = cfg.RequestToken()
	if err != nil {
		return "", "", "", fmt.Errorf("getting cohuman request token: %w", err)
	}

	u, err := cfg.AuthorizationURL(token)
	if err != nil {
		return "", "", "", fmt.Errorf("building cohuman authorize url: %w", err)
	}

	return token, secret, u.String(), nil
}

// AccessToken exchanges an approved request token for an access token.
func (a *Authorizer) AccessToken(
	requestToken, requestSecret, verifier string,
) (token, secret string, err error) {
	token, secret, err = a.config.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("getting cohuman access token: %w", err)
	}
	return token, secret, nil
}
