package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/zitadel/oidc-core/internal/otel"
	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

var Tracer = otel.Tracer("github.com/zitadel/oidc-core/pkg/client")

// Discover calls the discovery endpoint of the provided issuer and returns its configuration
// It accepts an optional argument "wellknownUrl" which can be used to overide the dicovery endpoint url
func Discover(ctx context.Context, issuer string, httpClient *http.Client, wellKnownUrl ...string) (*oidc.DiscoveryConfiguration, error) {
	ctx, span := Tracer.Start(ctx, "Discover")
	defer span.End()

	wellKnown := oidc.WellKnownURL(issuer)
	if len(wellKnownUrl) == 1 && wellKnownUrl[0] != "" {
		wellKnown = wellKnownUrl[0]
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, err
	}
	discoveryConfig := new(oidc.DiscoveryConfiguration)
	if err = httphelper.HttpRequest(httpClient, req, discoveryConfig); err != nil {
		return nil, fmt.Errorf("%w: %w", oidc.ErrDiscoveryFailed, err)
	}
	if discoveryConfig.Issuer != issuer {
		return nil, fmt.Errorf("%w: %w: expected %q, got %q", oidc.ErrDiscoveryFailed, oidc.ErrIssuerInvalid, issuer, discoveryConfig.Issuer)
	}
	return discoveryConfig, nil
}

type TokenEndpointCaller interface {
	TokenEndpoint() string
	HttpClient() *http.Client
}

// ClientAuth describes how a client is identified at the token endpoint.
// With a secret, HTTP basic authentication is used, otherwise the
// client_id is sent as form parameter when the grant type requires it.
type ClientAuth struct {
	ClientID     string
	ClientSecret string
}

func (c ClientAuth) apply(gt oidc.GrantType, form url.Values) httphelper.RequestAuthorization {
	if c.ClientSecret != "" {
		return httphelper.AuthorizeBasic(c.ClientID, c.ClientSecret)
	}
	if c.ClientID != "" && gt.RequiresClientID() {
		form.Set("client_id", c.ClientID)
	}
	return nil
}

// CallTokenEndpoint sends the grant to the token endpoint of the caller.
// The id_token of the response, if any, is available through the
// "id_token" extra of the returned token.
func CallTokenEndpoint(ctx context.Context, grant oidc.Grant, auth ClientAuth, caller TokenEndpointCaller) (*oauth2.Token, error) {
	ctx, span := Tracer.Start(ctx, "CallTokenEndpoint")
	defer span.End()

	gt := grant.GrantType()
	if gt.RequiresClientAuthentication() && auth.ClientSecret == "" {
		return nil, fmt.Errorf("%w: grant type %s requires client authentication", oidc.ErrMissingRequired, gt)
	}
	form, err := grant.Parameters()
	if err != nil {
		return nil, err
	}
	authFn := auth.apply(gt, form)

	req, err := httphelper.FormRequest(ctx, caller.TokenEndpoint(), form, authFn)
	if err != nil {
		return nil, err
	}
	tokenRes := new(oidc.AccessTokenResponse)
	if err = httphelper.HttpRequest(caller.HttpClient(), req, tokenRes); err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		AccessToken:  tokenRes.AccessToken,
		TokenType:    tokenRes.TokenType,
		RefreshToken: tokenRes.RefreshToken,
	}
	if tokenRes.ExpiresIn > 0 {
		token.Expiry = time.Now().UTC().Add(time.Duration(tokenRes.ExpiresIn) * time.Second)
	}
	extra := make(map[string]any, 2)
	if tokenRes.IDToken != "" {
		extra["id_token"] = tokenRes.IDToken
	}
	if tokenRes.Scope != "" {
		extra["scope"] = tokenRes.Scope
	}
	if len(extra) > 0 {
		token = token.WithExtra(extra)
	}
	return token, nil
}
