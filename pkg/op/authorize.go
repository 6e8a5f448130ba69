package op

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

// AuthRequestHandler continues the flow of a valid authentication request,
// e.g. by redirecting the user agent to the login UI.
type AuthRequestHandler func(w http.ResponseWriter, r *http.Request, authReq *oidc.AuthRequest)

// ClientRedirectURIs returns the redirect URIs registered for a client.
// An unknown client must result in an error.
type ClientRedirectURIs func(ctx context.Context, clientID oidc.ClientID) ([]string, error)

var ErrUnknownClient = errors.New("unknown client")

// StaticClients looks up the redirect URIs in a fixed set of registered clients.
func StaticClients(clients map[oidc.ClientID]*oidc.ClientMetadata) ClientRedirectURIs {
	return func(_ context.Context, clientID oidc.ClientID) ([]string, error) {
		client, ok := clients[clientID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
		}
		return client.RedirectURIs, nil
	}
}

// ParseAuthorizeRequest parses the authentication request from the query
// of a GET or the form of a POST request.
// The endpoint of the request is the URL the client sent it to,
// reconstructed from the Forwarded and X-Forwarded-* headers.
func ParseAuthorizeRequest(r *http.Request, opts ...oidc.ParseOption) (*oidc.AuthRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, &oidc.ParseError{
			Message:      "cannot parse form: " + err.Error(),
			ErrorObject:  oidc.ErrInvalidRequest().WithDescription("cannot parse form").WithParent(err),
			ResponseMode: oidc.ResponseModeQuery,
		}
	}
	return oidc.ParseAuthRequest(r.Form, RequestEndpoint(r), opts...)
}

func (o *Provider) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Authorize")
	r = r.WithContext(ctx)
	defer span.End()

	authReq, err := ParseAuthorizeRequest(r, o.parseOpts...)
	if err != nil {
		o.authRequestError(w, r, err)
		return
	}
	if redirectURI := authReq.RedirectURI(); redirectURI != nil && o.clientRedirectURIs != nil {
		if err = o.ValidateRedirectURI(ctx, authReq.ClientID(), redirectURI); err != nil {
			AuthRequestError(w, r, err, o.logger)
			return
		}
	}
	if err = o.ValidateAuthRequest(authReq); err != nil {
		o.authRequestError(w, r, authResponseParseError(authReq, err))
		return
	}
	o.logger.DebugContext(ctx, "auth request", "auth_request", authReq)
	o.authRequestHandler(w, r, authReq)
}

// authRequestError delivers err, but only redirects to a redirect URI
// which is registered for the client. Otherwise the error is written
// as JSON to the user agent.
func (o *Provider) authRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *oidc.ParseError
	if errors.As(err, &parseErr) && parseErr.Redirectable() {
		if verr := o.ValidateRedirectURI(r.Context(), parseErr.ClientID, parseErr.RedirectURI); verr != nil {
			o.logger.WarnContext(r.Context(), "error redirect refused",
				"client_id", parseErr.ClientID,
				"redirect_uri", parseErr.RedirectURI.String(),
				"reason", verr,
			)
			unverified := *parseErr
			unverified.RedirectURI = nil
			err = &unverified
		}
	}
	AuthRequestError(w, r, err, o.logger)
}

// ValidateRedirectURI checks that the redirect URI is registered for
// the client, by exact string comparison.
// Without [WithClientRedirectURIs] no redirect URI can be verified.
// The returned error disables the redirect.
func (o *Provider) ValidateRedirectURI(ctx context.Context, clientID oidc.ClientID, redirectURI *url.URL) error {
	if redirectURI == nil {
		return oidc.ErrInvalidRequestRedirectURI().WithDescription("The redirect_uri is missing in the request.")
	}
	if o.clientRedirectURIs == nil {
		return oidc.ErrInvalidRequestRedirectURI().WithDescription("The redirect_uri cannot be verified.")
	}
	registered, err := o.clientRedirectURIs(ctx, clientID)
	if err != nil {
		return oidc.ErrInvalidRequestRedirectURI().WithDescription("The client %q is unknown.", clientID).WithParent(err)
	}
	if !contains(registered, redirectURI.String()) {
		return oidc.ErrInvalidRequestRedirectURI().WithDescription("The requested redirect_uri is missing in the client configuration.")
	}
	return nil
}

// ValidateAuthRequest checks the request against the capabilities
// announced in the discovery document.
func (o *Provider) ValidateAuthRequest(authReq *oidc.AuthRequest) error {
	c := o.config
	if !supportsResponseType(c.ResponseTypes, authReq.ResponseType()) {
		return oidc.ErrUnsupportedResponseType().WithDescription("The requested response type %q is not supported", authReq.ResponseType().String())
	}
	if mode := authReq.ResponseMode(); mode != "" && !contains(c.ResponseModes, mode) {
		return oidc.ErrInvalidRequest().WithDescription("The requested response mode %q is not supported", mode)
	}
	if challenge := authReq.CodeChallengeParams(); challenge != nil && !contains(c.CodeChallengeMethods, challenge.Method) {
		return oidc.ErrInvalidRequest().WithDescription("The code challenge method %q is not supported", challenge.Method)
	}
	if authReq.RequestObject() != "" && !c.RequestObjectSupported {
		return oidc.ErrRequestNotSupported()
	}
	if authReq.RequestURI() != nil && !c.RequestURISupported {
		return oidc.ErrRequestURINotSupported()
	}
	if authReq.Claims() != nil && !c.ClaimsParameterSupported {
		return oidc.ErrInvalidRequest().WithDescription("The claims parameter is not supported")
	}
	return nil
}

func supportsResponseType(supported []string, rt oidc.ResponseType) bool {
	d := oidc.DiscoveryConfiguration{ResponseTypesSupported: supported}
	return d.SupportsResponseType(rt)
}

func contains[T comparable](list []T, needle T) bool {
	for _, v := range list {
		if v == needle {
			return true
		}
	}
	return false
}

// DefaultAuthRequestHandler writes the parsed request as JSON.
func DefaultAuthRequestHandler(w http.ResponseWriter, r *http.Request, authReq *oidc.AuthRequest) {
	httphelper.MarshalJSON(w, authReq)
}
