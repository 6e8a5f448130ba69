package oidc

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/exp/slog"
)

var registeredParameterNames = []string{
	"response_type",
	"response_mode",
	"client_id",
	"redirect_uri",
	"scope",
	"state",
	"code_challenge",
	"code_challenge_method",
	"nonce",
	"display",
	"prompt",
	"max_age",
	"ui_locales",
	"claims_locales",
	"id_token_hint",
	"login_hint",
	"acr_values",
	"claims",
	"request_uri",
	"request",
}

// RegisteredParameterNames returns the names of all parameters
// with a defined meaning in an authentication request.
// Any other parameter is a custom parameter.
func RegisteredParameterNames() []string {
	names := make([]string, len(registeredParameterNames))
	copy(names, registeredParameterNames)
	return names
}

func isRegisteredParameter(name string) bool {
	return containsString(registeredParameterNames, name)
}

var (
	ErrIllegalState = errors.New("illegal state")

	ErrNonceRequired       error = illegalStateError("Nonce is required in implicit / hybrid protocol flow")
	ErrRequestObjectAndURI error = illegalStateError("Either a request object or a request URI must be specified, but not both")

	ErrMissingRequired       = errors.New("missing required value")
	ErrScopeOpenIDMissing    = fmt.Errorf("the scope must include an %q value", ScopeOpenID)
	ErrEndpointQuery         = errors.New("the authorization endpoint must not have a query")
	ErrCustomParameterName   = errors.New("custom parameter uses a registered parameter name")
	ErrNegativeMaxAge        = errors.New("the max age must not be negative")
	ErrAuthRequestNoEndpoint = errors.New("the authorization endpoint is not set")
)

// illegalStateError is an [ErrIllegalState] without the message prefix.
type illegalStateError string

func (e illegalStateError) Error() string { return string(e) }

func (illegalStateError) Unwrap() error { return ErrIllegalState }

// AuthRequest is an OpenID Connect authentication request, according to:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
//
// An AuthRequest is immutable, it is created by [AuthRequestBuilder.Build]
// or by parsing. Getters return copies.
type AuthRequest struct {
	endpoint            *url.URL
	responseType        ResponseType
	responseMode        ResponseMode
	clientID            ClientID
	redirectURI         *url.URL
	scope               Scope
	state               State
	nonce               Nonce
	display             Display
	prompt              Prompt
	maxAge              int
	uiLocales           Locales
	claimsLocales       Locales
	idTokenHint         string
	loginHint           string
	acrValues           []string
	claims              string
	requestObject       string
	requestURI          *url.URL
	codeChallenge       string
	codeChallengeMethod CodeChallengeMethod
	custom              map[string]string
}

// AuthRequestBuilder holds all values of an AuthRequest.
// Endpoint, ResponseType, Scope, ClientID and RedirectURI are required,
// RedirectURI may be omitted when RequestURI is set.
type AuthRequestBuilder struct {
	Endpoint            *url.URL
	ResponseType        ResponseType
	ResponseMode        ResponseMode
	ClientID            ClientID
	RedirectURI         *url.URL
	Scope               Scope
	State               State
	Nonce               Nonce
	Display             Display
	Prompt              Prompt
	MaxAge              int
	UILocales           Locales
	ClaimsLocales       Locales
	IDTokenHint         string
	LoginHint           string
	ACRValues           []string
	Claims              *ClaimsRequest
	RequestObject       string
	RequestURI          *url.URL
	CodeChallenge       string
	CodeChallengeMethod CodeChallengeMethod
	CustomParameters    map[string]string
}

// Build validates the values and returns the AuthRequest.
// Empty and duplicate response type and scope values are dropped first.
// The invariants are checked in order:
// required values, the openid scope, request object and request URI exclusion
// and the nonce for the implicit and hybrid flows.
// The endpoint must not carry a query, as its parameters could not be
// told apart from the request parameters.
func (b AuthRequestBuilder) Build() (*AuthRequest, error) {
	responseType := NewResponseType(b.ResponseType...)
	var scope Scope
	for _, v := range b.Scope {
		scope = scope.Add(v)
	}
	switch {
	case len(responseType) == 0:
		return nil, fmt.Errorf("%w: response type", ErrMissingRequired)
	case b.ClientID == "":
		return nil, fmt.Errorf("%w: client ID", ErrMissingRequired)
	case len(scope) == 0:
		return nil, fmt.Errorf("%w: scope", ErrMissingRequired)
	case b.RedirectURI == nil && b.RequestURI == nil:
		return nil, fmt.Errorf("%w: redirect URI", ErrMissingRequired)
	}
	if !scope.Contains(ScopeOpenID) {
		return nil, ErrScopeOpenIDMissing
	}
	if b.RequestObject != "" && b.RequestURI != nil {
		return nil, ErrRequestObjectAndURI
	}
	if responseType.ImpliesImplicitFlow() && b.Nonce == "" {
		return nil, ErrNonceRequired
	}
	if b.MaxAge < 0 {
		return nil, ErrNegativeMaxAge
	}
	if b.Endpoint != nil && (b.Endpoint.RawQuery != "" || b.Endpoint.ForceQuery) {
		return nil, ErrEndpointQuery
	}
	for name := range b.CustomParameters {
		if isRegisteredParameter(name) {
			return nil, fmt.Errorf("%w: %s", ErrCustomParameterName, name)
		}
	}

	a := &AuthRequest{
		endpoint:            cloneURL(b.Endpoint),
		responseType:        responseType,
		responseMode:        b.ResponseMode,
		clientID:            b.ClientID,
		redirectURI:         cloneURL(b.RedirectURI),
		scope:               scope,
		state:               b.State,
		nonce:               b.Nonce,
		display:             b.Display,
		prompt:              cloneSlice(b.Prompt),
		maxAge:              b.MaxAge,
		uiLocales:           cloneSlice(b.UILocales),
		claimsLocales:       cloneSlice(b.ClaimsLocales),
		idTokenHint:         b.IDTokenHint,
		loginHint:           b.LoginHint,
		acrValues:           cloneSlice(b.ACRValues),
		requestObject:       b.RequestObject,
		requestURI:          cloneURL(b.RequestURI),
		codeChallenge:       b.CodeChallenge,
		codeChallengeMethod: b.CodeChallengeMethod,
		custom:              cloneMap(b.CustomParameters),
	}
	if b.Claims != nil {
		a.claims = b.Claims.String()
	}
	return a, nil
}

// Builder returns a builder holding copies of all values,
// which can be used to derive a modified request.
func (a *AuthRequest) Builder() AuthRequestBuilder {
	return AuthRequestBuilder{
		Endpoint:            a.Endpoint(),
		ResponseType:        a.ResponseType(),
		ResponseMode:        a.responseMode,
		ClientID:            a.clientID,
		RedirectURI:         a.RedirectURI(),
		Scope:               a.Scope(),
		State:               a.state,
		Nonce:               a.nonce,
		Display:             a.display,
		Prompt:              a.Prompt(),
		MaxAge:              a.maxAge,
		UILocales:           a.UILocales(),
		ClaimsLocales:       a.ClaimsLocales(),
		IDTokenHint:         a.idTokenHint,
		LoginHint:           a.loginHint,
		ACRValues:           a.ACRValues(),
		Claims:              a.Claims(),
		RequestObject:       a.requestObject,
		RequestURI:          a.RequestURI(),
		CodeChallenge:       a.codeChallenge,
		CodeChallengeMethod: a.codeChallengeMethod,
		CustomParameters:    a.CustomParameters(),
	}
}

func (a *AuthRequest) Endpoint() *url.URL { return cloneURL(a.endpoint) }
func (a *AuthRequest) ResponseType() ResponseType { return cloneSlice(a.responseType) }
func (a *AuthRequest) ResponseMode() ResponseMode { return a.responseMode }
func (a *AuthRequest) ClientID() ClientID { return a.clientID }
func (a *AuthRequest) RedirectURI() *url.URL { return cloneURL(a.redirectURI) }
func (a *AuthRequest) Scope() Scope { return cloneSlice(a.scope) }
func (a *AuthRequest) State() State { return a.state }
func (a *AuthRequest) Nonce() Nonce { return a.nonce }
func (a *AuthRequest) Display() Display { return a.display }
func (a *AuthRequest) Prompt() Prompt { return cloneSlice(a.prompt) }
func (a *AuthRequest) MaxAge() int { return a.maxAge }
func (a *AuthRequest) UILocales() Locales { return cloneSlice(a.uiLocales) }
func (a *AuthRequest) ClaimsLocales() Locales { return cloneSlice(a.claimsLocales) }
func (a *AuthRequest) IDTokenHint() string { return a.idTokenHint }
func (a *AuthRequest) LoginHint() string { return a.loginHint }
func (a *AuthRequest) ACRValues() []string { return cloneSlice(a.acrValues) }
func (a *AuthRequest) RequestObject() string { return a.requestObject }
func (a *AuthRequest) RequestURI() *url.URL { return cloneURL(a.requestURI) }
func (a *AuthRequest) CodeChallenge() string { return a.codeChallenge }
func (a *AuthRequest) CodeChallengeMethod() CodeChallengeMethod { return a.codeChallengeMethod }

// Claims returns the claims request, or nil when none was requested.
func (a *AuthRequest) Claims() *ClaimsRequest {
	if a.claims == "" {
		return nil
	}
	claims, err := ParseClaimsRequest(a.claims)
	if err != nil {
		return nil
	}
	return claims
}

// Custom returns the value of a custom parameter.
func (a *AuthRequest) Custom(name string) (string, bool) {
	value, ok := a.custom[name]
	return value, ok
}

func (a *AuthRequest) CustomParameters() map[string]string {
	return cloneMap(a.custom)
}

// ImpliedResponseMode returns the response mode used to deliver
// the authorization response.
func (a *AuthRequest) ImpliedResponseMode() ResponseMode {
	return ImpliedResponseMode(a.responseMode, a.responseType)
}

// CodeChallengeParams returns the PKCE challenge of the request, or nil.
func (a *AuthRequest) CodeChallengeParams() *CodeChallenge {
	if a.codeChallenge == "" {
		return nil
	}
	method := a.codeChallengeMethod
	if method == "" {
		method = CodeChallengeMethodPlain
	}
	return &CodeChallenge{
		Challenge: a.codeChallenge,
		Method:    method,
	}
}

// LogValue allows you to define which fields will be logged.
// Implements the [slog.LogValuer]
func (a *AuthRequest) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Any("scopes", a.scope.Values()),
		slog.String("response_type", a.responseType.String()),
		slog.String("client_id", string(a.clientID)),
	}
	if a.redirectURI != nil {
		attrs = append(attrs, slog.String("redirect_uri", a.redirectURI.String()))
	}
	if a.responseMode != "" {
		attrs = append(attrs, slog.String("response_mode", string(a.responseMode)))
	}
	return slog.GroupValue(attrs...)
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// cloneSlice returns a copy, empty slices result in nil.
func cloneSlice[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	c := make(S, len(s))
	copy(c, s)
	return c
}

// cloneMap returns a copy, empty maps result in nil.
func cloneMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
