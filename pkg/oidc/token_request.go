package oidc

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// GrantTypeCode defines the grant_type `authorization_code` used for the Token Request in the Authorization Code Flow
	GrantTypeCode GrantType = "authorization_code"

	// GrantTypeImplicit defines the grant_type `implicit`, it is never sent to the token endpoint
	GrantTypeImplicit GrantType = "implicit"

	// GrantTypeRefreshToken defines the grant_type `refresh_token` used for the Token Request in the Refresh Token Flow
	GrantTypeRefreshToken GrantType = "refresh_token"

	// GrantTypePassword defines the grant_type `password` of the Resource Owner Password Credentials Grant
	GrantTypePassword GrantType = "password"

	// GrantTypeClientCredentials defines the grant_type `client_credentials` used for the Token Request in the Client Credentials Token Flow
	GrantTypeClientCredentials GrantType = "client_credentials"

	// GrantTypeSAML2Bearer defines the grant_type `urn:ietf:params:oauth:grant-type:saml2-bearer` used for the SAML 2.0 Bearer Assertion Grant
	GrantTypeSAML2Bearer GrantType = "urn:ietf:params:oauth:grant-type:saml2-bearer"

	// GrantTypeBearer defines the grant_type `urn:ietf:params:oauth:grant-type:jwt-bearer` used for the JWT Authorization Grant
	GrantTypeBearer GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// GrantTypeTokenExchange defines the grant_type `urn:ietf:params:oauth:grant-type:token-exchange` used for the OAuth Token Exchange Grant
	GrantTypeTokenExchange GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"

	// GrantTypeDeviceCode defines the grant_type `urn:ietf:params:oauth:grant-type:device_code` used for the Device Authorization Grant
	GrantTypeDeviceCode GrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// GrantType identifies the flow a token request belongs to.
// Extension grants are represented by their own value.
type GrantType string

var AllGrantTypes = []GrantType{
	GrantTypeCode, GrantTypeImplicit, GrantTypeRefreshToken,
	GrantTypePassword, GrantTypeClientCredentials, GrantTypeSAML2Bearer,
	GrantTypeBearer, GrantTypeTokenExchange, GrantTypeDeviceCode,
}

// ParseGrantType returns the grant type for the passed value.
// Besides the registered grant types, the passed extension grant types are accepted.
//
// An empty value results in an invalid_request error,
// an unknown value in an unsupported_grant_type error.
func ParseGrantType(s string, extensions ...GrantType) (GrantType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidRequest().AppendDescription(`Missing "grant_type" parameter`)
	}
	gt := GrantType(s)
	if gt.Known() {
		return gt, nil
	}
	for _, ext := range extensions {
		if gt == ext {
			return gt, nil
		}
	}
	return "", ErrUnsupportedGrantType().AppendDescription("%s", s)
}

// Known reports if the grant type is one of the registered grant types.
func (gt GrantType) Known() bool {
	for _, known := range AllGrantTypes {
		if gt == known {
			return true
		}
	}
	return false
}

// RequiresClientAuthentication reports if a client must authenticate
// at the token endpoint for this grant type.
func (gt GrantType) RequiresClientAuthentication() bool {
	return gt == GrantTypeClientCredentials
}

// RequiresClientID reports if the client_id must be sent
// with this grant type when the client is not authenticated.
func (gt GrantType) RequiresClientID() bool {
	switch gt {
	case GrantTypeCode, GrantTypeImplicit, GrantTypeClientCredentials, GrantTypeDeviceCode:
		return true
	default:
		return false
	}
}

func (gt GrantType) String() string {
	return string(gt)
}

// Grant is the grant specific part of a token request.
type Grant interface {
	GrantType() GrantType
	// Parameters returns the form parameters of the grant, including the grant_type.
	Parameters() (url.Values, error)
}

type AuthorizationCodeGrant struct {
	Code         string `schema:"code"`
	RedirectURI  string `schema:"redirect_uri,omitempty"`
	CodeVerifier string `schema:"code_verifier,omitempty"`
}

func (*AuthorizationCodeGrant) GrantType() GrantType { return GrantTypeCode }

func (g *AuthorizationCodeGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

type RefreshTokenGrant struct {
	RefreshToken string `schema:"refresh_token"`
	Scopes       Scope  `schema:"-"`
}

func (*RefreshTokenGrant) GrantType() GrantType { return GrantTypeRefreshToken }

func (g *RefreshTokenGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

type PasswordGrant struct {
	Username string `schema:"username"`
	Password string `schema:"password"`
	Scopes   Scope  `schema:"-"`
}

func (*PasswordGrant) GrantType() GrantType { return GrantTypePassword }

func (g *PasswordGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

type ClientCredentialsGrant struct {
	Scopes Scope `schema:"-"`
}

func (*ClientCredentialsGrant) GrantType() GrantType { return GrantTypeClientCredentials }

func (g *ClientCredentialsGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

// SAML2BearerGrant carries a base64url encoded SAML 2.0 assertion.
type SAML2BearerGrant struct {
	Assertion string `schema:"assertion"`
	Scopes    Scope  `schema:"-"`
}

func (*SAML2BearerGrant) GrantType() GrantType { return GrantTypeSAML2Bearer }

func (g *SAML2BearerGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

// JWTBearerGrant carries a signed JWT assertion (RFC 7523).
type JWTBearerGrant struct {
	Assertion string `schema:"assertion"`
	Scopes    Scope  `schema:"-"`
}

func (*JWTBearerGrant) GrantType() GrantType { return GrantTypeBearer }

func (g *JWTBearerGrant) Parameters() (url.Values, error) {
	return grantParameters(g)
}

// scopedGrant is implemented by grants which carry a scope parameter.
// The scope is encoded space delimited, outside of the schema codec.
type scopedGrant interface {
	scope() *Scope
}

func (g *RefreshTokenGrant) scope() *Scope      { return &g.Scopes }
func (g *PasswordGrant) scope() *Scope          { return &g.Scopes }
func (g *ClientCredentialsGrant) scope() *Scope { return &g.Scopes }
func (g *SAML2BearerGrant) scope() *Scope       { return &g.Scopes }
func (g *JWTBearerGrant) scope() *Scope         { return &g.Scopes }

func grantParameters(g Grant) (url.Values, error) {
	values, err := encodeForm(g)
	if err != nil {
		return nil, fmt.Errorf("oidc: encode %s grant: %w", g.GrantType(), err)
	}
	values.Set("grant_type", g.GrantType().String())
	if sg, ok := g.(scopedGrant); ok {
		if scope := *sg.scope(); len(scope) > 0 {
			values.Set("scope", scope.String())
		}
	}
	return values, nil
}

// ParseGrant parses the grant part of token request parameters.
// The required parameters of each grant type are checked,
// a missing one results in an invalid_request error.
func ParseGrant(values url.Values) (Grant, error) {
	gt, err := ParseGrantType(values.Get("grant_type"))
	if err != nil {
		return nil, err
	}
	var (
		grant    Grant
		required []string
	)
	switch gt {
	case GrantTypeCode:
		grant, required = new(AuthorizationCodeGrant), []string{"code"}
	case GrantTypeRefreshToken:
		grant, required = new(RefreshTokenGrant), []string{"refresh_token"}
	case GrantTypePassword:
		grant, required = new(PasswordGrant), []string{"username", "password"}
	case GrantTypeClientCredentials:
		grant = new(ClientCredentialsGrant)
	case GrantTypeSAML2Bearer:
		grant, required = new(SAML2BearerGrant), []string{"assertion"}
	case GrantTypeBearer:
		grant, required = new(JWTBearerGrant), []string{"assertion"}
	default:
		return nil, ErrUnsupportedGrantType().AppendDescription("%s", gt)
	}
	for _, name := range required {
		if values.Get(name) == "" {
			return nil, ErrInvalidRequest().AppendDescription("Missing %q parameter", name)
		}
	}
	if err = decodeForm(grant, values); err != nil {
		return nil, ErrInvalidRequest().WithParent(err)
	}
	if sg, ok := grant.(scopedGrant); ok {
		*sg.scope() = ParseScope(values.Get("scope"))
	}
	return grant, nil
}
