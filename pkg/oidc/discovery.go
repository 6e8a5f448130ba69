package oidc

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
)

const (
	DiscoveryEndpoint = "/.well-known/openid-configuration"
)

var ErrDiscoveryFailed = errors.New("OpenID Provider Configuration Discovery has failed")

// DiscoveryConfiguration is the provider metadata, limited to the
// values needed for authentication requests and ID token verification.
type DiscoveryConfiguration struct {
	// Issuer is the identifier of the OP and is used in the tokens as `iss` claim.
	Issuer string `json:"issuer,omitempty"`

	// AuthorizationEndpoint is the URL of the OAuth 2.0 Authorization Endpoint where all user interactive login start
	AuthorizationEndpoint string `json:"authorization_endpoint,omitempty"`

	// TokenEndpoint is the URL of the OAuth 2.0 Token Endpoint where all tokens are issued, except when using Implicit Flow
	TokenEndpoint string `json:"token_endpoint,omitempty"`

	// UserinfoEndpoint is the URL where an access_token can be used to retrieve the Userinfo.
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set. This site contains the signing keys that RPs can use to validate the signature.
	JwksURI string `json:"jwks_uri,omitempty"`

	ScopesSupported        []string       `json:"scopes_supported,omitempty"`
	ResponseTypesSupported []string       `json:"response_types_supported,omitempty"`
	ResponseModesSupported []ResponseMode `json:"response_modes_supported,omitempty"`
	GrantTypesSupported    []GrantType    `json:"grant_types_supported,omitempty"`
	ACRValuesSupported     []string       `json:"acr_values_supported,omitempty"`
	SubjectTypesSupported  []string       `json:"subject_types_supported,omitempty"`

	IDTokenSigningAlgValuesSupported    []string `json:"id_token_signing_alg_values_supported,omitempty"`
	IDTokenEncryptionAlgValuesSupported []string `json:"id_token_encryption_alg_values_supported,omitempty"`
	IDTokenEncryptionEncValuesSupported []string `json:"id_token_encryption_enc_values_supported,omitempty"`

	DisplayValuesSupported        []Display             `json:"display_values_supported,omitempty"`
	ClaimsSupported               []string              `json:"claims_supported,omitempty"`
	ClaimsParameterSupported      bool                  `json:"claims_parameter_supported,omitempty"`
	CodeChallengeMethodsSupported []CodeChallengeMethod `json:"code_challenge_methods_supported,omitempty"`
	ClaimsLocalesSupported        []language.Tag        `json:"claims_locales_supported,omitempty"`
	UILocalesSupported            []language.Tag        `json:"ui_locales_supported,omitempty"`

	// RequestParameterSupported specifies whether the OP supports use of the `request` parameter. If omitted, the default value is false.
	RequestParameterSupported bool `json:"request_parameter_supported,omitempty"`

	// RequestURIParameterSupported specifies whether the OP supports use of the `request_uri` parameter. If omitted, the default value is true. (therefore no omitempty)
	RequestURIParameterSupported bool `json:"request_uri_parameter_supported"`
}

// WellKnownURL returns the discovery URL of the issuer.
func WellKnownURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + DiscoveryEndpoint
}

// SupportsResponseType reports if the provider announced the response type.
// An empty list announces nothing and supports nothing.
func (c *DiscoveryConfiguration) SupportsResponseType(rt ResponseType) bool {
	for _, s := range c.ResponseTypesSupported {
		supported, err := ParseResponseType(s)
		if err == nil && supported.Equal(rt) {
			return true
		}
	}
	return false
}
