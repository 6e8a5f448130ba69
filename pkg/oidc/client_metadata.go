package oidc

import (
	"encoding/json"
	"fmt"
	"strings"

	jose "github.com/go-jose/go-jose/v3"
)

// AuthMethod is the client authentication method at the token endpoint.
// Values other than the defined ones are kept as extension methods.
type AuthMethod string

const (
	AuthMethodBasic         AuthMethod = "client_secret_basic"
	AuthMethodPost          AuthMethod = "client_secret_post"
	AuthMethodSecretJWT     AuthMethod = "client_secret_jwt"
	AuthMethodPrivateKeyJWT AuthMethod = "private_key_jwt"
	AuthMethodNone          AuthMethod = "none"
)

var AllAuthMethods = []AuthMethod{
	AuthMethodBasic,
	AuthMethodPost,
	AuthMethodSecretJWT,
	AuthMethodPrivateKeyJWT,
	AuthMethodNone,
}

func (a AuthMethod) Known() bool {
	for _, m := range AllAuthMethods {
		if a == m {
			return true
		}
	}
	return false
}

func (a *AuthMethod) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return fmt.Errorf("%w: the token endpoint auth method must not be empty", ErrInvalidValue)
	}
	*a = AuthMethod(s)
	return nil
}

// SubjectType is the subject identifier type requested by a client.
type SubjectType string

const (
	SubjectTypePublic   SubjectType = "public"
	SubjectTypePairwise SubjectType = "pairwise"
)

func ParseSubjectType(s string) (SubjectType, error) {
	switch st := SubjectType(s); st {
	case SubjectTypePublic, SubjectTypePairwise:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown subject type %q", ErrInvalidValue, s)
	}
}

func (st *SubjectType) UnmarshalText(text []byte) (err error) {
	*st, err = ParseSubjectType(string(text))
	return err
}

type ApplicationType string

const (
	ApplicationTypeWeb    ApplicationType = "web"
	ApplicationTypeNative ApplicationType = "native"
)

func ParseApplicationType(s string) (ApplicationType, error) {
	switch at := ApplicationType(s); at {
	case ApplicationTypeWeb, ApplicationTypeNative:
		return at, nil
	default:
		return "", fmt.Errorf("%w: unknown application type %q", ErrInvalidValue, s)
	}
}

func (at *ApplicationType) UnmarshalText(text []byte) (err error) {
	*at, err = ParseApplicationType(string(text))
	return err
}

// ClientMetadata is the registered metadata of an OpenID Connect client, as defined in
// https://openid.net/specs/openid-connect-registration-1_0.html#ClientMetadata
// and https://www.rfc-editor.org/rfc/rfc7591#section-2.
//
// Parsing is done in two passes: the known fields are decoded into the
// typed fields, the remaining members are kept in Extensions.
// On marshal the known fields take precedence over Extensions with the same name.
type ClientMetadata struct {
	RedirectURIs            []string            `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod AuthMethod          `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []GrantType         `json:"grant_types,omitempty"`
	ResponseTypes           []string            `json:"response_types,omitempty"`
	ClientName              string              `json:"client_name,omitempty"`
	ClientURI               string              `json:"client_uri,omitempty"`
	LogoURI                 string              `json:"logo_uri,omitempty"`
	Scope                   string              `json:"scope,omitempty"`
	Contacts                []string            `json:"contacts,omitempty"`
	TOSURI                  string              `json:"tos_uri,omitempty"`
	PolicyURI               string              `json:"policy_uri,omitempty"`
	JWKSURI                 string              `json:"jwks_uri,omitempty"`
	JWKS                    *jose.JSONWebKeySet `json:"jwks,omitempty"`
	SoftwareID              string              `json:"software_id,omitempty"`
	SoftwareVersion         string              `json:"software_version,omitempty"`

	ApplicationType              ApplicationType         `json:"application_type,omitempty"`
	SectorIdentifierURI          string                  `json:"sector_identifier_uri,omitempty"`
	SubjectType                  SubjectType             `json:"subject_type,omitempty"`
	IDTokenSignedResponseAlg     jose.SignatureAlgorithm `json:"id_token_signed_response_alg,omitempty"`
	IDTokenEncryptedResponseAlg  jose.KeyAlgorithm       `json:"id_token_encrypted_response_alg,omitempty"`
	IDTokenEncryptedResponseEnc  jose.ContentEncryption  `json:"id_token_encrypted_response_enc,omitempty"`
	UserinfoSignedResponseAlg    jose.SignatureAlgorithm `json:"userinfo_signed_response_alg,omitempty"`
	UserinfoEncryptedResponseAlg jose.KeyAlgorithm       `json:"userinfo_encrypted_response_alg,omitempty"`
	UserinfoEncryptedResponseEnc jose.ContentEncryption  `json:"userinfo_encrypted_response_enc,omitempty"`
	RequestObjectSigningAlg      jose.SignatureAlgorithm `json:"request_object_signing_alg,omitempty"`
	TokenEndpointAuthSigningAlg  jose.SignatureAlgorithm `json:"token_endpoint_auth_signing_alg,omitempty"`
	DefaultMaxAge                int                     `json:"default_max_age,omitempty"`
	RequireAuthTime              bool                    `json:"require_auth_time,omitempty"`
	DefaultACRValues             []string                `json:"default_acr_values,omitempty"`
	InitiateLoginURI             string                  `json:"initiate_login_uri,omitempty"`
	RequestURIs                  []string                `json:"request_uris,omitempty"`
	PostLogoutRedirectURIs       []string                `json:"post_logout_redirect_uris,omitempty"`

	// Extensions holds all members which are not a known field.
	Extensions map[string]any `json:"-"`
}

var clientMetadataNames = []string{
	"redirect_uris",
	"token_endpoint_auth_method",
	"grant_types",
	"response_types",
	"client_name",
	"client_uri",
	"logo_uri",
	"scope",
	"contacts",
	"tos_uri",
	"policy_uri",
	"jwks_uri",
	"jwks",
	"software_id",
	"software_version",
	"application_type",
	"sector_identifier_uri",
	"subject_type",
	"id_token_signed_response_alg",
	"id_token_encrypted_response_alg",
	"id_token_encrypted_response_enc",
	"userinfo_signed_response_alg",
	"userinfo_encrypted_response_alg",
	"userinfo_encrypted_response_enc",
	"request_object_signing_alg",
	"token_endpoint_auth_signing_alg",
	"default_max_age",
	"require_auth_time",
	"default_acr_values",
	"initiate_login_uri",
	"request_uris",
	"post_logout_redirect_uris",
}

// ClientMetadataNames returns the names of the known client metadata fields.
func ClientMetadataNames() []string {
	names := make([]string, len(clientMetadataNames))
	copy(names, clientMetadataNames)
	return names
}

type clientMetadataAlias ClientMetadata

func (c *ClientMetadata) MarshalJSON() ([]byte, error) {
	return mergeAndMarshalClaims((*clientMetadataAlias)(c), c.Extensions)
}

func (c *ClientMetadata) UnmarshalJSON(data []byte) error {
	var all map[string]any
	if err := unmarshalJSONMulti(data, (*clientMetadataAlias)(c), &all); err != nil {
		return err
	}
	if c.DefaultMaxAge < 0 {
		return fmt.Errorf("%w: the default max age must not be negative", ErrInvalidValue)
	}
	c.Extensions = nil
	for name, value := range all {
		if containsString(clientMetadataNames, name) {
			continue
		}
		if c.Extensions == nil {
			c.Extensions = make(map[string]any)
		}
		c.Extensions[name] = value
	}
	return nil
}

// ParseClientMetadata parses client metadata from a JSON object.
func ParseClientMetadata(data []byte) (*ClientMetadata, error) {
	c := new(ClientMetadata)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: client metadata: %w", ErrParse, err)
	}
	return c, nil
}

// ApplyDefaults sets the default of every unset field which has one.
func (c *ClientMetadata) ApplyDefaults() {
	if c.TokenEndpointAuthMethod == "" {
		c.TokenEndpointAuthMethod = AuthMethodBasic
	}
	if len(c.GrantTypes) == 0 {
		c.GrantTypes = []GrantType{GrantTypeCode}
	}
	if len(c.ResponseTypes) == 0 {
		c.ResponseTypes = []string{string(ResponseTypeCode)}
	}
	if c.ApplicationType == "" {
		c.ApplicationType = ApplicationTypeWeb
	}
	if c.IDTokenSignedResponseAlg == "" {
		c.IDTokenSignedResponseAlg = jose.RS256
	}
}

// SupportsRedirectURI reports if the redirect URI is registered,
// by exact string comparison.
func (c *ClientMetadata) SupportsRedirectURI(uri string) bool {
	return containsString(c.RedirectURIs, uri)
}
