package oidc

import (
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"golang.org/x/oauth2"

	"github.com/zitadel/oidc-core/pkg/crypto"
)

const (
	// BearerToken defines the token_type `Bearer`, which is returned in a successful token response
	BearerToken = "Bearer"

	// DefaultMaxClockSkew is the tolerated difference between the clocks of
	// the issuer and the verifier when checking exp and iat.
	DefaultMaxClockSkew = 60 * time.Second
)

type Claims interface {
	GetIssuer() string
	GetSubject() string
	GetAudience() []string
	GetExpiration() time.Time
	GetIssuedAt() time.Time
	GetNonce() string
	GetAuthenticationContextClassReference() string
	GetAuthTime() time.Time
	GetAuthorizedParty() string
	SetSignatureAlgorithm(algorithm jose.SignatureAlgorithm)
}

type IDClaims interface {
	Claims
	GetSignatureAlgorithm() jose.SignatureAlgorithm
	GetAccessTokenHash() string
	GetCodeHash() string
}

// IDTokenClaims is the claims set of a verified ID token.
// Claims without a dedicated field are kept in Claims.
type IDTokenClaims struct {
	Issuer                              string   `json:"iss,omitempty"`
	Subject                             string   `json:"sub,omitempty"`
	Audience                            Audience `json:"aud,omitempty"`
	Expiration                          Time     `json:"exp,omitempty"`
	IssuedAt                            Time     `json:"iat,omitempty"`
	AuthTime                            Time     `json:"auth_time,omitempty"`
	Nonce                               string   `json:"nonce,omitempty"`
	AuthenticationContextClassReference string   `json:"acr,omitempty"`
	AuthenticationMethodsReferences     []string `json:"amr,omitempty"`
	AuthorizedParty                     string   `json:"azp,omitempty"`
	AccessTokenHash                     string   `json:"at_hash,omitempty"`
	CodeHash                            string   `json:"c_hash,omitempty"`

	Claims       map[string]any          `json:"-"`
	SignatureAlg jose.SignatureAlgorithm `json:"-"`
}

func NewIDTokenClaims(issuer, subject string, audience []string, expiration, authTime time.Time, nonce, acr string, amr []string, clientID string) *IDTokenClaims {
	return &IDTokenClaims{
		Issuer:                              issuer,
		Subject:                             subject,
		Audience:                            audience,
		Expiration:                          FromTime(expiration),
		IssuedAt:                            FromTime(time.Now()),
		AuthTime:                            FromTime(authTime),
		Nonce:                               nonce,
		AuthenticationContextClassReference: acr,
		AuthenticationMethodsReferences:     amr,
		AuthorizedParty:                     clientID,
	}
}

func (c *IDTokenClaims) GetIssuer() string { return c.Issuer }
func (c *IDTokenClaims) GetSubject() string { return c.Subject }
func (c *IDTokenClaims) GetAudience() []string { return c.Audience }
func (c *IDTokenClaims) GetExpiration() time.Time { return c.Expiration.AsTime() }
func (c *IDTokenClaims) GetIssuedAt() time.Time { return c.IssuedAt.AsTime() }
func (c *IDTokenClaims) GetNonce() string { return c.Nonce }
func (c *IDTokenClaims) GetAuthTime() time.Time { return c.AuthTime.AsTime() }
func (c *IDTokenClaims) GetAuthorizedParty() string { return c.AuthorizedParty }
func (c *IDTokenClaims) GetAccessTokenHash() string { return c.AccessTokenHash }
func (c *IDTokenClaims) GetCodeHash() string { return c.CodeHash }
func (c *IDTokenClaims) GetAuthenticationContextClassReference() string {
	return c.AuthenticationContextClassReference
}

func (c *IDTokenClaims) GetSignatureAlgorithm() jose.SignatureAlgorithm {
	return c.SignatureAlg
}

func (c *IDTokenClaims) SetSignatureAlgorithm(algorithm jose.SignatureAlgorithm) {
	c.SignatureAlg = algorithm
}

type itcAlias IDTokenClaims

func (c *IDTokenClaims) MarshalJSON() ([]byte, error) {
	return mergeAndMarshalClaims((*itcAlias)(c), c.Claims)
}

func (c *IDTokenClaims) UnmarshalJSON(data []byte) error {
	return unmarshalJSONMulti(data, (*itcAlias)(c), &c.Claims)
}

// AccessTokenResponse is the successful response of the token endpoint.
type AccessTokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    uint64 `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Tokens is the result of a code exchange,
// with the verified claims of the ID token.
type Tokens[C IDClaims] struct {
	*oauth2.Token
	IDTokenClaims C
	IDToken       string
}

// ClaimHash returns the hash for the at_hash or c_hash claim,
// using the hash function of the signature algorithm.
func ClaimHash(claim string, sigAlgorithm jose.SignatureAlgorithm) (string, error) {
	hash, err := crypto.GetHashAlgorithm(sigAlgorithm)
	if err != nil {
		return "", err
	}

	return crypto.HashString(hash, claim, true), nil
}
