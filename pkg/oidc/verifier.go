package oidc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v3"
)

var (
	ErrParse                   = errors.New("parsing of request failed")
	ErrIssuerInvalid           = errors.New("issuer does not match")
	ErrSubjectMissing          = errors.New("subject missing")
	ErrAudience                = errors.New("audience is not valid")
	ErrAzpInvalid              = errors.New("authorized party is not valid")
	ErrSignatureMissing        = errors.New("id_token does not contain a signature")
	ErrSignatureMultiple       = errors.New("id_token contains multiple signatures")
	ErrSignatureUnsupportedAlg = errors.New("signature algorithm not supported")
	ErrSignatureInvalidPayload = errors.New("signature does not match Payload")
	ErrSignatureInvalid        = errors.New("Signed JWT rejected: Invalid signature")
	ErrDecryptionFailed        = errors.New("Encrypted JWT rejected")
	ErrExpired                 = errors.New("Expired JWT")
	ErrIatInFuture             = errors.New("issuedAt of token is in the future")
	ErrIatToOld                = errors.New("issuedAt of token is to old")
	ErrNonceInvalid            = errors.New("nonce does not match")
	ErrAcrInvalid              = errors.New("acr is invalid")
	ErrAuthTimeNotPresent      = errors.New("claim `auth_time` of token is missing")
	ErrAuthTimeToOld           = errors.New("auth time of token is to old")
	ErrAtHash                  = errors.New("at_hash does not correspond to access token")
	ErrCHash                   = errors.New("c_hash does not correspond to code")
	ErrUnsecuredToken          = errors.New("unsecured token rejected")
	ErrNestingTooDeep          = errors.New("nested token contains another nested token")
	ErrEncryptionRequired      = errors.New("Unencrypted JWT rejected: encryption is required")

	// ErrKeySetMissing is a configuration error:
	// a signed token was received, but no KeySet is configured.
	ErrKeySetMissing = errors.New("no key set configured for signed token")
	// ErrDecryptionKeySetMissing is a configuration error:
	// an encrypted token was received, but no DecryptionKeySet is configured.
	ErrDecryptionKeySetMissing = errors.New("no decryption key set configured for encrypted token")
)

// ACRVerifier specifies the function to be used by the `DefaultVerifier` for validating the acr claim
type ACRVerifier func(string) error

// DefaultACRVerifier implements `ACRVerifier` returning an error
// if none of the provided values matches the acr claim
func DefaultACRVerifier(possibleValues []string) ACRVerifier {
	return func(acr string) error {
		if !containsString(possibleValues, acr) {
			return fmt.Errorf("expected one of: %v, got: %q", possibleValues, acr)
		}
		return nil
	}
}

// Verifier holds the expectations an ID token is checked against.
//
// A token without any signature or encryption is accepted only if neither
// KeySet nor DecryptionKeySet is set. Such a configuration has no trust path
// and is meant for local testing.
//
// Once a DecryptionKeySet is set, encryption is required:
// a token which is only signed, or plain, is rejected with [ErrEncryptionRequired].
// An encrypted token must additionally be signed (nested) if a KeySet is set.
type Verifier struct {
	Issuer            string
	ClientID          string
	KeySet            KeySet
	DecryptionKeySet  DecryptionKeySet
	SupportedSignAlgs []string
	MaxClockSkew      time.Duration
	MaxAgeIAT         time.Duration
	MaxAge            time.Duration
	Nonce             func(ctx context.Context) string
	ACR               ACRVerifier
}

// RequiresEncryption reports if only encrypted tokens are accepted.
func (v *Verifier) RequiresEncryption() bool {
	return v.DecryptionKeySet != nil
}

// AllowsUnsecured reports if plain tokens are accepted.
func (v *Verifier) AllowsUnsecured() bool {
	return v.KeySet == nil && v.DecryptionKeySet == nil
}

// DecryptToken decrypts an encrypted token.
// If the payload is a JWT itself (cty JWT), the inner token is returned
// and the plaintext is nil. Otherwise the plaintext holds the claims.
// Tokens which are not encrypted are returned as is.
func DecryptToken(ctx context.Context, token string, keySet DecryptionKeySet) (inner string, plaintext []byte, err error) {
	kind, header, err := ParseJOSEHeader(token)
	if err != nil {
		return "", nil, err
	}
	if kind != JWTEncrypted {
		return token, nil, nil
	}
	if keySet == nil {
		return "", nil, ErrDecryptionKeySetMissing
	}
	jwe, err := jose.ParseEncrypted(token)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	plaintext, err = keySet.DecryptToken(ctx, jwe)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	if !header.IsNestedJWT() {
		return "", plaintext, nil
	}
	inner = strings.TrimSpace(string(plaintext))
	innerKind, _, err := ParseJOSEHeader(inner)
	if err != nil {
		return "", nil, err
	}
	if innerKind == JWTEncrypted {
		return "", nil, ErrNestingTooDeep
	}
	return inner, nil, nil
}

func CheckSubject(claims Claims) error {
	if claims.GetSubject() == "" {
		return ErrSubjectMissing
	}
	return nil
}

func CheckIssuer(claims Claims, issuer string) error {
	if claims.GetIssuer() != issuer {
		return fmt.Errorf("%w: Expected: %s, got: %s", ErrIssuerInvalid, issuer, claims.GetIssuer())
	}
	return nil
}

func CheckAudience(claims Claims, clientID string) error {
	if !containsString(claims.GetAudience(), clientID) {
		return fmt.Errorf("%w: Audience must contain client_id %q", ErrAudience, clientID)
	}
	return nil
}

// CheckAuthorizedParty checks an azp claim, if present,
// to be equal to the client id.
func CheckAuthorizedParty(claims Claims, clientID string) error {
	azp := claims.GetAuthorizedParty()
	if azp != "" && azp != clientID {
		return fmt.Errorf("%w: azp %q must be equal to client_id %q", ErrAzpInvalid, azp, clientID)
	}
	return nil
}

// CheckSignature verifies the signature of a signed token and compares
// the signed payload with the already parsed payload.
// If no algorithms are passed, RS256 is expected.
func CheckSignature(ctx context.Context, token string, payload []byte, claims Claims, supportedSigAlgs []string, set KeySet) error {
	if set == nil {
		return ErrKeySetMissing
	}
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(jws.Signatures) == 0 {
		return ErrSignatureMissing
	}
	if len(jws.Signatures) > 1 {
		return ErrSignatureMultiple
	}
	sig := jws.Signatures[0]
	if len(supportedSigAlgs) == 0 {
		supportedSigAlgs = []string{string(jose.RS256)}
	}
	if !containsString(supportedSigAlgs, sig.Header.Algorithm) {
		return fmt.Errorf("%w: id token signed with unsupported algorithm, expected %q got %q", ErrSignatureUnsupportedAlg, supportedSigAlgs, sig.Header.Algorithm)
	}

	signedPayload, err := set.VerifySignature(ctx, jws)
	if err != nil {
		if errors.Is(err, ErrSignatureInvalid) || errors.Is(err, ErrSignatureUnsupportedAlg) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}

	if !bytes.Equal(signedPayload, payload) {
		return ErrSignatureInvalidPayload
	}

	claims.SetSignatureAlgorithm(jose.SignatureAlgorithm(sig.Header.Algorithm))

	return nil
}

// CheckExpiration requires the exp claim and fails when it lies
// further in the past than the tolerated clock skew.
func CheckExpiration(claims Claims, skew time.Duration) error {
	expiration := claims.GetExpiration()
	if expiration.IsZero() {
		return fmt.Errorf("%w: missing exp claim", ErrExpired)
	}
	now := time.Now().UTC().Add(-skew)
	if !now.Before(expiration) {
		return fmt.Errorf("%w: expired at %v", ErrExpired, expiration.UTC())
	}
	return nil
}

// CheckIssuedAt fails when the iat claim lies further in the future than the tolerated
// clock skew, or when it is older than maxAgeIAT.
// A missing iat claim is accepted.
func CheckIssuedAt(claims Claims, maxAgeIAT, skew time.Duration) error {
	issuedAt := claims.GetIssuedAt()
	if issuedAt.IsZero() {
		return nil
	}
	nowWithSkew := time.Now().UTC().Add(skew)
	if issuedAt.After(nowWithSkew) {
		return fmt.Errorf("%w: (iat: %v, now with skew: %v)", ErrIatInFuture, issuedAt.UTC(), nowWithSkew)
	}
	if maxAgeIAT == 0 {
		return nil
	}
	maxAge := time.Now().UTC().Add(-maxAgeIAT)
	if issuedAt.Before(maxAge) {
		return fmt.Errorf("%w: must not be older than %v, but was %v (%v to old)", ErrIatToOld, maxAge, issuedAt, maxAge.Sub(issuedAt))
	}
	return nil
}

func CheckNonce(claims Claims, nonce string) error {
	if nonce == "" {
		return nil
	}
	if claims.GetNonce() != nonce {
		return fmt.Errorf("%w: expected %q but was %q", ErrNonceInvalid, nonce, claims.GetNonce())
	}
	return nil
}

func CheckAuthorizationContextClassReference(claims Claims, acr ACRVerifier) error {
	if acr != nil {
		if err := acr(claims.GetAuthenticationContextClassReference()); err != nil {
			return fmt.Errorf("%w: %v", ErrAcrInvalid, err)
		}
	}
	return nil
}

func CheckAuthTime(claims Claims, maxAge time.Duration) error {
	if maxAge == 0 {
		return nil
	}
	if claims.GetAuthTime().IsZero() {
		return ErrAuthTimeNotPresent
	}
	authTime := claims.GetAuthTime()
	maxAuthTime := time.Now().UTC().Add(-maxAge)
	if authTime.Before(maxAuthTime) {
		return fmt.Errorf("%w: must not be older than %v, but was %v (%v to old)", ErrAuthTimeToOld, maxAge, authTime, maxAuthTime.Sub(authTime))
	}
	return nil
}

// CheckClaimHash compares a at_hash or c_hash claim with the value it was computed from.
// An empty claim is accepted.
func CheckClaimHash(value, claimHash string, sigAlgorithm jose.SignatureAlgorithm, mismatch error) error {
	if claimHash == "" {
		return nil
	}
	actual, err := ClaimHash(value, sigAlgorithm)
	if err != nil {
		return err
	}
	if actual != claimHash {
		return mismatch
	}
	return nil
}
