package rp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/zitadel/logging"
	"golang.org/x/exp/slog"

	"github.com/zitadel/oidc-core/pkg/client"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

// VerifyTokens implement the Token Response Validation as defined in OIDC specification
// https://openid.net/specs/openid-connect-core-1_0.html#TokenResponseValidation
func VerifyTokens[C oidc.IDClaims](ctx context.Context, accessToken, idToken string, v *IDTokenVerifier) (claims C, err error) {
	ctx, span := client.Tracer.Start(ctx, "VerifyTokens")
	defer span.End()

	var nilClaims C

	claims, err = VerifyIDToken[C](ctx, idToken, v)
	if err != nil {
		return nilClaims, err
	}
	if err := VerifyAccessToken(accessToken, claims.GetAccessTokenHash(), claims.GetSignatureAlgorithm()); err != nil {
		return nilClaims, err
	}
	return claims, nil
}

// VerifyIDToken validates the id token according to
// https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
//
// Encrypted tokens are decrypted first and a nested token is unwrapped.
// With a DecryptionKeySet, tokens which are not encrypted are rejected.
// Signed tokens are checked against the KeySet of the verifier.
// Tokens without signature are accepted only as described in [oidc.Verifier].
// The claims are returned only if every check passed.
func VerifyIDToken[C oidc.Claims](ctx context.Context, token string, v *IDTokenVerifier) (claims C, err error) {
	ctx, span := client.Tracer.Start(ctx, "VerifyIDToken")
	defer span.End()

	var nilClaims C
	defer func() {
		if err != nil {
			logFailure(ctx, err)
		}
	}()

	inner, plaintext, err := oidc.DecryptToken(ctx, token, v.DecryptionKeySet)
	if err != nil {
		return nilClaims, err
	}
	encrypted := plaintext != nil || inner != token
	if !encrypted && (*oidc.Verifier)(v).RequiresEncryption() {
		return nilClaims, oidc.ErrEncryptionRequired
	}

	if plaintext != nil {
		if err = checkUnsigned(v, encrypted); err != nil {
			return nilClaims, err
		}
		if err = json.Unmarshal(plaintext, &claims); err != nil {
			return nilClaims, fmt.Errorf("%w: malformed jwt payload: %v", oidc.ErrParse, err)
		}
	} else {
		kind, _, err := oidc.ParseJOSEHeader(inner)
		if err != nil {
			return nilClaims, err
		}
		payload, err := oidc.ParseToken(inner, &claims)
		if err != nil {
			return nilClaims, err
		}
		if kind == oidc.JWTPlain {
			if err = checkUnsigned(v, encrypted); err != nil {
				return nilClaims, err
			}
		} else if err = oidc.CheckSignature(ctx, inner, payload, claims, v.SupportedSignAlgs, v.KeySet); err != nil {
			return nilClaims, err
		}
	}

	if err = checkClaims(ctx, claims, v); err != nil {
		return nilClaims, err
	}
	return claims, nil
}

// checkUnsigned applies the policy for tokens without signature:
// an encrypted token needs a signature if a KeySet is configured,
// a plain token is accepted only without any key set.
func checkUnsigned(v *IDTokenVerifier, encrypted bool) error {
	if encrypted && v.KeySet == nil {
		return nil
	}
	if !encrypted && (*oidc.Verifier)(v).AllowsUnsecured() {
		return nil
	}
	return oidc.ErrUnsecuredToken
}

func checkClaims(ctx context.Context, claims oidc.Claims, v *IDTokenVerifier) error {
	if err := oidc.CheckSubject(claims); err != nil {
		return err
	}
	if err := oidc.CheckIssuer(claims, v.Issuer); err != nil {
		return err
	}
	if err := oidc.CheckAudience(claims, v.ClientID); err != nil {
		return err
	}
	if err := oidc.CheckAuthorizedParty(claims, v.ClientID); err != nil {
		return err
	}
	if err := oidc.CheckExpiration(claims, v.MaxClockSkew); err != nil {
		return err
	}
	if err := oidc.CheckIssuedAt(claims, v.MaxAgeIAT, v.MaxClockSkew); err != nil {
		return err
	}
	if v.Nonce != nil {
		if err := oidc.CheckNonce(claims, v.Nonce(ctx)); err != nil {
			return err
		}
	}
	if err := oidc.CheckAuthorizationContextClassReference(claims, v.ACR); err != nil {
		return err
	}
	return oidc.CheckAuthTime(claims, v.MaxAge)
}

func logFailure(ctx context.Context, err error) {
	if logger, ok := logging.FromContext(ctx); ok {
		logger.DebugContext(ctx, "id token verification failed", slog.String("error", err.Error()))
	}
}

type IDTokenVerifier oidc.Verifier

// VerifyAccessToken validates the access token according to
// https://openid.net/specs/openid-connect-core-1_0.html#CodeFlowTokenValidation
func VerifyAccessToken(accessToken, atHash string, sigAlgorithm jose.SignatureAlgorithm) error {
	return oidc.CheckClaimHash(accessToken, atHash, sigAlgorithm, oidc.ErrAtHash)
}

// VerifyCodeHash validates the c_hash of an id token returned from the
// authorization endpoint in the hybrid flow.
func VerifyCodeHash(code, cHash string, sigAlgorithm jose.SignatureAlgorithm) error {
	return oidc.CheckClaimHash(code, cHash, sigAlgorithm, oidc.ErrCHash)
}

// NewIDTokenVerifier returns a oidc.Verifier suitable for ID token verification.
// The keySet may be nil for providers which only issue encrypted or unsecured tokens.
func NewIDTokenVerifier(issuer, clientID string, keySet oidc.KeySet, options ...VerifierOption) *IDTokenVerifier {
	v := &IDTokenVerifier{
		Issuer:       issuer,
		ClientID:     clientID,
		KeySet:       keySet,
		MaxClockSkew: oidc.DefaultMaxClockSkew,
		Nonce: func(_ context.Context) string {
			return ""
		},
	}

	for _, opts := range options {
		opts(v)
	}

	return v
}

// VerifierOption is the type for providing dynamic options to the IDTokenVerifier
type VerifierOption func(*IDTokenVerifier)

// WithMaxClockSkew sets the tolerated clock difference for the exp and iat checks.
func WithMaxClockSkew(skew time.Duration) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.MaxClockSkew = skew
	}
}

// WithIssuedAtMaxAge provides the ability to define the maximum duration between iat and now
func WithIssuedAtMaxAge(maxAge time.Duration) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.MaxAgeIAT = maxAge
	}
}

// WithNonce sets the function to check the nonce
func WithNonce(nonce func(context.Context) string) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.Nonce = nonce
	}
}

// WithACRVerifier sets the verifier for the acr claim
func WithACRVerifier(verifier oidc.ACRVerifier) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.ACR = verifier
	}
}

// WithAuthTimeMaxAge provides the ability to define the maximum duration between auth_time and now
func WithAuthTimeMaxAge(maxAge time.Duration) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.MaxAge = maxAge
	}
}

// WithSupportedSigningAlgorithms overwrites the default RS256 signing algorithm
func WithSupportedSigningAlgorithms(algs ...string) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.SupportedSignAlgs = algs
	}
}

// WithDecryptionKeySet enables encrypted id tokens.
func WithDecryptionKeySet(keySet oidc.DecryptionKeySet) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.DecryptionKeySet = keySet
	}
}
