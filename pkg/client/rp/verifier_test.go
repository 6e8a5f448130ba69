package rp

import (
	"context"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/zitadel/oidc-core/internal/testutil"
	"github.com/zitadel/oidc-core/pkg/crypto"
	"github.com/zitadel/oidc-core/pkg/oidc"
	"github.com/zitadel/oidc-core/pkg/oidc/mock"
)

var keys = tu.NewKeySet()

func newTestVerifier(opts ...VerifierOption) *IDTokenVerifier {
	opts = append([]VerifierOption{
		WithSupportedSigningAlgorithms(string(tu.SignatureAlgorithm)),
		WithIssuedAtMaxAge(2 * time.Minute),
		WithAuthTimeMaxAge(2 * time.Minute),
		WithACRVerifier(tu.ACRVerify),
		WithNonce(func(context.Context) string { return tu.ValidNonce }),
	}, opts...)
	return NewIDTokenVerifier(tu.ValidIssuer, tu.ValidClientID, keys, opts...)
}

type idTokenOverride struct {
	issuer     string
	subject    string
	audience   []string
	expiration time.Time
	authTime   time.Time
	nonce      string
	acr        string
	clientID   string
}

func newIDToken(o idTokenOverride) (string, *oidc.IDTokenClaims) {
	valid := idTokenOverride{
		issuer:     tu.ValidIssuer,
		subject:    tu.ValidSubject,
		audience:   tu.ValidAudience,
		expiration: tu.ValidExpiration,
		authTime:   tu.ValidAuthTime,
		nonce:      tu.ValidNonce,
		acr:        tu.ValidACR,
		clientID:   tu.ValidClientID,
	}
	if o.issuer != "" {
		valid.issuer = o.issuer
	}
	if o.subject != "" {
		valid.subject = o.subject
	}
	if o.audience != nil {
		valid.audience = o.audience
	}
	if !o.expiration.IsZero() {
		valid.expiration = o.expiration
	}
	if !o.authTime.IsZero() {
		valid.authTime = o.authTime
	}
	if o.nonce != "" {
		valid.nonce = o.nonce
	}
	if o.acr != "" {
		valid.acr = o.acr
	}
	if o.clientID != "" {
		valid.clientID = o.clientID
	}
	return keys.NewIDToken(valid.issuer, valid.subject, valid.audience, valid.expiration, valid.authTime, valid.nonce, valid.acr, tu.ValidAMR, valid.clientID, "")
}

func TestVerifyIDToken(t *testing.T) {
	verifier := newTestVerifier()
	encrypting := newTestVerifier(WithDecryptionKeySet(keys))

	tests := []struct {
		name     string
		token    func() (string, *oidc.IDTokenClaims)
		verifier *IDTokenVerifier
		wantErr  error
	}{
		{
			name:  "success",
			token: keys.ValidIDToken,
		},
		{
			name:     "nested token",
			token:    keys.ValidNestedIDToken,
			verifier: encrypting,
		},
		{
			name:     "signed token, encryption required",
			token:    keys.ValidIDToken,
			verifier: encrypting,
			wantErr:  oidc.ErrEncryptionRequired,
		},
		{
			name:    "nested token, no decryption key set",
			token:   keys.ValidNestedIDToken,
			wantErr: oidc.ErrDecryptionKeySetMissing,
		},
		{
			name: "expired within skew",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{expiration: time.Now().Add(-30 * time.Second)})
			},
		},
		{
			name: "parse error",
			token: func() (string, *oidc.IDTokenClaims) {
				return "foobar", nil
			},
			wantErr: oidc.ErrParse,
		},
		{
			name: "invalid signature",
			token: func() (string, *oidc.IDTokenClaims) {
				return tu.InvalidSignatureToken, nil
			},
			wantErr: oidc.ErrSignatureInvalid,
		},
		{
			name: "empty subject",
			token: func() (string, *oidc.IDTokenClaims) {
				claims := tu.NewIDTokenClaims(tu.ValidIssuer, "", tu.ValidAudience, tu.ValidExpiration, tu.ValidAuthTime, tu.ValidNonce, tu.ValidACR, tu.ValidAMR, tu.ValidClientID, "")
				return keys.SignToken(claims), nil
			},
			wantErr: oidc.ErrSubjectMissing,
		},
		{
			name: "wrong issuer",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{issuer: "wrong"})
			},
			wantErr: oidc.ErrIssuerInvalid,
		},
		{
			name: "wrong audience",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{audience: []string{"other"}})
			},
			wantErr: oidc.ErrAudience,
		},
		{
			name: "wrong authorized party",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{clientID: "other"})
			},
			wantErr: oidc.ErrAzpInvalid,
		},
		{
			name: "expired",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{expiration: time.Now().Add(-5 * time.Minute)})
			},
			wantErr: oidc.ErrExpired,
		},
		{
			name: "issued in the future",
			token: func() (string, *oidc.IDTokenClaims) {
				_, claims := newIDToken(idTokenOverride{})
				claims.IssuedAt = oidc.FromTime(time.Now().Add(time.Hour))
				return keys.SignToken(claims), nil
			},
			wantErr: oidc.ErrIatInFuture,
		},
		{
			name: "wrong nonce",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{nonce: "wrong"})
			},
			wantErr: oidc.ErrNonceInvalid,
		},
		{
			name: "wrong acr",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{acr: "else"})
			},
			wantErr: oidc.ErrAcrInvalid,
		},
		{
			name: "auth time too old",
			token: func() (string, *oidc.IDTokenClaims) {
				return newIDToken(idTokenOverride{authTime: time.Now().Add(-time.Hour)})
			},
			wantErr: oidc.ErrAuthTimeToOld,
		},
		{
			name: "plain token",
			token: func() (string, *oidc.IDTokenClaims) {
				_, claims := keys.ValidIDToken()
				return tu.PlainToken(claims), nil
			},
			wantErr: oidc.ErrUnsecuredToken,
		},
		{
			name: "encrypted claims without signature",
			token: func() (string, *oidc.IDTokenClaims) {
				_, claims := keys.ValidIDToken()
				return keys.EncryptClaims(claims), nil
			},
			verifier: encrypting,
			wantErr:  oidc.ErrUnsecuredToken,
		},
		{
			name: "signature from key set fails",
			token: func() (string, *oidc.IDTokenClaims) {
				return keys.ValidIDToken()
			},
			verifier: func() *IDTokenVerifier {
				ctrl := gomock.NewController(t)
				keySet := mock.NewMockKeySet(ctrl)
				keySet.EXPECT().VerifySignature(gomock.Any(), gomock.Any()).Return(nil, errors.New("remote unavailable"))
				v := newTestVerifier()
				v.KeySet = keySet
				return v
			}(),
			wantErr: oidc.ErrSignatureInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verifier
			if tt.verifier != nil {
				v = tt.verifier
			}
			token, want := tt.token()
			got, err := VerifyIDToken[*oidc.IDTokenClaims](context.Background(), token, v)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestVerifyIDToken_DecryptionFailed(t *testing.T) {
	other := tu.NewKeySet()
	token, _ := other.ValidIDToken()

	_, err := VerifyIDToken[*oidc.IDTokenClaims](context.Background(), other.EncryptToken(token), newTestVerifier(WithDecryptionKeySet(keys)))
	require.ErrorIs(t, err, oidc.ErrDecryptionFailed)
	assert.True(t, errors.Is(err, rsa.ErrDecryption) || errors.Is(err, jose.ErrCryptoFailure), err)
}

func TestVerifyIDToken_KeySetPolicy(t *testing.T) {
	signed, _ := keys.ValidIDToken()
	nested, _ := keys.ValidNestedIDToken()
	claims := tu.NewIDTokenClaims(tu.ValidIssuer, tu.ValidSubject, tu.ValidAudience, tu.ValidExpiration, tu.ValidAuthTime, tu.ValidNonce, tu.ValidACR, tu.ValidAMR, tu.ValidClientID, "")

	withoutKeys := NewIDTokenVerifier(tu.ValidIssuer, tu.ValidClientID, nil)
	decryptionOnly := NewIDTokenVerifier(tu.ValidIssuer, tu.ValidClientID, nil, WithDecryptionKeySet(keys))

	tests := []struct {
		name     string
		token    string
		verifier *IDTokenVerifier
		wantErr  error
	}{
		{
			name:     "no key sets, plain token",
			token:    tu.PlainToken(claims),
			verifier: withoutKeys,
		},
		{
			name:     "no key sets, signed token",
			token:    signed,
			verifier: withoutKeys,
			wantErr:  oidc.ErrKeySetMissing,
		},
		{
			name:     "no key sets, encrypted token",
			token:    nested,
			verifier: withoutKeys,
			wantErr:  oidc.ErrDecryptionKeySetMissing,
		},
		{
			name:     "decryption only, encrypted claims",
			token:    keys.EncryptClaims(claims),
			verifier: decryptionOnly,
		},
		{
			name:     "decryption only, plain token",
			token:    tu.PlainToken(claims),
			verifier: decryptionOnly,
			wantErr:  oidc.ErrEncryptionRequired,
		},
		{
			name:     "decryption only, signed token",
			token:    signed,
			verifier: decryptionOnly,
			wantErr:  oidc.ErrEncryptionRequired,
		},
		{
			name:     "decryption only, nested token",
			token:    nested,
			verifier: decryptionOnly,
			wantErr:  oidc.ErrKeySetMissing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyIDToken[*oidc.IDTokenClaims](context.Background(), tt.token, tt.verifier)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, claims.Subject, got.Subject)
			assert.Equal(t, claims.Issuer, got.Issuer)
			assert.Equal(t, claims.Nonce, got.Nonce)
			assert.Empty(t, got.SignatureAlg)
		})
	}
}

func TestVerifyTokens(t *testing.T) {
	verifier := newTestVerifier()
	atHash, err := oidc.ClaimHash("access-token", tu.SignatureAlgorithm)
	require.NoError(t, err)
	token, want := keys.NewIDToken(tu.ValidIssuer, tu.ValidSubject, tu.ValidAudience, tu.ValidExpiration, tu.ValidAuthTime, tu.ValidNonce, tu.ValidACR, tu.ValidAMR, tu.ValidClientID, atHash)

	tests := []struct {
		name        string
		accessToken string
		idToken     string
		want        *oidc.IDTokenClaims
		wantErr     error
	}{
		{
			name:        "matching access token",
			accessToken: "access-token",
			idToken:     token,
			want:        want,
		},
		{
			name:        "without at_hash",
			accessToken: "access-token",
			idToken: func() string {
				token, _ := keys.ValidIDToken()
				return token
			}(),
		},
		{
			name:        "access token mismatch",
			accessToken: "other-token",
			idToken:     token,
			wantErr:     oidc.ErrAtHash,
		},
		{
			name:        "invalid id token",
			accessToken: "access-token",
			idToken:     tu.InvalidSignatureToken,
			wantErr:     oidc.ErrSignatureInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyTokens[*oidc.IDTokenClaims](context.Background(), tt.accessToken, tt.idToken, verifier)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestVerifyAccessToken(t *testing.T) {
	hash, err := oidc.ClaimHash("token", jose.RS256)
	require.NoError(t, err)

	assert.NoError(t, VerifyAccessToken("token", "", jose.RS256))
	assert.NoError(t, VerifyAccessToken("token", hash, jose.RS256))
	assert.ErrorIs(t, VerifyAccessToken("other", hash, jose.RS256), oidc.ErrAtHash)
	assert.ErrorIs(t, VerifyAccessToken("token", hash, jose.HS256), crypto.ErrUnsupportedAlgorithm)
}

func TestVerifyCodeHash(t *testing.T) {
	hash, err := oidc.ClaimHash("code", jose.ES384)
	require.NoError(t, err)

	assert.NoError(t, VerifyCodeHash("code", hash, jose.ES384))
	assert.ErrorIs(t, VerifyCodeHash("code", hash, jose.ES256), oidc.ErrCHash)
}

func TestNewIDTokenVerifier(t *testing.T) {
	got := NewIDTokenVerifier("issuer", "client", keys,
		WithMaxClockSkew(time.Minute*2),
		WithIssuedAtMaxAge(time.Hour),
		WithAuthTimeMaxAge(time.Minute),
		WithSupportedSigningAlgorithms("ES256", "PS256"),
		WithDecryptionKeySet(keys),
		WithNonce(nil),
	)
	want := &IDTokenVerifier{
		Issuer:            "issuer",
		ClientID:          "client",
		KeySet:            keys,
		DecryptionKeySet:  keys,
		SupportedSignAlgs: []string{"ES256", "PS256"},
		MaxClockSkew:      2 * time.Minute,
		MaxAgeIAT:         time.Hour,
		MaxAge:            time.Minute,
	}
	assert.Equal(t, want, got)

	defaults := NewIDTokenVerifier("issuer", "client", nil)
	assert.Equal(t, oidc.DefaultMaxClockSkew, defaults.MaxClockSkew)
	require.NotNil(t, defaults.Nonce)
	assert.Empty(t, defaults.Nonce(context.Background()))
}
