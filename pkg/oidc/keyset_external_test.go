package oidc_test

import (
	"context"
	"errors"
	"testing"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/zitadel/oidc-core/internal/testutil"
	"github.com/zitadel/oidc-core/pkg/oidc"
	"github.com/zitadel/oidc-core/pkg/oidc/mock"
)

var keys = tu.NewKeySet()

func TestVerificationKeySet_VerifySignature(t *testing.T) {
	other := tu.NewKeySet()
	token, _ := keys.ValidIDToken()

	tests := []struct {
		name     string
		selector func(t *testing.T) oidc.KeySelector
		algs     []jose.SignatureAlgorithm
		wantErr  error
	}{
		{
			name:     "success",
			selector: func(*testing.T) oidc.KeySelector { return keys.SignatureKeys() },
			algs:     []jose.SignatureAlgorithm{tu.SignatureAlgorithm},
		},
		{
			name:     "default algorithm",
			selector: func(*testing.T) oidc.KeySelector { return keys.SignatureKeys() },
			wantErr:  oidc.ErrSignatureUnsupportedAlg,
		},
		{
			name:     "wrong key",
			selector: func(*testing.T) oidc.KeySelector { return other.SignatureKeys() },
			algs:     []jose.SignatureAlgorithm{tu.SignatureAlgorithm},
			wantErr:  oidc.ErrSignatureInvalid,
		},
		{
			name: "no key",
			selector: func(t *testing.T) oidc.KeySelector {
				s := mock.NewKeySelector(t)
				s.EXPECT().SelectKeys(gomock.Any(), oidc.KeyCriteria{
					KeyID:     tu.SigningKeyID,
					Algorithm: string(tu.SignatureAlgorithm),
					Use:       oidc.KeyUseSignature,
					Issuer:    tu.ValidIssuer,
				}).Return(nil, oidc.ErrKeyNone)
				return s
			},
			algs:    []jose.SignatureAlgorithm{tu.SignatureAlgorithm},
			wantErr: oidc.ErrKeyNone,
		},
		{
			name: "empty selection",
			selector: func(t *testing.T) oidc.KeySelector {
				s := mock.NewKeySelector(t)
				s.EXPECT().SelectKeys(gomock.Any(), gomock.Any()).Return([]jose.JSONWebKey{}, nil)
				return s
			},
			algs:    []jose.SignatureAlgorithm{tu.SignatureAlgorithm},
			wantErr: oidc.ErrSignatureInvalid,
		},
		{
			name: "second key matches",
			selector: func(t *testing.T) oidc.KeySelector {
				s := mock.NewKeySelector(t)
				s.EXPECT().SelectKeys(gomock.Any(), gomock.Any()).Return([]jose.JSONWebKey{
					{Key: other.Public, KeyID: tu.SigningKeyID},
					{Key: keys.Public, KeyID: tu.SigningKeyID},
				}, nil)
				return s
			},
			algs: []jose.SignatureAlgorithm{tu.SignatureAlgorithm},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jws, err := jose.ParseSigned(token)
			require.NoError(t, err)

			set := oidc.NewVerificationKeySet(tu.ValidIssuer, tt.selector(t), tt.algs...)
			payload, err := set.VerifySignature(context.Background(), jws)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, jws.UnsafePayloadWithoutVerification(), payload)
		})
	}
}

func TestCheckSignature(t *testing.T) {
	token, _ := keys.ValidIDToken()
	algs := []string{string(tu.SignatureAlgorithm)}

	t.Run("success", func(t *testing.T) {
		claims := new(oidc.IDTokenClaims)
		payload, err := oidc.ParseToken(token, claims)
		require.NoError(t, err)

		err = oidc.CheckSignature(context.Background(), token, payload, claims, algs, keys)
		require.NoError(t, err)
		assert.Equal(t, tu.SignatureAlgorithm, claims.GetSignatureAlgorithm())
	})
	t.Run("no key set", func(t *testing.T) {
		err := oidc.CheckSignature(context.Background(), token, nil, new(oidc.IDTokenClaims), algs, nil)
		assert.ErrorIs(t, err, oidc.ErrKeySetMissing)
	})
	t.Run("unsupported algorithm", func(t *testing.T) {
		err := oidc.CheckSignature(context.Background(), token, nil, new(oidc.IDTokenClaims), nil, keys)
		assert.ErrorIs(t, err, oidc.ErrSignatureUnsupportedAlg)
	})
	t.Run("invalid signature", func(t *testing.T) {
		err := oidc.CheckSignature(context.Background(), tu.InvalidSignatureToken, nil, new(oidc.IDTokenClaims), algs, keys)
		assert.ErrorIs(t, err, oidc.ErrSignatureInvalid)
	})
	t.Run("payload mismatch", func(t *testing.T) {
		set := mock.NewKeySet(t)
		set.EXPECT().VerifySignature(gomock.Any(), gomock.Any()).Return([]byte(`{"sub":"mallory"}`), nil)

		claims := new(oidc.IDTokenClaims)
		payload, err := oidc.ParseToken(token, claims)
		require.NoError(t, err)
		err = oidc.CheckSignature(context.Background(), token, payload, claims, algs, set)
		assert.ErrorIs(t, err, oidc.ErrSignatureInvalidPayload)
	})
	t.Run("key set error", func(t *testing.T) {
		set := mock.NewKeySet(t)
		set.EXPECT().VerifySignature(gomock.Any(), gomock.Any()).Return(nil, errors.New("fetch failed"))

		err := oidc.CheckSignature(context.Background(), token, nil, new(oidc.IDTokenClaims), algs, set)
		assert.ErrorIs(t, err, oidc.ErrSignatureInvalid)
		assert.ErrorContains(t, err, "fetch failed")
	})
}

func TestDecryptionKeys(t *testing.T) {
	signed, _ := keys.ValidIDToken()
	nested := keys.EncryptToken(signed)
	encryptedClaims := keys.EncryptClaims(map[string]string{"sub": tu.ValidSubject})
	other := tu.NewKeySet()

	tests := []struct {
		name          string
		token         string
		keySet        oidc.DecryptionKeySet
		wantInner     string
		wantPlaintext string
		wantErr       error
	}{
		{
			name:      "nested",
			token:     nested,
			keySet:    oidc.NewDecryptionKeySet(tu.ValidClientID, tu.KeyAlgorithm, tu.ContentEncryption, keys.DecryptionKeys()),
			wantInner: signed,
		},
		{
			name:          "encrypted claims",
			token:         encryptedClaims,
			keySet:        oidc.NewDecryptionKeySet(tu.ValidClientID, tu.KeyAlgorithm, tu.ContentEncryption, keys.DecryptionKeys()),
			wantPlaintext: `{"sub":"tim@local.com"}`,
		},
		{
			name:    "wrong key",
			token:   nested,
			keySet:  oidc.NewDecryptionKeySet(tu.ValidClientID, tu.KeyAlgorithm, tu.ContentEncryption, other.DecryptionKeys()),
			wantErr: oidc.ErrDecryptionFailed,
		},
		{
			name:    "unexpected key algorithm",
			token:   nested,
			keySet:  oidc.NewDecryptionKeySet(tu.ValidClientID, jose.RSA_OAEP, tu.ContentEncryption, keys.DecryptionKeys()),
			wantErr: oidc.ErrDecryptionFailed,
		},
		{
			name:    "unexpected content encryption",
			token:   nested,
			keySet:  oidc.NewDecryptionKeySet(tu.ValidClientID, tu.KeyAlgorithm, jose.A256GCM, keys.DecryptionKeys()),
			wantErr: oidc.ErrDecryptionFailed,
		},
		{
			name:    "no matching key",
			token:   nested,
			keySet:  oidc.NewDecryptionKeySet(tu.ValidClientID, tu.KeyAlgorithm, tu.ContentEncryption, oidc.StaticKeySelector{}),
			wantErr: oidc.ErrKeyNone,
		},
		{
			name:      "direct implementation",
			token:     nested,
			keySet:    keys,
			wantInner: signed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, plaintext, err := oidc.DecryptToken(context.Background(), tt.token, tt.keySet)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInner, inner)
			if tt.wantPlaintext == "" {
				assert.Nil(t, plaintext)
			} else {
				assert.JSONEq(t, tt.wantPlaintext, string(plaintext))
			}
		})
	}
}

func TestDecryptToken_MockKeySet(t *testing.T) {
	signed, _ := keys.ValidIDToken()
	nested := keys.EncryptToken(keys.EncryptToken(signed))

	set := mock.NewDecryptionKeySet(t)
	set.EXPECT().DecryptToken(gomock.Any(), gomock.Any()).Return([]byte(keys.EncryptToken(signed)), nil)

	_, _, err := oidc.DecryptToken(context.Background(), nested, set)
	assert.ErrorIs(t, err, oidc.ErrNestingTooDeep)
}
