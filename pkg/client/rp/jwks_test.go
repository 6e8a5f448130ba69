package rp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tu "github.com/zitadel/oidc-core/internal/testutil"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

func TestJsonWebKeySet_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		jsonData   string
		wantKeyLen int
		wantErr    bool
		errPrefix  string
	}{
		{
			name:       "valid key set",
			jsonData:   `{"keys":[{"kty":"RSA","use":"sig","kid":"key1","alg":"RS256","n":"n-value","e":"e-value"}]}`,
			wantKeyLen: 1,
			wantErr:    false,
		},
		{
			name:       "empty key set",
			jsonData:   `{"keys":[]}`,
			wantKeyLen: 0,
			wantErr:    false,
		},
		{
			name:       "unknown key type",
			jsonData:   `{"keys":[{"kty":"UNKNOWN","use":"sig","kid":"key1"}]}`,
			wantKeyLen: 0,
			wantErr:    false,
		},
		{
			name:       "mixed valid and unknown key types",
			jsonData:   `{"keys":[{"kty":"RSA","use":"sig","kid":"key1","alg":"RS256","n":"n-value","e":"e-value"},{"kty":"UNKNOWN","use":"sig","kid":"key2"}]}`,
			wantKeyLen: 1,
			wantErr:    false,
		},
		{
			name:       "invalid json",
			jsonData:   `{"keys":[{]`,
			wantKeyLen: 0,
			wantErr:    true,
			errPrefix:  "oidc: failed to unmarshall key set: ",
		},
		{
			name:       "other error during key unmarshal",
			jsonData:   `{"keys":[{"kty":"RSA","use":"sig","kid":"key1","alg":"RS256"}]}`,
			wantKeyLen: 0,
			wantErr:    true,
			errPrefix:  "oidc: failed to unmarshal key 0 from set: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keySet jsonWebKeySet
			err := keySet.UnmarshalJSON([]byte(tt.jsonData))

			if tt.wantErr {
				assert.Error(t, err)
				assert.NotContains(t, err.Error(), joseUnknownKeyTypeErrMsg)
				assert.True(t, strings.HasPrefix(err.Error(), tt.errPrefix))

			} else {
				assert.NoError(t, err)
				assert.Len(t, keySet.Keys, tt.wantKeyLen)
			}
		})
	}
}

type jwksServer struct {
	*httptest.Server
	requests atomic.Int32
	status   atomic.Int32
}

func newJWKSServer(t *testing.T, keys ...*tu.KeySet) *jwksServer {
	t.Helper()
	set := jose.JSONWebKeySet{}
	for _, k := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       k.Public,
			KeyID:     tu.SigningKeyID,
			Algorithm: string(tu.SignatureAlgorithm),
			Use:       oidc.KeyUseSignature,
		})
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)

	s := new(jwksServer)
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		w.WriteHeader(int(s.status.Load()))
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestRemoteKeySet_SelectKeys(t *testing.T) {
	keys := tu.NewKeySet()
	server := newJWKSServer(t, keys)
	remote := NewRemoteKeySet(server.Client(), server.URL)
	ctx := context.Background()
	criteria := oidc.KeyCriteria{
		KeyID:     tu.SigningKeyID,
		Algorithm: string(tu.SignatureAlgorithm),
		Use:       oidc.KeyUseSignature,
	}

	got, err := remote.SelectKeys(ctx, criteria)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tu.SigningKeyID, got[0].KeyID)
	assert.Equal(t, int32(1), server.requests.Load())

	_, err = remote.SelectKeys(ctx, criteria)
	require.NoError(t, err)
	assert.Equal(t, int32(1), server.requests.Load(), "cached")

	criteria.KeyID = "rotated"
	_, err = remote.SelectKeys(ctx, criteria)
	assert.ErrorIs(t, err, oidc.ErrKeyNone)
	assert.Equal(t, int32(2), server.requests.Load(), "refreshed on miss")
}

func TestRemoteKeySet_VerifySignature(t *testing.T) {
	keys := tu.NewKeySet()
	other := tu.NewKeySet()
	token, _ := keys.ValidIDToken()
	forged, _ := other.ValidIDToken()

	t.Run("key set", func(t *testing.T) {
		server := newJWKSServer(t, keys)
		remote := NewRemoteKeySet(server.Client(), server.URL)

		jws, err := jose.ParseSigned(token)
		require.NoError(t, err)
		payload, err := remote.VerifySignature(context.Background(), jws)
		require.NoError(t, err)
		assert.Equal(t, jws.UnsafePayloadWithoutVerification(), payload)

		jws, err = jose.ParseSigned(forged)
		require.NoError(t, err)
		_, err = remote.VerifySignature(context.Background(), jws)
		assert.ErrorIs(t, err, oidc.ErrSignatureInvalid)
		assert.Equal(t, int32(1), server.requests.Load())
	})
	t.Run("selector", func(t *testing.T) {
		server := newJWKSServer(t, keys)
		set := oidc.NewVerificationKeySet(tu.ValidIssuer, NewRemoteKeySet(server.Client(), server.URL), tu.SignatureAlgorithm)

		jws, err := jose.ParseSigned(token)
		require.NoError(t, err)
		_, err = set.VerifySignature(context.Background(), jws)
		require.NoError(t, err)
	})
	t.Run("fetch error", func(t *testing.T) {
		server := newJWKSServer(t, keys)
		server.status.Store(http.StatusInternalServerError)
		remote := NewRemoteKeySet(server.Client(), server.URL)

		jws, err := jose.ParseSigned(token)
		require.NoError(t, err)
		_, err = remote.VerifySignature(context.Background(), jws)
		assert.ErrorIs(t, err, ErrFetchKeys)
	})
}

func TestRemoteKeySet_ConcurrentRefresh(t *testing.T) {
	keys := tu.NewKeySet()
	server := newJWKSServer(t, keys)
	remote := NewRemoteKeySet(server.Client(), server.URL)
	criteria := oidc.KeyCriteria{
		KeyID:     tu.SigningKeyID,
		Algorithm: string(tu.SignatureAlgorithm),
		Use:       oidc.KeyUseSignature,
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := remote.SelectKeys(context.Background(), criteria)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, server.requests.Load(), int32(10))
	assert.GreaterOrEqual(t, server.requests.Load(), int32(1))
}
