package rp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	jose "github.com/go-jose/go-jose/v3"

	"github.com/zitadel/oidc-core/pkg/client"
	httphelper "github.com/zitadel/oidc-core/pkg/http"
	"github.com/zitadel/oidc-core/pkg/oidc"
)

const joseUnknownKeyTypeErrMsg = "unknown json web key type '"

// RemoteKeySet holds the keys published at a jwks_uri.
// It is a [oidc.KeySet] for signed tokens of the provider and
// a [oidc.KeySelector] for [oidc.NewVerificationKeySet].
//
// Keys are cached. When no cached key matches, the keys are fetched again,
// concurrent fetches are combined into a single request.
type RemoteKeySet struct {
	jwksURL         string
	httpClient      *http.Client
	defaultAlg      string
	skipRemoteCheck bool

	// guard all other fields
	mu sync.Mutex

	// inflight suppresses parallel execution of updateKeys and allows
	// multiple goroutines to wait for its result.
	inflight *inflight

	cachedKeys []jose.JSONWebKey
}

type RemoteKeySetOpt func(*RemoteKeySet)

// SkipRemoteCheck will suppress checking for new remote keys if signature validation fails with cached keys
// and no kid header is set in the JWT
//
// this might be handy to save some unnecessary round trips in cases where the JWT does not contain a kid header and
// there is only a single remote key
// please notice that remote keys will then only be fetched if cached keys are empty
func SkipRemoteCheck() RemoteKeySetOpt {
	return func(set *RemoteKeySet) {
		set.skipRemoteCheck = true
	}
}

// WithDefaultAlgorithm sets the algorithm assumed for tokens without alg header.
func WithDefaultAlgorithm(alg jose.SignatureAlgorithm) RemoteKeySetOpt {
	return func(set *RemoteKeySet) {
		set.defaultAlg = string(alg)
	}
}

func NewRemoteKeySet(client *http.Client, jwksURL string, opts ...RemoteKeySetOpt) *RemoteKeySet {
	keyset := &RemoteKeySet{
		httpClient: client,
		jwksURL:    jwksURL,
		defaultAlg: string(jose.RS256),
	}
	for _, opt := range opts {
		opt(keyset)
	}
	return keyset
}

// inflight is used to wait on some in-flight request from multiple goroutines.
type inflight struct {
	doneCh chan struct{}

	keys []jose.JSONWebKey
	err  error
}

func newInflight() *inflight {
	return &inflight{doneCh: make(chan struct{})}
}

// wait returns a channel that multiple goroutines can receive on. Once it returns
// a value, the inflight request is done and result() can be inspected.
func (i *inflight) wait() <-chan struct{} {
	return i.doneCh
}

// done can only be called by a single goroutine. It records the result of the
// inflight request and signals other goroutines that the result is safe to
// inspect.
func (i *inflight) done(keys []jose.JSONWebKey, err error) {
	i.keys = keys
	i.err = err
	close(i.doneCh)
}

// result cannot be called until the wait() channel has returned a value.
func (i *inflight) result() ([]jose.JSONWebKey, error) {
	return i.keys, i.err
}

// SelectKeys implements [oidc.KeySelector].
// The cache is refreshed once if it holds no matching key.
func (r *RemoteKeySet) SelectKeys(ctx context.Context, criteria oidc.KeyCriteria) ([]jose.JSONWebKey, error) {
	ctx, span := client.Tracer.Start(ctx, "SelectKeys")
	defer span.End()

	if key, err := oidc.FindMatchingKey(criteria.KeyID, criteria.Use, criteria.Algorithm, r.keysFromCache()...); err == nil {
		return []jose.JSONWebKey{key}, nil
	}
	keys, err := r.keysFromRemote(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch keys: %w", err)
	}
	key, err := oidc.FindMatchingKey(criteria.KeyID, criteria.Use, criteria.Algorithm, keys...)
	if err != nil {
		return nil, err
	}
	return []jose.JSONWebKey{key}, nil
}

// VerifySignature implements [oidc.KeySet].
func (r *RemoteKeySet) VerifySignature(ctx context.Context, jws *jose.JSONWebSignature) ([]byte, error) {
	ctx, span := client.Tracer.Start(ctx, "VerifySignature")
	defer span.End()

	keyID, alg := oidc.GetKeyIDAndAlg(jws)
	if alg == "" {
		alg = r.defaultAlg
	}
	payload, err := r.verifySignatureCached(jws, keyID, alg)
	if payload != nil {
		return payload, nil
	}
	if err != nil {
		return nil, err
	}
	return r.verifySignatureRemote(ctx, jws, keyID, alg)
}

// verifySignatureCached checks for a matching key in the cached key list
//
// if there is only one possible, it tries to verify the signature and will return the payload if successful
//
// it only returns an error if signature validation fails and keys exactMatch which is if either:
// - both kid are empty and skipRemoteCheck is set to true
// - or both (JWT and JWK) kid are equal
//
// otherwise it will return no error (so remote keys will be loaded)
func (r *RemoteKeySet) verifySignatureCached(jws *jose.JSONWebSignature, keyID, alg string) ([]byte, error) {
	keys := r.keysFromCache()
	if len(keys) == 0 {
		return nil, nil
	}
	key, err := oidc.FindMatchingKey(keyID, oidc.KeyUseSignature, alg, keys...)
	if err != nil {
		// no key / multiple found, try with remote keys
		return nil, nil //nolint:nilerr
	}
	payload, err := jws.Verify(&key)
	if payload != nil {
		return payload, nil
	}
	if !r.exactMatch(key.KeyID, keyID) {
		// no exact key match, try getting better match with remote keys
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %w", oidc.ErrSignatureInvalid, err)
}

func (r *RemoteKeySet) exactMatch(jwkID, jwsID string) bool {
	if jwkID == "" && jwsID == "" {
		return r.skipRemoteCheck
	}
	return jwkID == jwsID
}

func (r *RemoteKeySet) verifySignatureRemote(ctx context.Context, jws *jose.JSONWebSignature, keyID, alg string) ([]byte, error) {
	ctx, span := client.Tracer.Start(ctx, "verifySignatureRemote")
	defer span.End()

	keys, err := r.keysFromRemote(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch key for signature validation: %w", err)
	}
	key, err := oidc.FindMatchingKey(keyID, oidc.KeyUseSignature, alg, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to validate signature: %w", oidc.ErrSignatureInvalid, err)
	}
	payload, err := jws.Verify(&key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oidc.ErrSignatureInvalid, err)
	}
	return payload, nil
}

func (r *RemoteKeySet) keysFromCache() []jose.JSONWebKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cachedKeys
}

// keysFromRemote syncs the key set from the remote set, records the values in the
// cache, and returns the key set.
func (r *RemoteKeySet) keysFromRemote(ctx context.Context) ([]jose.JSONWebKey, error) {
	// Need to lock to inspect the inflight request field.
	r.mu.Lock()
	// If there's not a current inflight request, create one.
	if r.inflight == nil {
		r.inflight = newInflight()

		// This goroutine has exclusive ownership over the current inflight
		// request. It releases the resource by nil'ing the inflight field
		// once the goroutine is done.
		go r.updateKeys(context.WithoutCancel(ctx), r.inflight)
	}
	inflight := r.inflight
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-inflight.wait():
		return inflight.result()
	}
}

func (r *RemoteKeySet) updateKeys(ctx context.Context, inflight *inflight) {
	ctx, span := client.Tracer.Start(ctx, "updateKeys")
	defer span.End()

	keys, err := r.fetchRemoteKeys(ctx)

	// Lock to update the keys and indicate that there is no longer an
	// inflight request.
	r.mu.Lock()
	if err == nil {
		r.cachedKeys = keys
	}
	// Free inflight so a different request can run.
	r.inflight = nil
	r.mu.Unlock()

	inflight.done(keys, err)
}

var ErrFetchKeys = errors.New("oidc: failed to get keys")

func (r *RemoteKeySet) fetchRemoteKeys(ctx context.Context) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("oidc: can't create request: %w", err)
	}

	keySet := new(jsonWebKeySet)
	if err = httphelper.HttpRequest(r.httpClient, req, keySet); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchKeys, err)
	}
	return keySet.Keys, nil
}

// jsonWebKeySet is an alias for jose.JSONWebKeySet which ignores unknown key types (kty)
type jsonWebKeySet jose.JSONWebKeySet

// UnmarshalJSON overrides the default jose.JSONWebKeySet method to ignore any error
// which might occur because of unknown key types (kty)
func (k *jsonWebKeySet) UnmarshalJSON(data []byte) (err error) {
	var raw rawJSONWebKeySet
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("oidc: failed to unmarshall key set: %w", err)
	}
	for i, key := range raw.Keys {
		webKey := new(jose.JSONWebKey)
		if err = webKey.UnmarshalJSON(key); err != nil {
			if strings.Contains(err.Error(), joseUnknownKeyTypeErrMsg) {
				continue
			}

			return fmt.Errorf("oidc: failed to unmarshal key %d from set: %w", i, err)
		}

		k.Keys = append(k.Keys, *webKey)
	}
	return nil
}

type rawJSONWebKeySet struct {
	Keys []json.RawMessage `json:"keys"`
}
