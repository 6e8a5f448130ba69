package oidc

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
)

const (
	KeyUseSignature  = "sig"
	KeyUseEncryption = "enc"
)

var (
	ErrKeyMultiple = errors.New("multiple possible keys match")
	ErrKeyNone     = errors.New("no possible keys matches")
)

// KeySet represents a set of JSON Web Keys used to verify token signatures
//   - remotely fetched via discovery and jwks_uri -> `rp.NewRemoteKeySet`
//   - held by the client itself -> [StaticKeySelector] with [NewVerificationKeySet]
type KeySet interface {
	// VerifySignature verifies the signature with the given keyset and returns the raw payload
	VerifySignature(ctx context.Context, jws *jose.JSONWebSignature) (payload []byte, err error)
}

// DecryptionKeySet decrypts tokens encrypted for the client.
type DecryptionKeySet interface {
	// DecryptToken decrypts the token and returns the plaintext
	DecryptToken(ctx context.Context, jwe *jose.JSONWebEncryption) (plaintext []byte, err error)
}

// KeyCriteria describes the keys a verifier or decrypter needs.
type KeyCriteria struct {
	KeyID     string
	Algorithm string
	Use       string
	// Issuer is set for signature keys.
	Issuer string
	// ClientID is set for decryption keys.
	ClientID string
}

// KeySelector returns the candidate keys for the criteria.
type KeySelector interface {
	SelectKeys(ctx context.Context, criteria KeyCriteria) ([]jose.JSONWebKey, error)
}

// StaticKeySelector selects keys from a fixed list.
type StaticKeySelector []jose.JSONWebKey

func (s StaticKeySelector) SelectKeys(_ context.Context, criteria KeyCriteria) ([]jose.JSONWebKey, error) {
	key, err := FindMatchingKey(criteria.KeyID, criteria.Use, criteria.Algorithm, s...)
	if err != nil {
		return nil, err
	}
	return []jose.JSONWebKey{key}, nil
}

// VerificationKeySet verifies signatures of tokens issued by a single issuer,
// using the keys returned by the selector.
type VerificationKeySet struct {
	issuer   string
	algs     []string
	selector KeySelector
}

// NewVerificationKeySet creates a KeySet for the issuer.
// If no algorithms are passed, RS256 is accepted only.
func NewVerificationKeySet(issuer string, selector KeySelector, algs ...jose.SignatureAlgorithm) *VerificationKeySet {
	k := &VerificationKeySet{
		issuer:   issuer,
		selector: selector,
	}
	for _, alg := range algs {
		k.algs = append(k.algs, string(alg))
	}
	if len(k.algs) == 0 {
		k.algs = []string{string(jose.RS256)}
	}
	return k
}

func (k *VerificationKeySet) VerifySignature(ctx context.Context, jws *jose.JSONWebSignature) ([]byte, error) {
	keyID, alg := GetKeyIDAndAlg(jws)
	if !containsString(k.algs, alg) {
		return nil, fmt.Errorf("%w: expected one of %q, got %q", ErrSignatureUnsupportedAlg, k.algs, alg)
	}
	keys, err := k.selector.SelectKeys(ctx, KeyCriteria{
		KeyID:     keyID,
		Algorithm: alg,
		Use:       KeyUseSignature,
		Issuer:    k.issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	return verifyWithKeys(jws, keys)
}

func verifyWithKeys(jws *jose.JSONWebSignature, keys []jose.JSONWebKey) ([]byte, error) {
	err := ErrKeyNone
	for _, key := range keys {
		var payload []byte
		payload, err = jws.Verify(key)
		if err == nil {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
}

// DecryptionKeys decrypts tokens for a single client,
// using the keys returned by the selector.
type DecryptionKeys struct {
	clientID string
	alg      jose.KeyAlgorithm
	enc      jose.ContentEncryption
	selector KeySelector
}

// NewDecryptionKeySet creates a DecryptionKeySet for the client.
// Tokens which are not encrypted with alg and enc are rejected.
func NewDecryptionKeySet(clientID string, alg jose.KeyAlgorithm, enc jose.ContentEncryption, selector KeySelector) *DecryptionKeys {
	return &DecryptionKeys{
		clientID: clientID,
		alg:      alg,
		enc:      enc,
		selector: selector,
	}
}

func (d *DecryptionKeys) DecryptToken(ctx context.Context, jwe *jose.JSONWebEncryption) ([]byte, error) {
	alg := jwe.Header.Algorithm
	if alg != string(d.alg) {
		return nil, fmt.Errorf("unexpected key encryption algorithm %q", alg)
	}
	enc, _ := jwe.Header.ExtraHeaders["enc"].(string)
	if enc != string(d.enc) {
		return nil, fmt.Errorf("unexpected content encryption method %q", enc)
	}
	keys, err := d.selector.SelectKeys(ctx, KeyCriteria{
		KeyID:     jwe.Header.KeyID,
		Algorithm: alg,
		Use:       KeyUseEncryption,
		ClientID:  d.clientID,
	})
	if err != nil {
		return nil, err
	}
	err = ErrKeyNone
	for _, key := range keys {
		var plaintext []byte
		plaintext, err = jwe.Decrypt(key.Key)
		if err == nil {
			return plaintext, nil
		}
	}
	return nil, err
}

// GetKeyIDAndAlg returns the `kid` and `alg` claim from the JWS header
func GetKeyIDAndAlg(jws *jose.JSONWebSignature) (string, string) {
	keyID := ""
	alg := ""
	for _, sig := range jws.Signatures {
		keyID = sig.Header.KeyID
		alg = sig.Header.Algorithm
		break
	}
	return keyID, alg
}

// FindMatchingKey searches the given JSON Web Keys for the requested key ID, usage and alg type
//
// will return the key immediately if matches exact (id, usage, type)
//
// will return a specific error if none (ErrKeyNone) or multiple (ErrKeyMultiple) match
func FindMatchingKey(keyID, use, expectedAlg string, keys ...jose.JSONWebKey) (key jose.JSONWebKey, err error) {
	var validKeys []jose.JSONWebKey
	for _, k := range keys {
		// ignore all keys with wrong use (let empty use of published key pass)
		if k.Use != use && k.Use != "" {
			continue
		}
		// ignore all keys with wrong algorithm type
		if !algToKeyType(k.Key, expectedAlg) {
			continue
		}
		// if we get here, use and alg match, so an equal (not empty) keyID is an exact match
		if k.KeyID == keyID && keyID != "" {
			return k, nil
		}
		// keyIDs did not match or at least one was empty (if later, then it could be a match)
		if k.KeyID == "" || keyID == "" {
			validKeys = append(validKeys, k)
		}
	}
	if len(validKeys) == 1 {
		return validKeys[0], nil
	}
	if len(validKeys) > 1 {
		return key, ErrKeyMultiple
	}
	return key, ErrKeyNone
}

// algToKeyType reports if the key can be used with the signature
// or key management algorithm.
func algToKeyType(key any, alg string) bool {
	if alg == "" {
		return false
	}
	if alg == string(jose.EdDSA) {
		switch key.(type) {
		case ed25519.PublicKey, ed25519.PrivateKey:
			return true
		}
		return false
	}
	switch alg[0] {
	case 'R', 'P': // RS*, PS*, RSA1_5, RSA-OAEP*
		switch key.(type) {
		case *rsa.PublicKey, *rsa.PrivateKey:
			return true
		}
	case 'E': // ES*, ECDH-ES*
		switch key.(type) {
		case *ecdsa.PublicKey, *ecdsa.PrivateKey:
			return true
		}
	case 'H', 'A', 'd': // HS*, A*KW, dir
		_, ok := key.([]byte)
		return ok
	}
	return false
}

func containsString(list []string, needle string) bool {
	for _, s := range list {
		if s == needle {
			return true
		}
	}
	return false
}
