package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
)

var (
	ErrPEMDecode          = errors.New("PEM decode failed")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// BytesToPrivateKey parses a PEM encoded PKCS#1 or PKCS#8 private key
// and returns it together with the default signature algorithm for the key.
func BytesToPrivateKey(b []byte) (crypto.Signer, jose.SignatureAlgorithm, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, "", ErrPEMDecode
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return privateKey, jose.RS256, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, "", err
	}
	switch privateKey := key.(type) {
	case *rsa.PrivateKey:
		return privateKey, jose.RS256, nil
	case *ecdsa.PrivateKey:
		alg, err := ecdsaAlgorithm(privateKey.Curve)
		if err != nil {
			return nil, "", err
		}
		return privateKey, alg, nil
	case ed25519.PrivateKey:
		return privateKey, jose.EdDSA, nil
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
	}
}

func ecdsaAlgorithm(curve elliptic.Curve) (jose.SignatureAlgorithm, error) {
	switch curve {
	case elliptic.P256():
		return jose.ES256, nil
	case elliptic.P384():
		return jose.ES384, nil
	case elliptic.P521():
		return jose.ES512, nil
	default:
		return "", fmt.Errorf("%w: curve %s", ErrUnsupportedKeyType, curve.Params().Name)
	}
}
