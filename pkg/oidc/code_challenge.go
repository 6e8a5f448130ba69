package oidc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/zitadel/oidc-core/pkg/crypto"
)

const (
	CodeChallengeMethodPlain CodeChallengeMethod = "plain"
	CodeChallengeMethodS256  CodeChallengeMethod = "S256"
)

type CodeChallengeMethod string

// ParseCodeChallengeMethod accepts plain and S256.
// An empty value defaults to plain, as defined in RFC 7636.
func ParseCodeChallengeMethod(s string) (CodeChallengeMethod, error) {
	switch m := CodeChallengeMethod(s); m {
	case "":
		return CodeChallengeMethodPlain, nil
	case CodeChallengeMethodPlain, CodeChallengeMethodS256:
		return m, nil
	default:
		return "", fmt.Errorf("Unsupported code challenge method: %s", s)
	}
}

type CodeChallenge struct {
	Challenge string
	Method    CodeChallengeMethod
}

// NewCodeVerifier returns a random code verifier of 43 characters.
func NewCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func NewSHACodeChallenge(code string) string {
	return crypto.HashString(sha256.New(), code, false)
}

func VerifyCodeChallenge(c *CodeChallenge, codeVerifier string) bool {
	if c == nil {
		return false
	}
	if c.Method == CodeChallengeMethodS256 {
		codeVerifier = NewSHACodeChallenge(codeVerifier)
	}
	return codeVerifier == c.Challenge
}
