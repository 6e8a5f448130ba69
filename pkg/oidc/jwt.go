package oidc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// JWTKind tells how a JWT is secured.
type JWTKind int

const (
	JWTPlain JWTKind = iota + 1
	JWTSigned
	JWTEncrypted
)

func (k JWTKind) String() string {
	switch k {
	case JWTPlain:
		return "plain"
	case JWTSigned:
		return "signed"
	case JWTEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// JOSEHeader holds the header members needed to
// dispatch a token to the right verification stage.
type JOSEHeader struct {
	Algorithm   string `json:"alg"`
	Encryption  string `json:"enc,omitempty"`
	ContentType string `json:"cty,omitempty"`
	KeyID       string `json:"kid,omitempty"`
	Type        string `json:"typ,omitempty"`
}

// IsNestedJWT reports if the payload of the token is a JWT itself.
func (h *JOSEHeader) IsNestedJWT() bool {
	return strings.EqualFold(h.ContentType, "JWT")
}

// ParseJOSEHeader decodes the header of a compact serialized token
// and classifies the token as plain, signed or encrypted.
func ParseJOSEHeader(token string) (JWTKind, *JOSEHeader, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 && len(parts) != 5 {
		return 0, nil, fmt.Errorf("%w: token contains an invalid number of segments", ErrParse)
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: malformed jwt header: %v", ErrParse, err)
	}
	header := new(JOSEHeader)
	if err = json.Unmarshal(data, header); err != nil {
		return 0, nil, fmt.Errorf("%w: malformed jwt header: %v", ErrParse, err)
	}
	if header.Algorithm == "" {
		return 0, nil, fmt.Errorf("%w: missing alg header", ErrParse)
	}
	if len(parts) == 5 {
		if header.Encryption == "" {
			return 0, nil, fmt.Errorf("%w: missing enc header", ErrParse)
		}
		return JWTEncrypted, header, nil
	}
	if header.Algorithm == "none" {
		if parts[2] != "" {
			return 0, nil, fmt.Errorf("%w: unsecured jwt must not have a signature", ErrParse)
		}
		return JWTPlain, header, nil
	}
	return JWTSigned, header, nil
}

// ParseToken decodes the payload of a signed or plain token into claims,
// without checking the signature.
func ParseToken(tokenString string, claims any) ([]byte, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token contains an invalid number of segments", ErrParse)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed jwt payload: %v", ErrParse, err)
	}
	if err = json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: malformed jwt payload: %v", ErrParse, err)
	}
	return payload, nil
}
