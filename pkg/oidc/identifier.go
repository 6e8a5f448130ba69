package oidc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidValue is returned when an identifier is constructed from an empty value.
var ErrInvalidValue = errors.New("invalid value")

type (
	ClientID string
	State    string
	Nonce    string
	Subject  string
	Issuer   string
)

func newIdentifier[T ~string](name, value string) (T, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: the %s must not be empty", ErrInvalidValue, name)
	}
	return T(value), nil
}

func NewClientID(value string) (ClientID, error) {
	return newIdentifier[ClientID]("client ID", value)
}

func NewState(value string) (State, error) {
	return newIdentifier[State]("state", value)
}

func NewNonce(value string) (Nonce, error) {
	return newIdentifier[Nonce]("nonce", value)
}

func NewSubject(value string) (Subject, error) {
	return newIdentifier[Subject]("subject", value)
}

func NewIssuer(value string) (Issuer, error) {
	return newIdentifier[Issuer]("issuer", value)
}

// GenerateState returns a new random state value.
func GenerateState() State {
	return State(uuid.NewString())
}

// GenerateNonce returns a new random nonce value.
func GenerateNonce() Nonce {
	return Nonce(uuid.NewString())
}

func (c ClientID) String() string { return string(c) }
func (s State) String() string { return string(s) }
func (n Nonce) String() string { return string(n) }
func (s Subject) String() string { return string(s) }
func (i Issuer) String() string { return string(i) }
