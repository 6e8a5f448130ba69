package mock

import (
	"testing"

	"github.com/golang/mock/gomock"
)

func NewKeySet(t *testing.T) *MockKeySet {
	return NewMockKeySet(gomock.NewController(t))
}

func NewDecryptionKeySet(t *testing.T) *MockDecryptionKeySet {
	return NewMockDecryptionKeySet(gomock.NewController(t))
}

func NewKeySelector(t *testing.T) *MockKeySelector {
	return NewMockKeySelector(gomock.NewController(t))
}
