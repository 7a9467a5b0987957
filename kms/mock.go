package kms

import (
	"github.com/ruteri/waas-signing-service/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockKeyStore mocks the KeyStore interface
type MockKeyStore struct {
	mock.Mock
}

// Get mocks the Get method
func (m *MockKeyStore) Get(userID interfaces.UserID) (interfaces.SigningKey, error) {
	args := m.Called(userID)
	key, _ := args.Get(0).(interfaces.SigningKey)
	return key, args.Error(1)
}

// Set mocks the Set method
func (m *MockKeyStore) Set(userID interfaces.UserID, key interfaces.SigningKey) error {
	args := m.Called(userID, key)
	return args.Error(0)
}

// Discard mocks the Discard method
func (m *MockKeyStore) Discard(userID interfaces.UserID) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockSigningBackend mocks the SigningBackend interface
type MockSigningBackend struct {
	mock.Mock
}

// GenerateKey mocks the GenerateKey method
func (m *MockSigningBackend) GenerateKey() (interfaces.SigningKey, error) {
	args := m.Called()
	key, _ := args.Get(0).(interfaces.SigningKey)
	return key, args.Error(1)
}

// Sign mocks the Sign method
func (m *MockSigningBackend) Sign(message []byte, key interfaces.SigningKey) (string, error) {
	args := m.Called(message, key)
	return args.String(0), args.Error(1)
}
