package registry

import (
	"github.com/ruteri/waas-signing-service/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockCredentialStore mocks the CredentialStore interface
type MockCredentialStore struct {
	mock.Mock
}

// Validate mocks the Validate method
func (m *MockCredentialStore) Validate(username, passwordHash string) (interfaces.UserID, error) {
	args := m.Called(username, passwordHash)
	return args.Get(0).(interfaces.UserID), args.Error(1)
}

// Authenticate mocks the Authenticate method
func (m *MockCredentialStore) Authenticate(username, password string) (interfaces.UserID, error) {
	args := m.Called(username, password)
	return args.Get(0).(interfaces.UserID), args.Error(1)
}

// LookupName mocks the LookupName method
func (m *MockCredentialStore) LookupName(userID interfaces.UserID) (string, bool) {
	args := m.Called(userID)
	return args.String(0), args.Bool(1)
}

// MockSessionRegistry mocks the SessionRegistry interface
type MockSessionRegistry struct {
	mock.Mock
}

// Create mocks the Create method
func (m *MockSessionRegistry) Create(userID interfaces.UserID) (interfaces.SessionToken, error) {
	args := m.Called(userID)
	return args.Get(0).(interfaces.SessionToken), args.Error(1)
}

// Resolve mocks the Resolve method
func (m *MockSessionRegistry) Resolve(token interfaces.SessionToken) (interfaces.UserID, bool) {
	args := m.Called(token)
	return args.Get(0).(interfaces.UserID), args.Bool(1)
}

// Destroy mocks the Destroy method
func (m *MockSessionRegistry) Destroy(token interfaces.SessionToken) {
	m.Called(token)
}
