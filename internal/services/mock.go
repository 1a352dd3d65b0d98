package services

import (
	"eventu/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockBackendClient is a mock implementation of BackendClient for tests
type MockBackendClient struct {
	mock.Mock
}

func (m *MockBackendClient) Login(email, password string) (*models.LoginResult, error) {
	args := m.Called(email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoginResult), args.Error(1)
}

func (m *MockBackendClient) VerifyToken(token string) (bool, error) {
	args := m.Called(token)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackendClient) InvalidateSession(token string) {
	m.Called(token)
}
