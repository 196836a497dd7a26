package mocks

import (
	"github.com/benmeehan/live-location/pkg/identity"
	"github.com/stretchr/testify/mock"
)

// MockUserInfo is a mock implementation of the UserInfoInterface
type MockUserInfo struct {
	mock.Mock
}

func (m *MockUserInfo) LoadUserInfo() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUserInfo) GetUserID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUserInfo) GetIdentity() identity.Identity {
	args := m.Called()
	return args.Get(0).(identity.Identity)
}
