package mocks

import (
	"context"

	"docportal/internal/model"
	"docportal/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockProfileRepository struct {
	mock.Mock
}

var _ repository.ProfileRepository = (*MockProfileRepository)(nil)

func (m *MockProfileRepository) Create(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	args := m.Called(ctx, p)
	if f, ok := args.Get(0).(func(context.Context, *model.Profile) *model.Profile); ok {
		return f(ctx, p), args.Error(1)
	}
	return m.profile(args)
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	return m.profile(m.Called(ctx, id))
}

func (m *MockProfileRepository) FindFirmByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return m.profile(m.Called(ctx, email))
}

func (m *MockProfileRepository) FindFirmByID(ctx context.Context, id string) (*model.Profile, error) {
	return m.profile(m.Called(ctx, id))
}

func (m *MockProfileRepository) ListClients(ctx context.Context, firmID string) ([]model.Profile, error) {
	args := m.Called(ctx, firmID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Profile), args.Error(1)
}

func (m *MockProfileRepository) profile(args mock.Arguments) (*model.Profile, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}
