package mocks

import (
	"context"

	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockClientService struct {
	mock.Mock
}

var _ service.ClientService = (*MockClientService)(nil)

func (m *MockClientService) ListClients(ctx context.Context, viewer *model.Identity) ([]model.Profile, error) {
	args := m.Called(ctx, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Profile), args.Error(1)
}

func (m *MockClientService) WatchClients(viewer *model.Identity, fn func(realtime.Event)) (*realtime.Subscription, error) {
	args := m.Called(viewer, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*realtime.Subscription), args.Error(1)
}
