package mocks

import (
	"context"

	"docportal/internal/model"
	"docportal/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockAccountRepository struct {
	mock.Mock
}

var _ repository.AccountRepository = (*MockAccountRepository)(nil)

func (m *MockAccountRepository) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	args := m.Called(ctx, acc)
	if f, ok := args.Get(0).(func(context.Context, *model.Account) *model.Account); ok {
		return f(ctx, acc), args.Error(1)
	}
	return m.account(args)
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return m.account(m.Called(ctx, id))
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountRepository) account(args mock.Arguments) (*model.Account, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}
