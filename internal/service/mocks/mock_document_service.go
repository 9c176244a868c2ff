package mocks

import (
	"context"
	"io"

	"docportal/internal/document"
	"docportal/internal/model"
	"docportal/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func (m *MockDocumentService) Upload(ctx context.Context, viewer *model.Identity, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, viewer, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, viewer *model.Identity, ownerID, id string) (*model.Document, error) {
	args := m.Called(ctx, viewer, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*service.DocumentListResult, error) {
	args := m.Called(ctx, viewer, ownerID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Watch(ctx context.Context, viewer *model.Identity, ownerID string) (*document.LiveList, error) {
	args := m.Called(ctx, viewer, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.LiveList), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, viewer *model.Identity, id string) error {
	args := m.Called(ctx, viewer, id)
	return args.Error(0)
}

func (m *MockDocumentService) Export(ctx context.Context, viewer *model.Identity, ownerID string, f document.Filter) (*service.ExportResult, error) {
	args := m.Called(ctx, viewer, ownerID, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportResult), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, viewer *model.Identity, ownerID, id string) (string, error) {
	args := m.Called(ctx, viewer, ownerID, id)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, viewer *model.Identity, ownerID, id string) (io.ReadCloser, *model.Document, error) {
	args := m.Called(ctx, viewer, ownerID, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.Document), args.Error(2)
}

func (m *MockDocumentService) CanView(ctx context.Context, viewer *model.Identity, ownerID string) error {
	args := m.Called(ctx, viewer, ownerID)
	return args.Error(0)
}
