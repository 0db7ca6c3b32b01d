package mocks

import (
	"context"

	"docsearch/internal/model"
	"docsearch/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func (m *MockDocumentService) Upload(ctx context.Context, projectID string, uploads []model.Upload) (*model.UploadOutcome, error) {
	args := m.Called(ctx, projectID, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadOutcome), args.Error(1)
}

func (m *MockDocumentService) Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

func (m *MockDocumentService) Brief(ctx context.Context, projectID string, uploads []model.Upload) (*model.Brief, error) {
	args := m.Called(ctx, projectID, uploads)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Brief), args.Error(1)
}

func (m *MockDocumentService) ListFiles(ctx context.Context, projectID string) (*model.ProjectFileStore, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProjectFileStore), args.Error(1)
}

func (m *MockDocumentService) History(ctx context.Context, projectID string, limit, offset int) (*service.HistoryResult, error) {
	args := m.Called(ctx, projectID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.HistoryResult), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, projectID, fileID string) (string, error) {
	args := m.Called(ctx, projectID, fileID)
	return args.String(0), args.Error(1)
}
