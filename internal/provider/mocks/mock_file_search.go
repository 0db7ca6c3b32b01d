package mocks

import (
	"context"

	"docsearch/internal/provider"

	"github.com/stretchr/testify/mock"
)

type MockFileSearch struct {
	mock.Mock
}

func (m *MockFileSearch) CreateStore(ctx context.Context, displayName string) (string, error) {
	args := m.Called(ctx, displayName)
	return args.String(0), args.Error(1)
}

func (m *MockFileSearch) UploadFile(ctx context.Context, req provider.UploadRequest) (string, error) {
	args := m.Called(ctx, req)
	if f, ok := args.Get(0).(func(context.Context, provider.UploadRequest) string); ok {
		return f(ctx, req), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *MockFileSearch) Query(ctx context.Context, req provider.QueryRequest) (provider.Answer, error) {
	args := m.Called(ctx, req)
	if f, ok := args.Get(0).(func(context.Context, provider.QueryRequest) provider.Answer); ok {
		return f(ctx, req), args.Error(1)
	}
	return args.Get(0).(provider.Answer), args.Error(1)
}
