package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storybook-server/internal/models"
	"storybook-server/internal/service"
)

// MockImageClient is a mock type for the ImageClient type
type MockImageClient struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, basePrompt, req, placeholderURL, trace
func (_m *MockImageClient) GenerateImage(ctx context.Context, basePrompt string, req *models.StoryRequest, placeholderURL string, trace service.TraceFunc) models.ImageResult {
	ret := _m.Called(ctx, basePrompt, req, placeholderURL, trace)

	var r0 models.ImageResult
	if rf, ok := ret.Get(0).(func(context.Context, string, *models.StoryRequest, string, service.TraceFunc) models.ImageResult); ok {
		r0 = rf(ctx, basePrompt, req, placeholderURL, trace)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(models.ImageResult)
		}
	}

	return r0
}

// NewMockImageClient creates a new instance of MockImageClient. It also registers a testing interface on the mock.
func NewMockImageClient(t interface {
	mock.TestingT
	Helper()
}) *MockImageClient {
	m := &MockImageClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.ImageClient = (*MockImageClient)(nil)
