package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storybook-server/internal/service"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateText provides a mock function with given fields: ctx, systemPrompt, userInput, params
func (_m *MockAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params service.GenerationParams) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, systemPrompt, userInput, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, service.GenerationParams) string); ok {
		r0 = rf(ctx, systemPrompt, userInput, params)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 service.UsageInfo
	if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}

	return r0, r1, ret.Error(2)
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock.
func NewMockAIClient(t interface {
	mock.TestingT
	Helper()
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.AIClient = (*MockAIClient)(nil)
