package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	delivery "storybook-server/internal/delivery/http"
	"storybook-server/internal/models"
	"storybook-server/internal/pipeline"
	"storybook-server/internal/service"
	"storybook-server/pkg/taskmanager"
)

// MockStoryGenerator is a mock type for the StoryGenerator type
type MockStoryGenerator struct {
	mock.Mock
}

// GenerateStoryText provides a mock function with given fields: ctx, req, settings, trace
func (_m *MockStoryGenerator) GenerateStoryText(ctx context.Context, req *models.StoryRequest, settings models.Settings, trace service.TraceFunc) *models.GeneratedStory {
	ret := _m.Called(ctx, req, settings, trace)

	var r0 *models.GeneratedStory
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GeneratedStory)
	}

	return r0
}

// NewMockStoryGenerator creates a new instance of MockStoryGenerator. It also registers a testing interface on the mock.
func NewMockStoryGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockStoryGenerator {
	m := &MockStoryGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ pipeline.StoryGenerator = (*MockStoryGenerator)(nil)

// MockImagePromptDeriver is a mock type for the ImagePromptDeriver type
type MockImagePromptDeriver struct {
	mock.Mock
}

// DerivePrompts provides a mock function with given fields: story, req
func (_m *MockImagePromptDeriver) DerivePrompts(story *models.GeneratedStory, req *models.StoryRequest) []string {
	ret := _m.Called(story, req)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0
}

// NewMockImagePromptDeriver creates a new instance of MockImagePromptDeriver. It also registers a testing interface on the mock.
func NewMockImagePromptDeriver(t interface {
	mock.TestingT
	Helper()
}) *MockImagePromptDeriver {
	m := &MockImagePromptDeriver{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.ImagePromptDeriver = (*MockImagePromptDeriver)(nil)

// MockPipelineRunner is a mock type for the PipelineRunner type
type MockPipelineRunner struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, taskID, req, settings, report, trace
func (_m *MockPipelineRunner) Run(ctx context.Context, taskID uuid.UUID, req *models.StoryRequest, settings models.Settings, report taskmanager.ProgressFunc, trace service.TraceFunc) (*models.StoryBook, error) {
	ret := _m.Called(ctx, taskID, req, settings, report, trace)

	var r0 *models.StoryBook
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryBook)
	}

	return r0, ret.Error(1)
}

// NewMockPipelineRunner creates a new instance of MockPipelineRunner. It also registers a testing interface on the mock.
func NewMockPipelineRunner(t interface {
	mock.TestingT
	Helper()
}) *MockPipelineRunner {
	m := &MockPipelineRunner{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ delivery.PipelineRunner = (*MockPipelineRunner)(nil)
