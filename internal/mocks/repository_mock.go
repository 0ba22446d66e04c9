package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storybook-server/internal/models"
	"storybook-server/internal/repository"
)

// MockBookRepository is a mock type for the BookRepository type
type MockBookRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, book
func (_m *MockBookRepository) Save(ctx context.Context, book *models.StoryBook) error {
	ret := _m.Called(ctx, book)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockBookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBook, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.StoryBook
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryBook)
	}

	return r0, ret.Error(1)
}

// List provides a mock function with given fields: ctx, limit
func (_m *MockBookRepository) List(ctx context.Context, limit int) ([]*models.StoryBook, error) {
	ret := _m.Called(ctx, limit)

	var r0 []*models.StoryBook
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.StoryBook)
	}

	return r0, ret.Error(1)
}

// UpdatePageImage provides a mock function with given fields: ctx, id, pageIndex, image
func (_m *MockBookRepository) UpdatePageImage(ctx context.Context, id uuid.UUID, pageIndex int, image models.ImageResult) error {
	ret := _m.Called(ctx, id, pageIndex, image)
	return ret.Error(0)
}

// NewMockBookRepository creates a new instance of MockBookRepository. It also registers a testing interface on the mock.
func NewMockBookRepository(t interface {
	mock.TestingT
	Helper()
}) *MockBookRepository {
	m := &MockBookRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.BookRepository = (*MockBookRepository)(nil)

// MockSettingsRepository is a mock type for the SettingsRepository type
type MockSettingsRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, settings
func (_m *MockSettingsRepository) Save(ctx context.Context, settings models.Settings) error {
	ret := _m.Called(ctx, settings)
	return ret.Error(0)
}

// Load provides a mock function with given fields: ctx, defaults
func (_m *MockSettingsRepository) Load(ctx context.Context, defaults models.Settings) (models.Settings, error) {
	ret := _m.Called(ctx, defaults)

	var r0 models.Settings
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.Settings)
	}

	return r0, ret.Error(1)
}

// NewMockSettingsRepository creates a new instance of MockSettingsRepository. It also registers a testing interface on the mock.
func NewMockSettingsRepository(t interface {
	mock.TestingT
	Helper()
}) *MockSettingsRepository {
	m := &MockSettingsRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.SettingsRepository = (*MockSettingsRepository)(nil)
