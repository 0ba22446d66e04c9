package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/mocks"
	"storybook-server/internal/models"
	"storybook-server/internal/pipeline"
	"storybook-server/internal/service"
)

func pipelineRequest(includeImages bool) *models.StoryRequest {
	return &models.StoryRequest{
		Genre:         "fantasy",
		Protagonist:   "Mira",
		Setting:       "a forest",
		Conflict:      "a storm",
		Tone:          "whimsical",
		PageCount:     2,
		TextLength:    models.TextLengthMedium,
		IncludeImages: includeImages,
		ArtStyle:      "watercolor",
	}
}

func pipelineStory() *models.GeneratedStory {
	return &models.GeneratedStory{
		Title: "The Storm",
		Pages: []string{"Mira walked into the forest.", "The storm passed."},
	}
}

type progressRecorder struct {
	values   []int
	messages []string
}

func (r *progressRecorder) report(progress int, message string) {
	r.values = append(r.values, progress)
	r.messages = append(r.messages, message)
}

func TestPipelineRun_WithImages(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	deriver := mocks.NewMockImagePromptDeriver(t)
	images := mocks.NewMockImageClient(t)
	books := mocks.NewMockBookRepository(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(true)
	story := pipelineStory()

	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).Return(story).Once()
	deriver.On("DerivePrompts", story, req).Return([]string{"prompt one", "prompt two"}).Once()

	images.On("GenerateImage", mock.Anything, mock.Anything, req, models.PlaceholderTitleImageURL, mock.Anything).
		Return(models.ImageResult{URL: "https://img.example/cover.png", Prompt: "cover"}).Once()
	images.On("GenerateImage", mock.Anything, "prompt one", req, models.PlaceholderPageImageURL, mock.Anything).
		Return(models.ImageResult{URL: "https://img.example/1.png", Prompt: "prompt one"}).Once()
	images.On("GenerateImage", mock.Anything, "prompt two", req, models.PlaceholderPageImageURL, mock.Anything).
		Return(models.ImageResult{URL: "https://img.example/2.png", Prompt: "prompt two"}).Once()

	books.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.CompletionNotification) bool {
		return n.Status == "completed" && n.Title == "The Storm" && n.PageCount == 2
	})).Return(nil).Once()

	p := pipeline.New(storyGen, deriver, images, books, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "The Storm", book.Story.Title)
	require.NotNil(t, book.Cover)
	assert.Equal(t, "https://img.example/cover.png", book.Cover.URL)
	require.Len(t, book.Images, 2)
	assert.Equal(t, "https://img.example/2.png", book.Images[1].URL)

	// Прогресс монотонный и доходит до 100
	require.NotEmpty(t, rec.values)
	for i := 1; i < len(rec.values); i++ {
		assert.GreaterOrEqual(t, rec.values[i], rec.values[i-1])
	}
	assert.Equal(t, 100, rec.values[len(rec.values)-1])

	storyGen.AssertExpectations(t)
	deriver.AssertExpectations(t)
	images.AssertExpectations(t)
	books.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPipelineRun_AllImagesFallBackToPlaceholders(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	deriver := mocks.NewMockImagePromptDeriver(t)
	images := mocks.NewMockImageClient(t)
	books := mocks.NewMockBookRepository(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(true)
	req.PageCount = 3
	req.ArtStyle = "anime-manga"
	story := &models.GeneratedStory{
		Title: "The Storm",
		Pages: []string{"Mira walked into the forest.", "The wind rose.", "The storm passed."},
	}
	prompts := []string{"prompt one", "prompt two", "prompt three"}

	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).Return(story).Once()
	deriver.On("DerivePrompts", story, req).Return(prompts).Once()

	// Генератор изображений недоступен: каждый вызов отдает заглушку
	images.On("GenerateImage", mock.Anything, mock.Anything, req, models.PlaceholderTitleImageURL, mock.Anything).
		Return(models.ImageResult{URL: models.PlaceholderTitleImageURL, Prompt: "cover"}).Once()
	for _, prompt := range prompts {
		images.On("GenerateImage", mock.Anything, prompt, req, models.PlaceholderPageImageURL, mock.Anything).
			Return(models.ImageResult{URL: models.PlaceholderPageImageURL, Prompt: prompt}).Once()
	}

	books.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.CompletionNotification) bool {
		return n.Status == "completed" && n.PageCount == 3
	})).Return(nil).Once()

	p := pipeline.New(storyGen, deriver, images, books, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.NoError(t, err)
	require.NotNil(t, book)

	// Обложка плюс три страницы, все с заглушками вместо иллюстраций
	require.NotNil(t, book.Cover)
	require.Len(t, book.Images, 3)
	collected := []models.ImageResult{*book.Cover}
	collected = append(collected, book.Images...)
	require.Len(t, collected, 4)
	for i, result := range collected {
		assert.True(t, models.IsPlaceholderImage(result.URL), "результат %d должен быть заглушкой", i)
	}

	// Отказ генератора изображений не мешает дойти до 100
	require.NotEmpty(t, rec.values)
	for i := 1; i < len(rec.values); i++ {
		assert.GreaterOrEqual(t, rec.values[i], rec.values[i-1])
	}
	assert.Equal(t, 100, rec.values[len(rec.values)-1])

	images.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPipelineRun_WithoutImages(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	deriver := mocks.NewMockImagePromptDeriver(t)
	images := mocks.NewMockImageClient(t)
	books := mocks.NewMockBookRepository(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(false)
	story := pipelineStory()

	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).Return(story).Once()
	books.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	p := pipeline.New(storyGen, deriver, images, books, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.NoError(t, err)
	assert.Nil(t, book.Cover)
	assert.Empty(t, book.Images)

	images.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deriver.AssertNotCalled(t, "DerivePrompts", mock.Anything, mock.Anything)
	assert.Contains(t, rec.values, 80)
	assert.Equal(t, 100, rec.values[len(rec.values)-1])
}

func TestPipelineRun_SaveFailureDoesNotFailRun(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	books := mocks.NewMockBookRepository(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(false)
	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).Return(pipelineStory()).Once()
	books.On("Save", mock.Anything, mock.Anything).Return(errors.New("база недоступна")).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.CompletionNotification) bool {
		return n.Status == "completed"
	})).Return(nil).Once()

	p := pipeline.New(storyGen, nil, nil, books, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.NoError(t, err)
	require.NotNil(t, book)
	notifier.AssertExpectations(t)
}

func TestPipelineRun_NilBookStore(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(false)
	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).Return(pipelineStory()).Once()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	p := pipeline.New(storyGen, nil, nil, nil, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.NoError(t, err)
	require.NotNil(t, book)
}

func TestPipelineRun_PanicBecomesFailedNotification(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	notifier := mocks.NewMockNotifier(t)

	req := pipelineRequest(false)
	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return((*models.GeneratedStory)(nil)).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.CompletionNotification) bool {
		return n.Status == "failed" && n.Error != ""
	})).Return(nil).Once()

	p := pipeline.New(storyGen, nil, nil, nil, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(context.Background(), uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.Error(t, err)
	assert.Nil(t, book)
	notifier.AssertExpectations(t)
}

func TestPipelineRun_CancelledContext(t *testing.T) {
	storyGen := mocks.NewMockStoryGenerator(t)
	notifier := mocks.NewMockNotifier(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := pipelineRequest(false)
	storyGen.On("GenerateStoryText", mock.Anything, req, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(pipelineStory()).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n service.CompletionNotification) bool {
		return n.Status == "failed"
	})).Return(nil).Once()

	p := pipeline.New(storyGen, nil, nil, nil, notifier, zap.NewNop())

	rec := &progressRecorder{}
	book, err := p.Run(ctx, uuid.New(), req, models.Settings{CreativityLevel: 70}, rec.report, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, book)
	notifier.AssertExpectations(t)
}
