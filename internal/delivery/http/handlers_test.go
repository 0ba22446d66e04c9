package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	delivery "storybook-server/internal/delivery/http"
	"storybook-server/internal/mocks"
	"storybook-server/internal/models"
	"storybook-server/internal/render"
	"storybook-server/internal/repository"
	"storybook-server/pkg/taskmanager"
)

type testEnv struct {
	router   *gin.Engine
	tasks    *taskmanager.TaskManager
	runner   *mocks.MockPipelineRunner
	books    *mocks.MockBookRepository
	settings *mocks.MockSettingsRepository
	deriver  *mocks.MockImagePromptDeriver
	images   *mocks.MockImageClient
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AIModel:     "test-model",
		AIAPIKey:    "text-key",
		ImageAPIKey: "image-key",
	}

	env := &testEnv{
		tasks:    taskmanager.New(taskmanager.Config{MaxTasks: 1}, zap.NewNop()),
		runner:   mocks.NewMockPipelineRunner(t),
		books:    mocks.NewMockBookRepository(t),
		settings: mocks.NewMockSettingsRepository(t),
		deriver:  mocks.NewMockImagePromptDeriver(t),
		images:   mocks.NewMockImageClient(t),
		cfg:      cfg,
	}
	t.Cleanup(env.tasks.Close)

	renderer, err := render.NewHTMLRenderer()
	require.NoError(t, err)

	handler := delivery.New(cfg, env.tasks, env.runner, env.books, env.settings, env.deriver, env.images, renderer, zap.NewNop())

	env.router = gin.New()
	handler.RegisterRoutes(env.router)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func validStoryRequest() map[string]interface{} {
	return map[string]interface{}{
		"genre":          "fantasy",
		"protagonist":    "Mira",
		"setting":        "a forest",
		"conflict":       "a storm",
		"tone":           "whimsical",
		"page_count":     2,
		"text_length":    "medium",
		"include_images": false,
	}
}

func storedBook() *models.StoryBook {
	return &models.StoryBook{
		ID: uuid.New(),
		Request: models.StoryRequest{
			Genre:       "fantasy",
			Protagonist: "Mira",
			Setting:     "a forest",
			Conflict:    "a storm",
			Tone:        "whimsical",
			PageCount:   2,
			TextLength:  models.TextLengthMedium,
		},
		Story: models.GeneratedStory{
			Title: "The Storm",
			Pages: []string{"Page one text.", "Page two text."},
		},
		Images: []models.ImageResult{
			{URL: "https://img.example/1.png", Prompt: "p1"},
			{URL: "https://img.example/2.png", Prompt: "p2"},
		},
		CreatedAt: time.Now(),
	}
}

func TestCreateStory_Accepted(t *testing.T) {
	env := newTestEnv(t)

	env.settings.On("Load", mock.Anything, mock.Anything).Return(models.Settings{Model: "test-model", CreativityLevel: 70}, nil).Once()

	book := storedBook()
	env.runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(book, nil).Once()

	rec := env.do(t, http.MethodPost, "/api/v1/stories", validStoryRequest())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		TaskID uuid.UUID `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEqual(t, uuid.UUID{}, accepted.TaskID)

	// Дожидаемся завершения задачи через API статуса
	deadline := time.Now().Add(2 * time.Second)
	for {
		statusRec := env.do(t, http.MethodGet, "/api/v1/tasks/"+accepted.TaskID.String(), nil)
		require.Equal(t, http.StatusOK, statusRec.Code)

		var snapshot struct {
			Status   string `json:"status"`
			Progress int    `json:"progress"`
			Result   struct {
				BookID    uuid.UUID `json:"book_id"`
				Title     string    `json:"title"`
				PageCount int       `json:"page_count"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &snapshot))

		if snapshot.Status == "completed" {
			assert.Equal(t, 100, snapshot.Progress)
			assert.Equal(t, book.ID, snapshot.Result.BookID)
			assert.Equal(t, "The Storm", snapshot.Result.Title)
			assert.Equal(t, 2, snapshot.Result.PageCount)
			break
		}
		require.True(t, time.Now().Before(deadline), "задача не завершилась вовремя")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateStory_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	body := validStoryRequest()
	delete(body, "protagonist")

	rec := env.do(t, http.MethodPost, "/api/v1/stories", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateStory_ImagesRequireArtStyle(t *testing.T) {
	env := newTestEnv(t)

	body := validStoryRequest()
	body["include_images"] = true

	rec := env.do(t, http.MethodPost, "/api/v1/stories", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateStory_NoAPIKey(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.AIAPIKey = ""

	rec := env.do(t, http.MethodPost, "/api/v1/stories", validStoryRequest())
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "text_api_configured")
}

func TestCreateStory_ConflictWhileRunning(t *testing.T) {
	env := newTestEnv(t)

	env.settings.On("Load", mock.Anything, mock.Anything).Return(models.Settings{CreativityLevel: 70}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	env.runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(storedBook(), nil).Once()

	first := env.do(t, http.MethodPost, "/api/v1/stories", validStoryRequest())
	require.Equal(t, http.StatusAccepted, first.Code)
	<-started

	second := env.do(t, http.MethodPost, "/api/v1/stories", validStoryRequest())
	assert.Equal(t, http.StatusConflict, second.Code)

	close(release)
}

func TestGetTaskStatus_BadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStory(t *testing.T) {
	env := newTestEnv(t)
	book := storedBook()

	env.books.On("GetByID", mock.Anything, book.ID).Return(book, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/stories/"+book.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "The Storm")
}

func TestGetStory_NotFound(t *testing.T) {
	env := newTestEnv(t)
	unknownID := uuid.New()

	env.books.On("GetByID", mock.Anything, unknownID).Return(nil, repository.ErrNotFound).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/stories/"+unknownID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStoryHTML(t *testing.T) {
	env := newTestEnv(t)
	book := storedBook()

	env.books.On("GetByID", mock.Anything, book.ID).Return(book, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/stories/"+book.ID.String()+"/html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "The Storm")
	assert.Contains(t, rec.Body.String(), "Page one text.")
}

func TestListStories(t *testing.T) {
	env := newTestEnv(t)

	env.books.On("List", mock.Anything, 20).Return([]*models.StoryBook{storedBook()}, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stories")
}

func TestRegeneratePageImage(t *testing.T) {
	env := newTestEnv(t)
	book := storedBook()

	env.books.On("GetByID", mock.Anything, book.ID).Return(book, nil).Once()
	env.deriver.On("DerivePrompts", &book.Story, &book.Request).Return([]string{"new prompt one", "new prompt two"}).Once()

	regenerated := models.ImageResult{URL: "https://img.example/new.png", Prompt: "new prompt two"}
	env.images.On("GenerateImage", mock.Anything, "new prompt two", &book.Request, models.PlaceholderPageImageURL, mock.Anything).
		Return(regenerated).Once()
	env.books.On("UpdatePageImage", mock.Anything, book.ID, 1, regenerated).Return(nil).Once()

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stories/%s/pages/2/image", book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://img.example/new.png")
}

func TestRegeneratePageImage_BadPage(t *testing.T) {
	env := newTestEnv(t)
	book := storedBook()

	env.books.On("GetByID", mock.Anything, book.ID).Return(book, nil)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stories/%s/pages/0/image", book.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stories/%s/pages/3/image", book.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegeneratePageImage_NoImageKey(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ImageAPIKey = ""
	book := storedBook()

	env.books.On("GetByID", mock.Anything, book.ID).Return(book, nil).Once()

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stories/%s/pages/1/image", book.ID), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAPIConfig(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, true, parsed["text_api_configured"])
	assert.Equal(t, true, parsed["image_api_configured"])
	assert.Equal(t, "test-model", parsed["model"])
	assert.NotContains(t, rec.Body.String(), "text-key", "ключи не возвращаются клиенту")
}

func TestGetAPIConfig_Unconfigured(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.AIAPIKey = ""

	rec := env.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestGetSettings(t *testing.T) {
	env := newTestEnv(t)

	env.settings.On("Load", mock.Anything, mock.MatchedBy(func(defaults models.Settings) bool {
		return defaults.Model == "test-model" && defaults.CreativityLevel == 70
	})).Return(models.Settings{Model: "test-model", CreativityLevel: 35}, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, float64(35), parsed["creativity_level"])
	assert.NotContains(t, rec.Body.String(), "api_key", "ключи не сериализуются")
}

func TestSaveSettings(t *testing.T) {
	env := newTestEnv(t)

	env.settings.On("Save", mock.Anything, models.Settings{CreativityLevel: 85}).Return(nil).Once()
	env.settings.On("Load", mock.Anything, mock.Anything).Return(models.Settings{Model: "test-model", CreativityLevel: 85}, nil).Once()

	rec := env.do(t, http.MethodPut, "/api/v1/settings", map[string]interface{}{"creativity_level": 85})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "85")
}

func TestSaveSettings_OutOfRange(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/settings", map[string]interface{}{"creativity_level": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
