// Package http содержит HTTP обработчики API генерации книг.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/models"
	"storybook-server/internal/render"
	"storybook-server/internal/repository"
	"storybook-server/internal/service"
	"storybook-server/pkg/taskmanager"
)

// Уровень креативности по умолчанию, пока пользователь не сохранил свой.
const defaultCreativityLevel = 70

// PipelineRunner запускает полный прогон генерации книги.
type PipelineRunner interface {
	Run(ctx context.Context, taskID uuid.UUID, req *models.StoryRequest, settings models.Settings, report taskmanager.ProgressFunc, trace service.TraceFunc) (*models.StoryBook, error)
}

// Handler представляет HTTP обработчик API.
type Handler struct {
	cfg      *config.Config
	tasks    taskmanager.ITaskManager
	runner   PipelineRunner
	books    repository.BookRepository
	settings repository.SettingsRepository
	deriver  service.ImagePromptDeriver
	images   service.ImageClient
	renderer render.BookRenderer
	logger   *zap.Logger
}

// New создает новый экземпляр обработчика.
func New(
	cfg *config.Config,
	tasks taskmanager.ITaskManager,
	runner PipelineRunner,
	books repository.BookRepository,
	settings repository.SettingsRepository,
	deriver service.ImagePromptDeriver,
	images service.ImageClient,
	renderer render.BookRenderer,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		tasks:    tasks,
		runner:   runner,
		books:    books,
		settings: settings,
		deriver:  deriver,
		images:   images,
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")

	api.POST("/stories", h.CreateStory)
	api.GET("/stories", h.ListStories)
	api.GET("/stories/:id", h.GetStory)
	api.GET("/stories/:id/html", h.GetStoryHTML)
	api.POST("/stories/:id/pages/:page/image", h.RegeneratePageImage)

	api.GET("/tasks/:id", h.GetTaskStatus)

	api.GET("/config", h.GetAPIConfig)
	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.SaveSettings)
}

// defaultSettings собирает настройки запуска из конфигурации.
func (h *Handler) defaultSettings() models.Settings {
	return models.Settings{
		Model:           h.cfg.AIModel,
		CreativityLevel: defaultCreativityLevel,
		APIKey:          h.cfg.AIAPIKey,
		ImageAPIKey:     h.cfg.ImageAPIKey,
	}
}

// loadSettings читает сохраненные настройки; при недоступном хранилище
// генерация идет на значениях по умолчанию.
func (h *Handler) loadSettings(ctx context.Context) models.Settings {
	settings, err := h.settings.Load(ctx, h.defaultSettings())
	if err != nil {
		h.logger.Warn("Не удалось прочитать настройки, используются значения по умолчанию", zap.Error(err))
		return h.defaultSettings()
	}
	return settings
}

// CreateStory валидирует запрос и запускает асинхронную генерацию книги.
func (h *Handler) CreateStory(c *gin.Context) {
	var req models.StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("неверный формат запроса: %v", err)})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.cfg.AIAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":               "API ключ текстовой генерации не настроен на сервере",
			"text_api_configured": false,
		})
		return
	}

	// Снимок настроек принадлежит запуску: сохранение настроек во время
	// генерации на идущий прогон не влияет
	settings := h.loadSettings(c.Request.Context())

	taskID, err := h.tasks.SubmitTask(c.Request.Context(), func(ctx context.Context, taskID uuid.UUID, report taskmanager.ProgressFunc) (interface{}, error) {
		trace := service.TraceFunc(func(kind, message string) {
			h.tasks.AppendTrace(taskID, "["+kind+"] "+message)
		})
		book, runErr := h.runner.Run(ctx, taskID, &req, settings, report, trace)
		if runErr != nil {
			return nil, runErr
		}
		return gin.H{
			"book_id":    book.ID,
			"title":      book.Story.Title,
			"page_count": len(book.Story.Pages),
		}, nil
	})
	if err != nil {
		if errors.Is(err, taskmanager.ErrTooManyTasks) {
			c.JSON(http.StatusConflict, gin.H{"error": "генерация уже выполняется, дождитесь завершения"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("не удалось запустить генерацию: %v", err)})
		return
	}

	h.logger.Info("Генерация книги запущена",
		zap.String("task_id", taskID.String()),
		zap.String("protagonist", req.Protagonist),
		zap.Int("page_count", req.PageCount),
		zap.Bool("include_images", req.IncludeImages))

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// GetTaskStatus возвращает состояние задачи генерации.
func (h *Handler) GetTaskStatus(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат идентификатора задачи"})
		return
	}

	snapshot, err := h.tasks.GetTask(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "задача не найдена"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// ListStories возвращает последние собранные книги.
func (h *Handler) ListStories(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	books, err := h.books.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("ошибка при получении списка книг: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stories": books})
}

// GetStory возвращает собранную книгу.
func (h *Handler) GetStory(c *gin.Context) {
	book, ok := h.bookByID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, book)
}

// GetStoryHTML отрисовывает книгу в HTML страницу.
func (h *Handler) GetStoryHTML(c *gin.Context) {
	book, ok := h.bookByID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, book); err != nil {
		h.logger.Error("Ошибка отрисовки книги",
			zap.String("book_id", book.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка отрисовки книги"})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// RegeneratePageImage перегенерирует иллюстрацию одной страницы.
// Номер страницы в пути начинается с 1.
func (h *Handler) RegeneratePageImage(c *gin.Context) {
	book, ok := h.bookByID(c)
	if !ok {
		return
	}

	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil || pageNumber < 1 || pageNumber > len(book.Story.Pages) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный номер страницы"})
		return
	}
	pageIndex := pageNumber - 1

	if h.cfg.ImageAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":                "API ключ генерации изображений не настроен на сервере",
			"image_api_configured": false,
		})
		return
	}

	prompts := h.deriver.DerivePrompts(&book.Story, &book.Request)
	result := h.images.GenerateImage(c.Request.Context(), prompts[pageIndex], &book.Request, models.PlaceholderPageImageURL, nil)

	if err := h.books.UpdatePageImage(c.Request.Context(), book.ID, pageIndex, result); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("ошибка сохранения иллюстрации: %v", err)})
		return
	}

	h.logger.Info("Иллюстрация страницы перегенерирована",
		zap.String("book_id", book.ID.String()),
		zap.Int("page", pageNumber),
		zap.Bool("placeholder", models.IsPlaceholderImage(result.URL)))

	c.JSON(http.StatusOK, gin.H{"page": pageNumber, "image": result})
}

// GetAPIConfig сообщает, настроены ли ключи внешних сервисов.
// Сами ключи клиенту не возвращаются.
func (h *Handler) GetAPIConfig(c *gin.Context) {
	textConfigured := h.cfg.AIAPIKey != ""
	imageConfigured := h.cfg.ImageAPIKey != ""

	if !textConfigured {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":                "API ключи не настроены на сервере",
			"text_api_configured":  false,
			"image_api_configured": imageConfigured,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text_api_configured":  true,
		"image_api_configured": imageConfigured,
		"model":                h.cfg.AIModel,
	})
}

// GetSettings возвращает сохраненные настройки генерации.
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.loadSettings(c.Request.Context()))
}

type saveSettingsRequest struct {
	CreativityLevel *int `json:"creativity_level" binding:"required"`
}

// SaveSettings сохраняет настройки генерации. Между запусками сохраняется
// только уровень креативности.
func (h *Handler) SaveSettings(c *gin.Context) {
	var req saveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("неверный формат запроса: %v", err)})
		return
	}
	if *req.CreativityLevel < 0 || *req.CreativityLevel > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "уровень креативности должен быть в диапазоне 0..100"})
		return
	}

	if err := h.settings.Save(c.Request.Context(), models.Settings{CreativityLevel: *req.CreativityLevel}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("ошибка сохранения настроек: %v", err)})
		return
	}

	c.JSON(http.StatusOK, h.loadSettings(c.Request.Context()))
}

// bookByID читает книгу по идентификатору из пути; при ошибке сам пишет ответ.
func (h *Handler) bookByID(c *gin.Context) (*models.StoryBook, bool) {
	bookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат идентификатора книги"})
		return nil, false
	}

	book, err := h.books.GetByID(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "книга не найдена"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("ошибка при получении книги: %v", err)})
		return nil, false
	}
	return book, true
}
