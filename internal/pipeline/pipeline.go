// Package pipeline содержит оркестратор генерации книги: текст истории,
// обложка, постраничные промпты, постраничные иллюстрации, сборка.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storybook-server/internal/models"
	"storybook-server/internal/prompt"
	"storybook-server/internal/service"
	"storybook-server/pkg/taskmanager"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_pipeline_runs_total",
			Help: "Total number of generation pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_pipeline_stage_duration_seconds",
			Help:    "Histogram of pipeline stage durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"stage"},
	)
)

// StoryGenerator - генерация текста истории (этап StoryText).
type StoryGenerator interface {
	GenerateStoryText(ctx context.Context, req *models.StoryRequest, settings models.Settings, trace service.TraceFunc) *models.GeneratedStory
}

// BookStore сохраняет собранную книгу.
type BookStore interface {
	Save(ctx context.Context, book *models.StoryBook) error
}

// Pipeline - оркестратор полного прогона генерации.
type Pipeline struct {
	story    StoryGenerator
	deriver  service.ImagePromptDeriver
	images   service.ImageClient
	books    BookStore
	notifier service.Notifier
	logger   *zap.Logger
}

// New создает пайплайн. books может быть nil, тогда книга не сохраняется.
func New(story StoryGenerator, deriver service.ImagePromptDeriver, images service.ImageClient, books BookStore, notifier service.Notifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		story:    story,
		deriver:  deriver,
		images:   images,
		books:    books,
		notifier: notifier,
		logger:   logger,
	}
}

// Run выполняет полный прогон генерации книги. Этапы деградируют к
// заглушкам поодиночке, поэтому ошибка возможна только при отмене контекста
// или панике, перехваченной внешним recover. На каждый прогон уходит ровно
// одно уведомление о завершении.
func (p *Pipeline) Run(ctx context.Context, taskID uuid.UUID, req *models.StoryRequest, settings models.Settings, report taskmanager.ProgressFunc, trace service.TraceFunc) (book *models.StoryBook, err error) {
	runStart := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Паника в пайплайне генерации",
				zap.String("task_id", taskID.String()),
				zap.Any("panic", r))
			book = nil
			err = fmt.Errorf("внутренняя ошибка генерации: %v", r)
		}
		p.finish(taskID, book, err, runStart)
	}()

	report(10, "Creating your story...")

	stageStart := time.Now()
	story := p.story.GenerateStoryText(ctx, req, settings, trace)
	pipelineStageDuration.With(prometheus.Labels{"stage": "story_text"}).Observe(time.Since(stageStart).Seconds())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	report(40, "Story text ready")

	var cover *models.ImageResult
	var images []models.ImageResult

	if req.IncludeImages {
		report(50, "Creating title image...")
		stageStart = time.Now()
		coverResult := p.images.GenerateImage(ctx,
			prompt.BuildCoverImagePrompt(req, story.Title),
			req, models.PlaceholderTitleImageURL, trace)
		cover = &coverResult
		pipelineStageDuration.With(prometheus.Labels{"stage": "title_image"}).Observe(time.Since(stageStart).Seconds())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		report(60, "Title image ready")

		stageStart = time.Now()
		prompts := p.deriver.DerivePrompts(story, req)
		pipelineStageDuration.With(prometheus.Labels{"stage": "page_prompts"}).Observe(time.Since(stageStart).Seconds())
		report(70, "Image prompts ready")

		// Страницы идут строго по одной: следующая начинается только после
		// разрешения предыдущей (успех, заглушка или таймаут)
		stageStart = time.Now()
		images = make([]models.ImageResult, 0, len(prompts))
		for i, pagePrompt := range prompts {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			trace.Emit("system", fmt.Sprintf("Generating image %d of %d...", i+1, len(prompts)))
			result := p.images.GenerateImage(ctx, pagePrompt, req, models.PlaceholderPageImageURL, trace)
			images = append(images, result)
			report(70+(i+1)*25/len(prompts), fmt.Sprintf("Image %d of %d ready", i+1, len(prompts)))
		}
		pipelineStageDuration.With(prometheus.Labels{"stage": "page_images"}).Observe(time.Since(stageStart).Seconds())

		report(95, "Finalizing your story...")
	} else {
		// Без иллюстраций: укороченный путь, ни одного обращения к
		// графическому сервису
		report(80, "Finalizing your story...")
	}

	book = &models.StoryBook{
		ID:        uuid.New(),
		Request:   *req,
		Story:     *story,
		Cover:     cover,
		Images:    images,
		CreatedAt: time.Now(),
	}

	if p.books != nil {
		if saveErr := p.books.Save(ctx, book); saveErr != nil {
			// Книга остается в результате задачи, потеря строки в БД
			// не роняет прогон
			p.logger.Error("Не удалось сохранить книгу",
				zap.String("book_id", book.ID.String()), zap.Error(saveErr))
			trace.Emit("system", fmt.Sprintf("Failed to persist book: %v", saveErr))
		}
	}

	report(100, "Story generation finished!")
	trace.Emit("system", "Story generation finished!")
	return book, nil
}

// finish отправляет единственное уведомление прогона и пишет метрику исхода.
func (p *Pipeline) finish(taskID uuid.UUID, book *models.StoryBook, err error, runStart time.Time) {
	notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notification := service.CompletionNotification{
		TaskID:    taskID.String(),
		Timestamp: time.Now(),
	}

	if err != nil {
		notification.Status = "failed"
		notification.Error = err.Error()
		pipelineRunsTotal.With(prometheus.Labels{"outcome": "failed"}).Inc()
	} else {
		notification.Status = "completed"
		notification.BookID = book.ID.String()
		notification.Title = book.Story.Title
		notification.PageCount = len(book.Story.Pages)
		pipelineRunsTotal.With(prometheus.Labels{"outcome": "completed"}).Inc()
	}

	if notifyErr := p.notifier.Notify(notifyCtx, notification); notifyErr != nil {
		p.logger.Warn("Не удалось отправить уведомление о завершении",
			zap.String("task_id", taskID.String()), zap.Error(notifyErr))
	}

	p.logger.Info("Прогон генерации завершен",
		zap.String("task_id", taskID.String()),
		zap.String("status", notification.Status),
		zap.Duration("duration", time.Since(runStart)))
}
