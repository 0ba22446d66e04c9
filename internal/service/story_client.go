package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storybook-server/internal/models"
	"storybook-server/internal/prompt"
)

// TraceFunc принимает сообщения трассировки хода генерации. Трасса
// исключительно информационная, поток управления от нее не зависит.
type TraceFunc func(kind, message string)

func (t TraceFunc) Emit(kind, message string) {
	if t != nil {
		t(kind, message)
	}
}

const storyMaxTokens = 8000

// StoryService генерирует текст истории одним обращением к AI и приводит
// результат к структурированному виду.
type StoryService struct {
	ai     AIClient
	logger *zap.Logger
}

// NewStoryService создает сервис генерации текста истории.
func NewStoryService(ai AIClient, logger *zap.Logger) *StoryService {
	return &StoryService{ai: ai, logger: logger}
}

// GenerateStoryText генерирует историю по запросу. Стратегии разбора по
// убыванию доверия: структурированный JSON, ручной разбор сырого текста,
// детерминированная запасная история. Ошибок не возвращает: любой сбой
// внешнего сервиса деградирует до запасной истории.
func (s *StoryService) GenerateStoryText(ctx context.Context, req *models.StoryRequest, settings models.Settings, trace TraceFunc) *models.GeneratedStory {
	userPrompt := prompt.BuildStoryPrompt(req)
	temperature := settings.Temperature()
	maxTokens := storyMaxTokens

	trace.Emit("system", "Connecting to text generation API...")
	trace.Emit("system", fmt.Sprintf("Model: %s", settings.Model))
	trace.Emit("system", fmt.Sprintf("Temperature: %.2f", temperature))
	trace.Emit("prompt", fmt.Sprintf("Generating %d pages...", req.PageCount))

	content, usage, err := s.ai.GenerateText(ctx, prompt.SystemStoryPrompt, userPrompt, GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		s.logger.Warn("Генерация текста не удалась, используем запасную историю", zap.Error(err))
		trace.Emit("system", fmt.Sprintf("Story generation failed: %v", err))
		trace.Emit("system", "Using fallback story...")
		return FallbackStory(req)
	}

	trace.Emit("system", "Response received, parsing story...")
	s.logger.Debug("Текст истории получен",
		zap.Int("chars", len(content)),
		zap.Int("total_tokens", usage.TotalTokens))

	if story, ok := parseStoryJSON(content, req.PageCount); ok {
		trace.Emit("response", fmt.Sprintf("Story parsed successfully: %q", story.Title))
		return story
	}

	trace.Emit("system", "JSON parse failed, using manual parser...")
	story := ParseStoryManually(content, req.PageCount)
	trace.Emit("response", fmt.Sprintf("Manual parse complete: %q", story.Title))
	return story
}

// parseStoryJSON пытается разобрать ответ модели как JSON с полями title и
// pages. Ответы в markdown-ограждениях и с оборванными скобками чинятся до
// разбора. Количество страниц приводится к pageCount.
func parseStoryJSON(content string, pageCount int) (*models.GeneratedStory, bool) {
	var parsed struct {
		Title        string   `json:"title"`
		Pages        []string `json:"pages"`
		ImagePrompts []string `json:"imagePrompts"`
	}

	cleaned := stripCodeFence(content)
	cleaned = FixJSON(cleaned)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, false
	}
	if parsed.Title == "" || len(parsed.Pages) == 0 {
		return nil, false
	}

	story := &models.GeneratedStory{
		Title: parsed.Title,
		Pages: coercePages(parsed.Pages, pageCount),
	}
	// Встроенные промпты принимаем только при совпадении длины со страницами
	if len(parsed.ImagePrompts) == pageCount {
		story.ImagePrompts = parsed.ImagePrompts
	}
	return story, true
}

// stripCodeFence срезает markdown-ограждение вокруг JSON ответа модели.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ParseStoryManually восстанавливает историю из неструктурированного текста:
// первая непустая строка считается названием, остальные строки режутся на
// страницы по маркерам "Page" или по порогу длины.
func ParseStoryManually(content string, pageCount int) *models.GeneratedStory {
	const pageLengthThreshold = 300

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	title := "Untitled Story"
	if len(lines) > 0 {
		title = strings.TrimSpace(lines[0])
	}

	var pages []string
	var currentPage strings.Builder
	pageNum := 0

	for i := 1; i < len(lines) && pageNum < pageCount; i++ {
		line := lines[i]

		if strings.Contains(line, "Page") || currentPage.Len() > pageLengthThreshold {
			if text := strings.TrimSpace(currentPage.String()); text != "" {
				pages = append(pages, text)
				pageNum++
				currentPage.Reset()
			}
		}

		if !strings.Contains(line, "Page") {
			currentPage.WriteString(line)
			currentPage.WriteString("\n")
		}
	}

	if text := strings.TrimSpace(currentPage.String()); text != "" && pageNum < pageCount {
		pages = append(pages, text)
	}

	return &models.GeneratedStory{
		Title: title,
		Pages: coercePages(pages, pageCount),
	}
}

// coercePages приводит список страниц ровно к pageCount: лишние отрезаются,
// недостающие дополняются фразой-заполнителем.
func coercePages(pages []string, pageCount int) []string {
	out := make([]string, 0, pageCount)
	out = append(out, pages...)
	for len(out) < pageCount {
		out = append(out, "The story continues...")
	}
	return out[:pageCount]
}

// FallbackStory - детерминированная запасная история на случай полной
// недоступности текстового сервиса. Никогда не паникует.
func FallbackStory(req *models.StoryRequest) *models.GeneratedStory {
	pages := make([]string, req.PageCount)
	for i := range pages {
		pages[i] = fmt.Sprintf("This is page %d of the story about %s in %s. The adventure continues as they face %s.",
			i+1, req.Protagonist, req.Setting, req.Conflict)
	}
	return &models.GeneratedStory{
		Title: fmt.Sprintf("The Adventure of %s", req.Protagonist),
		Pages: pages,
	}
}
