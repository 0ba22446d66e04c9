package service

import (
	"go.uber.org/zap"

	"storybook-server/internal/models"
	"storybook-server/internal/prompt"
)

// ImagePromptDeriver выдает промпт иллюстрации для каждой страницы истории.
// Источник промптов (встроенные в ответ модели или выведенные локально)
// выбирается один раз на прогон, за интерфейсом.
type ImagePromptDeriver interface {
	// DerivePrompts возвращает ровно один промпт на страницу истории.
	DerivePrompts(story *models.GeneratedStory, req *models.StoryRequest) []string
}

// HeuristicDeriver выводит промпты локально по ключевым словам текста
// страницы. Сетевых вызовов нет, результат детерминирован.
type HeuristicDeriver struct {
	logger *zap.Logger
}

// NewHeuristicDeriver создает локальный выводитель промптов.
func NewHeuristicDeriver(logger *zap.Logger) *HeuristicDeriver {
	return &HeuristicDeriver{logger: logger}
}

// DerivePrompts составляет промпт для каждой страницы. Встроенные промпты
// из ответа модели имеют приоритет; пустые позиции добиваются эвристикой,
// пустой текст страницы - запасным пейзажным промптом.
func (d *HeuristicDeriver) DerivePrompts(story *models.GeneratedStory, req *models.StoryRequest) []string {
	prompts := make([]string, len(story.Pages))
	inline := 0
	for i, pageText := range story.Pages {
		if story.ImagePrompts != nil && i < len(story.ImagePrompts) && story.ImagePrompts[i] != "" {
			prompts[i] = story.ImagePrompts[i]
			inline++
			continue
		}
		if pageText == "" {
			prompts[i] = prompt.FallbackPageImagePrompt(req)
			continue
		}
		prompts[i] = prompt.BuildPageImagePrompt(pageText, i, req)
	}
	d.logger.Debug("Промпты иллюстраций выведены",
		zap.Int("pages", len(prompts)),
		zap.Int("inline", inline))
	return prompts
}
