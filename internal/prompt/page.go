package prompt

import (
	"fmt"
	"strings"

	"storybook-server/internal/models"
)

// Словари эвристики постраничных промптов. Держим их данными пакета, а не
// строками внутри функции: списки подбирались по текстам историй и
// редактируются отдельно от логики.
var (
	// actionWords - глаголы действия, которые стоит показать на иллюстрации.
	actionWords = []string{
		"running", "chasing", "fighting", "flying", "climbing", "jumping",
		"swimming", "hiding", "searching", "escaping", "exploring",
		"discovering", "falling", "riding", "sailing", "whispering",
		"shouting", "laughing", "crying", "dancing",
	}

	// sceneNouns - существительные-объекты, достойные попасть в кадр.
	sceneNouns = []string{
		"dragon", "castle", "forest", "mountain", "river", "cave", "ship",
		"tower", "bridge", "door", "key", "map", "sword", "lantern", "book",
		"treasure", "storm", "fire", "shadow", "star",
	}

	// toneDescriptors - дескриптор атмосферы по тону истории.
	toneDescriptors = map[string]string{
		"mysterious":  "moody atmospheric lighting",
		"whimsical":   "playful bright palette",
		"dark":        "deep shadows, somber palette",
		"adventurous": "dynamic wide-angle energy",
		"heartwarming": "soft warm glow",
		"humorous":    "lighthearted exaggerated expressions",
	}
	defaultToneDescriptor = "rich atmospheric detail"
)

// firstMatch возвращает первое слово списка, встречающееся в тексте страницы.
func firstMatch(pageText string, words []string) (string, bool) {
	lower := strings.ToLower(pageText)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// BuildPageImagePrompt локально и детерминированно составляет промпт
// иллюстрации страницы: протагонист, первое найденное действие и объект из
// текста, место действия, стиль и дескриптор тона. Внешних вызовов нет -
// один и тот же текст страницы всегда дает один и тот же промпт.
func BuildPageImagePrompt(pageText string, pageIndex int, req *models.StoryRequest) string {
	parts := []string{req.Protagonist}

	if action, ok := firstMatch(pageText, actionWords); ok {
		parts = append(parts, action)
	}
	if noun, ok := firstMatch(pageText, sceneNouns); ok {
		parts = append(parts, "with a "+noun)
	}

	parts = append(parts, fmt.Sprintf("in %s", req.Setting))
	if req.ArtStyle != "" {
		parts = append(parts, fmt.Sprintf("%s style", req.ArtStyle))
	}

	descriptor := toneDescriptors[strings.ToLower(req.Tone)]
	if descriptor == "" {
		descriptor = defaultToneDescriptor
	}
	parts = append(parts, descriptor)

	// Первая страница - широкий устанавливающий план, остальные - сцена.
	if pageIndex == 0 {
		parts = append(parts, "wide establishing shot")
	}

	return strings.Join(parts, ", ")
}

// FallbackPageImagePrompt - запасной промпт страницы, когда текста нет или
// основной путь недоступен. Используется и деривером при постраничном сбое.
func FallbackPageImagePrompt(req *models.StoryRequest) string {
	style := req.ArtStyle
	if style == "" {
		style = "illustration"
	}
	return fmt.Sprintf("Beautiful %s landscape in %s style, atmospheric and detailed", req.Setting, style)
}
