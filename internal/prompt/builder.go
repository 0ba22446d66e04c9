// Package prompt содержит чистые построители промптов для текстовой и
// графической генерации. Никакого I/O: одинаковый вход всегда дает
// одинаковый выход, иначе промпты нельзя тестировать.
package prompt

import (
	"fmt"
	"strings"

	"storybook-server/internal/models"
)

// SystemStoryPrompt - системная инструкция для текстовой модели.
const SystemStoryPrompt = "You are a creative storyteller who creates illustrated children's books and novels. " +
	"Format your response as a JSON object with a \"title\" field and a \"pages\" array. " +
	"Each page should have 1-2 paragraphs of story content."

// pageDensityPhrase возвращает фразу плотности текста для запрошенной длины.
func pageDensityPhrase(l models.TextLength) string {
	switch l {
	case models.TextLengthShort:
		return "1-2 sentences"
	case models.TextLengthLong:
		return "2-3 paragraphs"
	default:
		return "1-2 paragraphs"
	}
}

// BuildStoryPrompt строит пользовательский промпт генерации истории.
// Шаблон детерминированный: кодирует количество страниц, плотность текста
// и явную инструкцию формата ответа (title + pages [+ imagePrompts]).
func BuildStoryPrompt(req *models.StoryRequest) string {
	density := pageDensityPhrase(req.TextLength)

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s %s story with exactly %d pages.\n\n", req.Tone, req.Genre, req.PageCount)
	b.WriteString("Story Details:\n")
	fmt.Fprintf(&b, "- Main character: %s\n", req.Protagonist)
	fmt.Fprintf(&b, "- Setting: %s\n", req.Setting)
	fmt.Fprintf(&b, "- Conflict/Challenge: %s\n", req.Conflict)
	fmt.Fprintf(&b, "- Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "- Number of pages: %d\n", req.PageCount)
	fmt.Fprintf(&b, "- Text length per page: %s", density)
	if strings.TrimSpace(req.Inspiration) != "" {
		fmt.Fprintf(&b, "\n- Additional inspiration/themes: %s", req.Inspiration)
	}
	fmt.Fprintf(&b, "\n\nFormat your response as a JSON object with this structure:\n"+
		"{\n"+
		"  \"title\": \"Story Title\",\n"+
		"  \"pages\": [\n"+
		"    \"Page 1 content (%s)\",\n"+
		"    \"Page 2 content (%s)\",\n"+
		"    ...\n"+
		"  ]\n"+
		"}\n\n", density, density)
	fmt.Fprintf(&b, "Each page should contain %s that advance the story. The story should have:\n", density)
	b.WriteString("1. A compelling opening\n" +
		"2. Character development\n" +
		"3. Rising action and conflict\n" +
		"4. A satisfying climax and resolution\n" +
		"5. Vivid, visual descriptions perfect for illustrations\n\n" +
		"Make each page engaging and visual, as it will have an accompanying illustration.")
	return b.String()
}

// BuildCoverImagePrompt собирает описательный промпт обложки из параметров
// запроса и сгенерированного названия.
func BuildCoverImagePrompt(req *models.StoryRequest, title string) string {
	return fmt.Sprintf(
		"Epic book cover illustration for %q, a %s %s story. "+
			"Main character: %s. Setting: %s. The adventure ahead: %s. "+
			"%s mood, dramatic lighting, dynamic composition like a movie poster, "+
			"space left for title text",
		title, req.Tone, req.Genre, req.Protagonist, req.Setting, req.Conflict, req.Tone,
	)
}
