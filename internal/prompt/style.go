package prompt

import (
	"regexp"

	"storybook-server/internal/models"
)

// styleSuffixes - фразы стиля, добавляемые к промпту иллюстрации, по ключу
// art style из запроса.
var styleSuffixes = map[string]string{
	// Мультяшные и анимационные стили
	"disney-pixar":       "Disney Pixar style, 3D cartoon animation, expressive characters, warm lighting",
	"comic-book":         "comic book style, bold outlines, vibrant colors, dynamic composition",
	"anime-manga":        "anime manga style, expressive eyes, detailed backgrounds, cel shading",
	"watercolor-cartoon": "watercolor cartoon style, soft brush strokes, flowing colors, artistic",
	"hand-drawn":         "hand-drawn illustration, sketchy lines, traditional art feel",
	"childrens-book":     "children's book illustration style, whimsical, colorful, friendly",
	"vector-art":         "vector art style, clean lines, flat colors, geometric shapes",
	"sketch-style":       "pencil sketch style, grayscale, artistic shading, hand-drawn feel",

	// Реалистичные и художественные стили
	"photorealistic":    "photorealistic, ultra detailed, professional photography, cinematic lighting",
	"cinematic":         "cinematic photography, dramatic lighting, film composition, high detail",
	"fantasy-realistic": "fantasy realistic art, detailed digital painting, magical atmosphere",
	"oil-painting":      "oil painting style, traditional art, rich textures, masterpiece quality",
	"digital-art":       "digital art, concept art style, detailed illustration, professional quality",
	"concept-art":       "concept art style, detailed environment design, atmospheric lighting",
	"matte-painting":    "matte painting style, epic landscape, cinematic composition, detailed",
	"vintage-photo":     "vintage photography style, film grain, nostalgic atmosphere, retro",
}

// cartoonStyles - подмножество стилей, в которых термины реализма ломают
// картинку и должны быть переписаны до добавления фразы стиля.
var cartoonStyles = map[string]bool{
	"disney-pixar":       true,
	"comic-book":         true,
	"anime-manga":        true,
	"watercolor-cartoon": true,
	"hand-drawn":         true,
	"childrens-book":     true,
	"vector-art":         true,
	"sketch-style":       true,
}

var (
	realismTermsRe = regexp.MustCompile(`(?i)photorealistic|realistic|photograph`)
	photoTermRe    = regexp.MustCompile(`(?i)photo`)
)

// EnhanceImagePrompt дописывает к базовому промпту фразу стиля и стандартный
// суффикс "без текста на изображении". Для мультяшных стилей предварительно
// переписывает термины реализма в безопасные эквиваленты. Вызывается ровно
// один раз на промпт.
func EnhanceImagePrompt(basePrompt string, req *models.StoryRequest) string {
	style, ok := styleSuffixes[req.ArtStyle]
	if !ok {
		style = "illustration style"
	}

	if cartoonStyles[req.ArtStyle] {
		cleaned := realismTermsRe.ReplaceAllString(basePrompt, "cartoon")
		cleaned = photoTermRe.ReplaceAllString(cleaned, "illustration")
		return cleaned + ", " + style + ", high quality cartoon illustration, no text or words"
	}
	return basePrompt + ", " + style + ", high quality illustration, no text or words"
}

// IsCartoonStyle сообщает, относится ли стиль к мультяшному подмножеству.
func IsCartoonStyle(artStyle string) bool {
	return cartoonStyles[artStyle]
}

// KnownArtStyle сообщает, есть ли стиль в таблице (валидация на границе API).
func KnownArtStyle(artStyle string) bool {
	_, ok := styleSuffixes[artStyle]
	return ok
}
