package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ограничения на запрос генерации.
const (
	MinPageCount = 1
	MaxPageCount = 20
)

// TextLength определяет плотность текста на странице.
type TextLength string

const (
	TextLengthShort  TextLength = "short"
	TextLengthMedium TextLength = "medium"
	TextLengthLong   TextLength = "long"
)

// Valid проверяет, что значение входит в перечисление.
func (l TextLength) Valid() bool {
	switch l {
	case TextLengthShort, TextLengthMedium, TextLengthLong:
		return true
	}
	return false
}

// StoryRequest - параметры генерации книги, собранные мастером (wizard) на клиенте.
// Создается один раз на отправку формы и принадлежит запуску пайплайна.
type StoryRequest struct {
	Genre         string     `json:"genre" binding:"required"`
	Protagonist   string     `json:"protagonist" binding:"required"`
	Setting       string     `json:"setting" binding:"required"`
	Conflict      string     `json:"conflict" binding:"required"`
	Tone          string     `json:"tone" binding:"required"`
	PageCount     int        `json:"page_count" binding:"required"`
	Inspiration   string     `json:"inspiration,omitempty"`
	TextLength    TextLength `json:"text_length"`
	FontStyle     string     `json:"font_style,omitempty"`
	ColorTheme    string     `json:"color_theme,omitempty"`
	IncludeImages bool       `json:"include_images"`
	ArtStyle      string     `json:"art_style,omitempty"`
	ImageModel    string     `json:"image_model,omitempty"`
}

// Ошибки валидации запроса.
var (
	ErrEmptyField       = errors.New("обязательное поле не заполнено")
	ErrPageCountRange   = errors.New("количество страниц вне допустимого диапазона")
	ErrArtStyleRequired = errors.New("стиль иллюстраций обязателен при включенных изображениях")
	ErrBadTextLength    = errors.New("недопустимое значение плотности текста")
)

// Validate проверяет инварианты запроса. Генерация не должна начинаться,
// если запрос невалиден (в частности: IncludeImages => ArtStyle задан).
func (r *StoryRequest) Validate() error {
	required := map[string]string{
		"genre":       r.Genre,
		"protagonist": r.Protagonist,
		"setting":     r.Setting,
		"conflict":    r.Conflict,
		"tone":        r.Tone,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyField, name)
		}
	}
	if r.PageCount < MinPageCount || r.PageCount > MaxPageCount {
		return fmt.Errorf("%w: %d (допустимо %d..%d)", ErrPageCountRange, r.PageCount, MinPageCount, MaxPageCount)
	}
	if r.TextLength == "" {
		r.TextLength = TextLengthMedium
	}
	if !r.TextLength.Valid() {
		return fmt.Errorf("%w: %q", ErrBadTextLength, r.TextLength)
	}
	if r.IncludeImages && strings.TrimSpace(r.ArtStyle) == "" {
		return ErrArtStyleRequired
	}
	return nil
}

// GeneratedStory - результат текстовой генерации.
// Инвариант: len(Pages) всегда приводится ровно к PageCount запроса
// (дополняется заглушкой или усекается). ImagePrompts присутствует только
// если текстовый сервис вернул промпты для иллюстраций вместе с историей;
// если присутствует - той же длины, что и Pages.
type GeneratedStory struct {
	Title        string   `json:"title"`
	Pages        []string `json:"pages"`
	ImagePrompts []string `json:"image_prompts,omitempty"`
}

// ImageResult - результат генерации одной иллюстрации.
// URL - либо ссылка на ресурс сервиса, либо встроенная SVG-заглушка (data URI).
// Prompt - фактически отправленный промпт (после обогащения и усечения).
type ImageResult struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// StoryBook - собранная книга: история, обложка и постраничные иллюстрации.
// Сохраняется в БД после завершения пайплайна.
type StoryBook struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Request   StoryRequest  `json:"request" db:"request"`
	Story     GeneratedStory `json:"story" db:"story"`
	Cover     *ImageResult  `json:"cover,omitempty" db:"cover"`
	Images    []ImageResult `json:"images,omitempty" db:"images"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// WordCount возвращает суммарное число слов по всем страницам.
func (b *StoryBook) WordCount() int {
	total := 0
	for _, page := range b.Story.Pages {
		total += len(strings.Fields(page))
	}
	return total
}
