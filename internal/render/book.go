// Package render собирает книгу в HTML страницу (серверный аналог
// отрисовки книги в DOM).
package render

import (
	"fmt"
	"html/template"
	"io"

	"storybook-server/internal/models"
)

// BookRenderer отрисовывает собранную книгу.
type BookRenderer interface {
	Render(w io.Writer, book *models.StoryBook) error
}

// HTMLRenderer - реализация BookRenderer на html/template.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer разбирает шаблон книги.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("book").Parse(bookTemplate)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблона книги: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// bookPage - одна страница книги в шаблоне.
type bookPage struct {
	Number int
	Text   string
	// Image пустой, когда иллюстрации для страницы нет: блок <figure>
	// опускается, текст остальных страниц не сдвигается
	Image  string
	Prompt string
}

type bookView struct {
	Title      string
	FontStyle  string
	ColorTheme string
	TextLength string
	CoverURL   string
	Pages      []bookPage
	PageCount  int
	WordCount  int
}

// Render отрисовывает ровно один титульный раздел и по разделу на страницу,
// в порядке повествования.
func (r *HTMLRenderer) Render(w io.Writer, book *models.StoryBook) error {
	view := bookView{
		Title:      book.Story.Title,
		FontStyle:  book.Request.FontStyle,
		ColorTheme: book.Request.ColorTheme,
		TextLength: string(book.Request.TextLength),
		PageCount:  len(book.Story.Pages),
		WordCount:  book.WordCount(),
	}

	if book.Cover != nil && book.Cover.URL != "" {
		view.CoverURL = book.Cover.URL
	}

	for i, text := range book.Story.Pages {
		page := bookPage{Number: i + 1, Text: text}
		if i < len(book.Images) && book.Images[i].URL != "" {
			page.Image = book.Images[i].URL
			page.Prompt = book.Images[i].Prompt
		}
		view.Pages = append(view.Pages, page)
	}

	if err := r.tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("ошибка отрисовки книги: %w", err)
	}
	return nil
}

const bookTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<div class="story-book font-{{.FontStyle}} theme-{{.ColorTheme}} text-{{.TextLength}}">
  <section class="title-page">
    <h1 class="story-title">{{.Title}}</h1>
    {{- if .CoverURL}}
    <figure class="title-image"><img src="{{.CoverURL}}" alt="{{.Title}}"></figure>
    {{- end}}
    <p class="book-meta">{{.PageCount}} pages &bull; {{.WordCount}} words</p>
  </section>
  {{- range .Pages}}
  <section class="story-page" data-page="{{.Number}}">
    {{- if .Image}}
    <figure class="page-image"><img src="{{.Image}}" alt="{{.Prompt}}"></figure>
    {{- end}}
    <div class="page-text"><p>{{.Text}}</p></div>
    <span class="page-number">{{.Number}}</span>
  </section>
  {{- end}}
</div>
</body>
</html>
`
