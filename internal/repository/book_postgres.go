// Package repository содержит доступ к хранилищам: собранные книги в
// PostgreSQL, пользовательские настройки в Redis.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storybook-server/internal/models"
)

// ErrNotFound возвращается, когда запись отсутствует в хранилище.
var ErrNotFound = errors.New("запись не найдена")

const (
	saveBookQuery = `
		INSERT INTO story_books (id, request, story, cover, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			request = EXCLUDED.request,
			story = EXCLUDED.story,
			cover = EXCLUDED.cover,
			images = EXCLUDED.images,
			created_at = EXCLUDED.created_at
	`
	getBookByIDQuery = `
		SELECT id, request, story, cover, images, created_at
		FROM story_books
		WHERE id = $1
	`
	listBooksQuery = `
		SELECT id, request, story, cover, images, created_at
		FROM story_books
		ORDER BY created_at DESC
		LIMIT $1
	`
	updatePageImageQuery = `
		UPDATE story_books
		SET images = jsonb_set(images, $2, $3)
		WHERE id = $1
	`
)

// bookRow - строка таблицы story_books; JSONB колонки хранятся сырыми
// байтами и разворачиваются в модель при чтении.
type bookRow struct {
	ID        uuid.UUID `db:"id"`
	Request   []byte    `db:"request"`
	Story     []byte    `db:"story"`
	Cover     []byte    `db:"cover"`
	Images    []byte    `db:"images"`
	CreatedAt time.Time `db:"created_at"`
}

// BookRepository хранит собранные книги.
type BookRepository interface {
	Save(ctx context.Context, book *models.StoryBook) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBook, error)
	List(ctx context.Context, limit int) ([]*models.StoryBook, error)
	UpdatePageImage(ctx context.Context, id uuid.UUID, pageIndex int, image models.ImageResult) error
}

// PgBookRepository - реализация BookRepository поверх pgxpool.
type PgBookRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgBookRepository создает репозиторий книг.
func NewPgBookRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgBookRepository {
	return &PgBookRepository{
		pool:   pool,
		logger: logger.Named("PgBookRepo"),
	}
}

// Save сохраняет или обновляет книгу.
func (r *PgBookRepository) Save(ctx context.Context, book *models.StoryBook) error {
	requestJSON, err := json.Marshal(book.Request)
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса книги: %w", err)
	}
	storyJSON, err := json.Marshal(book.Story)
	if err != nil {
		return fmt.Errorf("ошибка сериализации истории: %w", err)
	}
	var coverJSON []byte
	if book.Cover != nil {
		coverJSON, err = json.Marshal(book.Cover)
		if err != nil {
			return fmt.Errorf("ошибка сериализации обложки: %w", err)
		}
	}
	imagesJSON, err := json.Marshal(book.Images)
	if err != nil {
		return fmt.Errorf("ошибка сериализации иллюстраций: %w", err)
	}

	tag, err := r.pool.Exec(ctx, saveBookQuery,
		book.ID, requestJSON, storyJSON, coverJSON, imagesJSON, book.CreatedAt)
	if err != nil {
		r.logger.Error("Не удалось сохранить книгу",
			zap.String("book_id", book.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка сохранения книги: %w", err)
	}

	r.logger.Debug("Книга сохранена",
		zap.String("book_id", book.ID.String()),
		zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}

// GetByID возвращает книгу по идентификатору.
func (r *PgBookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBook, error) {
	var row bookRow
	err := pgxscan.Get(ctx, r.pool, &row, getBookByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Не удалось прочитать книгу",
			zap.String("book_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка чтения книги: %w", err)
	}
	return rowToBook(&row)
}

// List возвращает последние книги, не больше limit.
func (r *PgBookRepository) List(ctx context.Context, limit int) ([]*models.StoryBook, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []bookRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listBooksQuery, limit); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка книг: %w", err)
	}

	books := make([]*models.StoryBook, 0, len(rows))
	for i := range rows {
		book, err := rowToBook(&rows[i])
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// UpdatePageImage заменяет иллюстрацию одной страницы (перегенерация).
func (r *PgBookRepository) UpdatePageImage(ctx context.Context, id uuid.UUID, pageIndex int, image models.ImageResult) error {
	imageJSON, err := json.Marshal(image)
	if err != nil {
		return fmt.Errorf("ошибка сериализации иллюстрации: %w", err)
	}

	path := fmt.Sprintf("{%d}", pageIndex)
	tag, err := r.pool.Exec(ctx, updatePageImageQuery, id, path, imageJSON)
	if err != nil {
		return fmt.Errorf("ошибка обновления иллюстрации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.logger.Debug("Иллюстрация страницы обновлена",
		zap.String("book_id", id.String()),
		zap.Int("page_index", pageIndex))
	return nil
}

// rowToBook разворачивает JSONB колонки строки в модель книги.
func rowToBook(row *bookRow) (*models.StoryBook, error) {
	book := &models.StoryBook{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Request, &book.Request); err != nil {
		return nil, fmt.Errorf("ошибка разбора запроса книги: %w", err)
	}
	if err := json.Unmarshal(row.Story, &book.Story); err != nil {
		return nil, fmt.Errorf("ошибка разбора истории: %w", err)
	}
	if len(row.Cover) > 0 {
		book.Cover = &models.ImageResult{}
		if err := json.Unmarshal(row.Cover, book.Cover); err != nil {
			return nil, fmt.Errorf("ошибка разбора обложки: %w", err)
		}
	}
	if len(row.Images) > 0 {
		if err := json.Unmarshal(row.Images, &book.Images); err != nil {
			return nil, fmt.Errorf("ошибка разбора иллюстраций: %w", err)
		}
	}
	return book, nil
}
