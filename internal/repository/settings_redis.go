package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/models"
)

// settingsCreativityKey - ключ Redis для уровня креативности.
const settingsCreativityKey = "storybook:settings:creativity"

// SettingsRepository хранит пользовательские настройки генерации.
// Через хранилище проходит только уровень креативности: модель и ключи
// задаются конфигурацией процесса и не персистятся.
type SettingsRepository interface {
	Save(ctx context.Context, settings models.Settings) error
	Load(ctx context.Context, defaults models.Settings) (models.Settings, error)
}

// RedisSettingsRepository - реализация SettingsRepository поверх Redis.
type RedisSettingsRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSettingsRepository создает репозиторий настроек.
func NewRedisSettingsRepository(client *redis.Client, logger *zap.Logger) *RedisSettingsRepository {
	return &RedisSettingsRepository{
		client: client,
		logger: logger.Named("RedisSettingsRepo"),
	}
}

// Save сохраняет уровень креативности. Остальные поля настроек не пишутся.
func (r *RedisSettingsRepository) Save(ctx context.Context, settings models.Settings) error {
	if err := r.client.Set(ctx, settingsCreativityKey, settings.CreativityLevel, 0).Err(); err != nil {
		r.logger.Error("Не удалось сохранить настройки", zap.Error(err))
		return fmt.Errorf("ошибка сохранения настроек: %w", err)
	}
	r.logger.Debug("Настройки сохранены", zap.Int("creativity", settings.CreativityLevel))
	return nil
}

// Load возвращает defaults с уровнем креативности из хранилища, если он там
// есть. Отсутствие сохраненного значения не считается ошибкой.
func (r *RedisSettingsRepository) Load(ctx context.Context, defaults models.Settings) (models.Settings, error) {
	settings := defaults

	val, err := r.client.Get(ctx, settingsCreativityKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return settings, nil
		}
		return settings, fmt.Errorf("ошибка чтения настроек: %w", err)
	}

	creativity, err := strconv.Atoi(val)
	if err != nil {
		r.logger.Warn("Некорректное сохраненное значение креативности", zap.String("value", val))
		return settings, nil
	}
	if creativity < 0 {
		creativity = 0
	}
	if creativity > 100 {
		creativity = 100
	}
	settings.CreativityLevel = creativity
	return settings, nil
}
