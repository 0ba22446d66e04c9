// Package config загружает конфигурацию сервера из переменных окружения
// и файлов секретов.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"storybook-server/internal/utils"
)

// Config содержит конфигурацию сервера генерации книг.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Настройки HTTP сервера
	ServerPort         int           `envconfig:"SERVER_PORT" default:"8080"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	CORSOrigins        []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`

	// Настройки текстового AI (OpenRouter-совместимый API или Ollama)
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel      string        `envconfig:"AI_MODEL" default:"openai/gpt-4o-mini"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string

	// Настройки генерации изображений (Novita API)
	ImageBaseURL      string        `envconfig:"IMAGE_BASE_URL" default:"https://api.novita.ai"`
	ImageTimeout      time.Duration `envconfig:"IMAGE_TIMEOUT" default:"30s"`
	ImagePollInterval time.Duration `envconfig:"IMAGE_POLL_INTERVAL" default:"5s"`
	ImagePollAttempts int           `envconfig:"IMAGE_POLL_ATTEMPTS" default:"60"`
	ImagePollDeadline time.Duration `envconfig:"IMAGE_POLL_DEADLINE" default:"6m"`
	// Секретное поле БЕЗ envconfig тега
	ImageAPIKey string

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"storybook_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (хранение пользовательских настроек)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки RabbitMQ (уведомления о готовых книгах)
	RabbitMQURL       string `envconfig:"RABBITMQ_URL" default:""`
	RabbitMQQueueName string `envconfig:"RABBITMQ_QUEUE_NAME" default:"storybook_completed"`

	// Настройки прогонов генерации
	MaxConcurrentRuns int `envconfig:"MAX_CONCURRENT_RUNS" default:"1"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
// Секрет ключа изображений опционален: без него пайплайн работает, но все
// иллюстрации будут заменены заглушками.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	var loadErr error
	cfg.AIAPIKey, loadErr = utils.ReadSecret("ai_api_key")
	if loadErr != nil {
		return nil, loadErr
	}

	// Ключ Novita опционален
	cfg.ImageAPIKey, _ = utils.ReadSecret("image_api_key")

	cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
	if loadErr != nil {
		return nil, loadErr
	}

	// Пароль Redis опционален (локальный Redis без авторизации)
	cfg.RedisPassword, _ = utils.ReadSecret("redis_password")

	// Логируем загруженную конфигурацию (кроме паролей/ключей)
	log.Printf("Конфигурация загружена (секреты из файлов):")
	log.Printf("  Environment: %s", cfg.Environment)
	log.Printf("  Server Port: %d", cfg.ServerPort)
	log.Printf("  AI Client Type: %s", cfg.AIClientType)
	log.Printf("  AI Base URL: %s", cfg.AIBaseURL)
	log.Printf("  AI Model: %s", cfg.AIModel)
	log.Printf("  AI Timeout: %v", cfg.AITimeout)
	log.Printf("  Image Base URL: %s", cfg.ImageBaseURL)
	log.Printf("  Image Poll: every %v, max %d attempts, deadline %v",
		cfg.ImagePollInterval, cfg.ImagePollAttempts, cfg.ImagePollDeadline)
	log.Printf("  DB DSN: %s", cfg.getMaskedDSN())
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	if cfg.RabbitMQURL != "" {
		log.Printf("  RabbitMQ Queue: %s", cfg.RabbitMQQueueName)
	} else {
		log.Printf("  RabbitMQ: отключен")
	}
	log.Println("  AI API Key: [ЗАГРУЖЕН]")
	if cfg.ImageAPIKey != "" {
		log.Println("  Image API Key: [ЗАГРУЖЕН]")
	} else {
		log.Println("  Image API Key: [НЕ ЗАДАН, будут заглушки]")
	}

	return &cfg, nil
}

// getMaskedDSN возвращает DSN с замаскированным паролем для логирования.
func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
