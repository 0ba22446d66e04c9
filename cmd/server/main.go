package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/database"
	delivery "storybook-server/internal/delivery/http"
	ws "storybook-server/internal/delivery/websocket"
	"storybook-server/internal/pipeline"
	"storybook-server/internal/render"
	"storybook-server/internal/repository"
	"storybook-server/internal/service"
	"storybook-server/pkg/logger"
	"storybook-server/pkg/taskmanager"
)

const taskRetention = 24 * time.Hour

func main() {
	// .env удобен для локальной разработки, в продакшене его нет
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("Запуск сервера генерации книг",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.ServerPort))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startupCancel()

	// --- PostgreSQL ---
	pool, err := database.InitDB(startupCtx, cfg, log)
	if err != nil {
		log.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer database.CloseDB(pool, log)

	// --- Redis (настройки генерации) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startupCtx).Err(); err != nil {
		// настройки деградируют к значениям по умолчанию, это не фатально
		log.Warn("Redis недоступен, настройки не будут сохраняться", zap.Error(err))
	} else {
		log.Info("Подключение к Redis установлено", zap.String("addr", cfg.RedisAddr))
	}

	// --- RabbitMQ (уведомления о готовых книгах, опционально) ---
	var notifier service.Notifier = service.NoopNotifier{}
	if cfg.RabbitMQURL != "" {
		mqConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		mqChannel, err := mqConn.Channel()
		if err != nil {
			log.Fatal("Не удалось открыть канал RabbitMQ", zap.Error(err))
		}
		defer mqChannel.Close()

		notifier, err = service.NewRabbitMQNotifier(mqChannel, cfg.RabbitMQQueueName, log.Named("Notifier"))
		if err != nil {
			log.Fatal("Не удалось инициализировать очередь уведомлений", zap.Error(err))
		}
		log.Info("Уведомления RabbitMQ включены", zap.String("queue", cfg.RabbitMQQueueName))
	} else {
		log.Info("RabbitMQ не сконфигурирован, уведомления отключены")
	}

	// --- Сервисы ---
	aiClient, err := service.NewAIClient(cfg, log.Named("AIClient"))
	if err != nil {
		log.Fatal("Не удалось создать AI клиент", zap.Error(err))
	}

	storyService := service.NewStoryService(aiClient, log.Named("StoryService"))
	imageClient := service.NewImageClient(cfg, log.Named("ImageClient"))
	deriver := service.NewHeuristicDeriver(log.Named("PromptDeriver"))

	bookRepo := repository.NewPgBookRepository(pool, log)
	settingsRepo := repository.NewRedisSettingsRepository(redisClient, log)

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		log.Fatal("Не удалось инициализировать отрисовку книг", zap.Error(err))
	}

	// --- WebSocket и менеджер задач ---
	wsManager := ws.NewManager(cfg.CORSOrigins, log.Named("WebSocket"))
	wsManager.Start()

	tm := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxConcurrentRuns}, log.Named("TaskManager"))
	tm.SetWebSocketNotifier(wsManager)

	pipe := pipeline.New(storyService, deriver, imageClient, bookRepo, notifier, log.Named("Pipeline"))

	// Периодическая уборка завершенных задач
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tm.CleanupTasks(taskRetention)
			case <-cleanupDone:
				return
			}
		}
	}()

	// --- HTTP сервер ---
	handler := delivery.New(cfg, tm, pipe, bookRepo, settingsRepo, deriver, imageClient, renderer, log.Named("HTTP"))
	router := delivery.NewRouter(cfg, handler, wsManager, log.Named("HTTP"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	go func() {
		log.Info("HTTP сервер запущен", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка HTTP сервера", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Остановка сервера...")

	close(cleanupDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Сначала даем идущей генерации шанс завершиться
	if err := tm.Shutdown(shutdownCtx); err != nil {
		log.Warn("Менеджер задач остановлен принудительно", zap.Error(err))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP сервер остановлен принудительно", zap.Error(err))
	}

	log.Info("Сервер остановлен")
}
