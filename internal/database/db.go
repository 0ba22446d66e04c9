// Package database инициализирует пул PostgreSQL и применяет миграции.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

// InitDB создает пул соединений, проверяет его и применяет миграции.
func InitDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MaxConnIdleTime = cfg.DBIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула соединений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("БД недоступна: %w", err)
	}

	logger.Info("Подключение к БД установлено",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
		zap.Int("max_conns", cfg.DBMaxConns))

	if err := ApplyMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}
	logger.Info("Миграции применены")

	return pool, nil
}

// CloseDB закрывает пул соединений.
func CloseDB(pool *pgxpool.Pool, logger *zap.Logger) {
	if pool != nil {
		pool.Close()
		logger.Info("Соединение с БД закрыто")
	}
}
