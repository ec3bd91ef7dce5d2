package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed seed.sql
var seedSQL string

// Migrate executes all pending database migrations
func (s *Store) Migrate(logger *zap.Logger) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Info("Checking for pending migrations...")

	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Migrations completed successfully")
	return nil
}

// Seed loads demo users, payment methods and products into empty tables
func (s *Store) Seed(ctx context.Context, logger *zap.Logger) error {
	if _, err := s.db.ExecContext(ctx, seedSQL); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	logger.Info("Seed data loaded")
	return nil
}
