package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/palchat/backend/internal/db"
	"github.com/palchat/backend/internal/migrations"
)

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	provider, err := migrations.NewProvider(sqlDB)
	if err != nil {
		return err
	}

	switch command {
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		for _, s := range statuses {
			mark := " "
			if s.State == goose.StateApplied {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, s.Source.Path)
		}
		return nil
	case "up", "":
		results, err := applyMigrationsWithRetry(ctx, provider.Up)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no migrations to apply")
		}
		for _, r := range results {
			fmt.Printf("applied migration %s (%s)\n", r.Source.Path, r.Duration)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// applyMigrationsWithRetry reruns up after transient failures. Goose records
// each applied version, so a retry resumes at the first pending migration.
func applyMigrationsWithRetry(ctx context.Context, up func(context.Context) ([]*goose.MigrationResult, error)) ([]*goose.MigrationResult, error) {
	var applied []*goose.MigrationResult
	var attempt int
	for attempt = 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return applied, ctx.Err()
			case <-timer.C:
			}
		}

		results, err := up(ctx)
		applied = append(applied, results...)
		if err == nil {
			return applied, nil
		}
		if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
			fmt.Printf("transient error applying migrations (attempt %d/%d): %v\n", attempt+1, migrationMaxRetries, err)
			continue
		}
		return applied, fmt.Errorf("apply migrations: %w", err)
	}

	return applied, fmt.Errorf("apply migrations: exceeded max retries (%d)", attempt)
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	return false
}
