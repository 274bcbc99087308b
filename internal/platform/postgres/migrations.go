package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date using the embedded goose migrations.
// It opens its own database/sql connection since goose does not speak pgx
// natively.
func Migrate(ctx context.Context, dsn string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection for migrations: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("failed to close migration connection",
				slog.String("error", cerr.Error()))
		}
	}()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{log: log.With(slog.String("component", "migrations"))})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// slogGooseLogger adapts goose's logger interface onto slog.
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
