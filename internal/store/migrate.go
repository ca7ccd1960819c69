package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/zeromicro/go-zero/core/logx"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrate applies every pending goose migration against db. Adapted
// from growth-server's migration bootstrap and
// ipiton-alert-history-service's MigrationManager, minus the
// dry-run/out-of-order knobs that service needs and trustgate doesn't.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(gooseLogAdapter{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type gooseLogAdapter struct{}

func (gooseLogAdapter) Fatalf(format string, v ...interface{}) { logx.Errorf(format, v...) }
func (gooseLogAdapter) Printf(format string, v ...interface{}) { logx.Infof(format, v...) }
