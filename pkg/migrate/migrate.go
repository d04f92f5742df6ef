package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written by `cmd/migrate -cmd=create`.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrations embed: %v", err))
	}
	return sub
}

// Runner applies goose migrations from a filesystem to one database.
type Runner struct {
	DB      *sql.DB
	Dialect string
	FS      fs.FS
}

// NewRunner picks the goose dialect from the configured DB driver. A nil
// fsys means the embedded migrations.
func NewRunner(db *sql.DB, driver string, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys = Embedded()
	}
	return &Runner{DB: db, Dialect: dialect, FS: fsys}, nil
}

// Dialect maps a db driver name onto the goose dialect.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pgx":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

func (r *Runner) prepare() error {
	goose.SetBaseFS(r.FS)
	if err := goose.SetDialect(r.Dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command (up, down, status, redo, reset).
func (r *Runner) Run(ctx context.Context, command string, args ...string) error {
	if err := r.prepare(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, r.DB, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	return r.Run(ctx, "up")
}

// ToVersion migrates up or down until the database sits at targetVersion.
func (r *Runner) ToVersion(ctx context.Context, targetVersion string) error {
	target, err := strconv.ParseInt(strings.TrimSpace(targetVersion), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	if err := r.prepare(); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, r.DB)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, r.DB, ".", target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, r.DB, ".", target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

// Version reports the currently applied migration version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	if err := r.prepare(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, r.DB)
}
