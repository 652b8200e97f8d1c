package clickhouse

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	applogger "TFTracker/pkg/logger"

	"github.com/pressly/goose/v3"
)

// Migrator applies goose migrations embedded in fsys.
type Migrator struct {
	client *Client
	fsys   fs.FS
	l      *applogger.Logger
}

func NewMigrator(client *Client, fsys fs.FS, l *applogger.Logger) *Migrator {
	if l == nil {
		l = applogger.Nop()
	}
	return &Migrator{client: client, fsys: fsys, l: l}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	goose.SetLogger(gooseLogger{l: m.l})
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.client.DB(), "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, m.client.DB(), "."); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status logs the applied state of every migration.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, m.client.DB(), "."); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through the application logger.
type gooseLogger struct {
	l *applogger.Logger
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Error("goose fatal", applogger.String("msg", strings.TrimSpace(fmt.Sprintf(format, v...))))
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
