// Package server wires the configuration, the metadata database, the vault
// and the services together and runs the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/config"
	"github.com/dmitrijs2005/examvault/internal/server/httpapi"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/examvault/internal/server/services"
	"github.com/dmitrijs2005/examvault/internal/vault"
)

const pingTimeout = 5 * time.Second

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Services bundles what both the server and the admin tool need.
type Services struct {
	Users *services.UserService
	Files *services.FileService
	Exams *services.ExamService
	Vault *vault.Vault
}

// OpenDB connects to PostgreSQL through pgx and checks the connection.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// NewServices migrates the schema, opens the vault and builds the services.
// It leaves the vault's transient and partial files alone, so it is safe to
// call while a server is running on the same upload directory.
func NewServices(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*Services, error) {
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	v, err := vault.New(vault.Config{Secret: cfg.EncryptionKey, RootDir: cfg.UploadDir, Logger: logger})
	if err != nil {
		return nil, err
	}

	files := services.NewFileService(db, rm, v, logger)
	return &Services{
		Users: services.NewUserService(db, rm, cfg, logger),
		Files: files,
		Exams: services.NewExamService(db, rm, files, logger),
		Vault: v,
	}, nil
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	services *Services
}

// NewApp connects to the database and builds every component. Any error is
// fatal for the process.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, cfg, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	svc, err := NewServices(ctx, cfg, logger, db, rm)
	if err != nil {
		return nil, err
	}
	// only the server owns in-flight files, so leftovers of its previous run
	// are cleared here and never from admin tooling
	if _, err := svc.Vault.SweepTransient(ctx); err != nil {
		return nil, err
	}
	return &App{config: cfg, logger: logger, db: db, services: svc}, nil
}

// Run serves the API until ctx is cancelled or the process receives
// SIGINT, SIGTERM or SIGQUIT, then releases the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	srv := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.services.Users, app.services.Files, app.services.Exams,
		app.config.JWTSecret, app.config.MaxUploadSize)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
