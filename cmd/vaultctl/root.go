package main

import (
	"context"
	"database/sql"
	"os"
	"syscall"

	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/config"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/examvault/internal/server/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type userRegistrar interface {
	Register(ctx context.Context, email, password string, role access.Role) (*models.User, error)
}

type fileAdmin interface {
	VerifyAll(ctx context.Context) (*services.VerifyReport, error)
	Purge(ctx context.Context, id string) error
}

// backend is what the subcommands operate on.
type backend struct {
	users userRegistrar
	files fileAdmin
	close func() error
}

// openBackend loads the server configuration and connects to the
// deployment. Replaced in tests.
var openBackend = func(ctx context.Context, configPath, logLevel string) (*backend, error) {
	var args []string
	if configPath != "" {
		args = []string{"-c", configPath}
	}
	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stderr, logLevel)

	db, err := server.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	be, err := newBackend(ctx, cfg, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		db.Close()
		return nil, err
	}
	return be, nil
}

// newBackend builds the services over db. The server may be running on the
// same upload directory, so its transient files are left untouched.
func newBackend(ctx context.Context, cfg *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*backend, error) {
	svc, err := server.NewServices(ctx, cfg, logger, db, rm)
	if err != nil {
		return nil, err
	}
	return &backend{users: svc.Users, files: svc.Files, close: db.Close}, nil
}

// readPassword is a seam for tests.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

type rootOptions struct {
	configPath string
	logLevel   string
}

// withBackend opens the deployment, runs fn and closes it again.
func (o *rootOptions) withBackend(cmd *cobra.Command, fn func(*backend) error) error {
	be, err := openBackend(cmd.Context(), o.configPath, o.logLevel)
	if err != nil {
		return err
	}
	defer be.close()
	return fn(be)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "vaultctl",
		Short:        "vaultctl administers an exam vault deployment",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the server JSON or YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newUserAddCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newPurgeCmd(opts))

	return cmd
}
