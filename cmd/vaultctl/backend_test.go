package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/config"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noMigrations struct {
	repomanager.RepositoryManager
}

func (noMigrations) RunMigrations(context.Context, *sql.DB) error { return nil }

func TestNewBackend_LeavesServerFilesAlone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EncryptionKey = "enc"
	cfg.JWTSecret = "jwt"
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")

	inFlight := []string{
		filepath.Join(cfg.UploadDir, ".partial-2477398539"),
		filepath.Join(cfg.UploadDir, "tmp", "plain_42"),
	}
	for _, p := range inFlight {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o700))
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	}

	be, err := newBackend(context.Background(), cfg, logging.Nop{}, db, noMigrations{})
	require.NoError(t, err)
	assert.NotNil(t, be.users)
	assert.NotNil(t, be.files)

	for _, p := range inFlight {
		assert.FileExists(t, p)
	}

	require.NoError(t, be.close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
