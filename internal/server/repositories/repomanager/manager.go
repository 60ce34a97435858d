package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/exams"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Exams(db dbx.DBTX) exams.Repository
}
