package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/examvault/internal/vault"
)

// FileService ties encrypted blobs in the vault to their metadata rows.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *vault.Vault
	logger      logging.Logger
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, v *vault.Vault, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		vault:       v,
		logger:      logger.With("module", "files"),
	}
}

// VerifyFailure names a stored file whose blob did not authenticate.
type VerifyFailure struct {
	FileID string
	Err    error
}

// VerifyReport is the outcome of VerifyAll.
type VerifyReport struct {
	Checked  int
	Failures []VerifyFailure
}

// canUpload restricts exam topics to professors and answers to students.
func canUpload(p access.Principal, kind models.DocumentKind) bool {
	switch kind {
	case models.KindExamTopic:
		return p.Role == access.RoleProfessor
	case models.KindExamAnswer:
		return p.Role == access.RoleStudent
	default:
		return p.Role.Valid()
	}
}

// Upload encrypts r into the vault and records it as owned by p.
func (s *FileService) Upload(ctx context.Context, p access.Principal, kind models.DocumentKind, title, name string, r io.Reader) (*models.StoredFile, error) {
	return s.store(ctx, p, kind, title, name, r, nil)
}

// store ingests r, then inserts the file row and runs then in one
// transaction. When the transaction fails the blob is removed again.
func (s *FileService) store(ctx context.Context, p access.Principal, kind models.DocumentKind, title, name string, r io.Reader,
	then func(ctx context.Context, tx dbx.DBTX, f *models.StoredFile) error) (*models.StoredFile, error) {
	if _, err := models.ParseDocumentKind(string(kind)); err != nil {
		return nil, err
	}
	if !canUpload(p, kind) {
		return nil, fmt.Errorf("%w: role %q cannot upload %s files", common.ErrAccessDenied, p.Role, kind)
	}

	f, err := s.vault.Ingest(ctx, r, kind, p.ID, name)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(title); t != "" {
		f.Title = t
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Create(ctx, f); err != nil {
			return err
		}
		if then != nil {
			return then(ctx, tx, f)
		}
		return nil
	})
	if err != nil {
		if rmErr := s.vault.Remove(context.WithoutCancel(ctx), f); rmErr != nil {
			s.logger.Error(ctx, "orphaned blob", "file_id", f.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("error saving file: %w", err)
	}
	return f, nil
}

// Get returns the metadata of id without any access check.
func (s *FileService) Get(ctx context.Context, id string) (*models.StoredFile, error) {
	f, err := s.repomanager.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading file %s: %w", id, err)
	}
	return f, nil
}

// Open looks the file up and decrypts it for p. The caller must Close the
// result.
func (s *FileService) Open(ctx context.Context, p access.Principal, id string) (*vault.Transient, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.vault.Retrieve(ctx, f, p)
}

// Serve looks the file up and runs transfer over its decrypted copy, which
// is removed once transfer returns.
func (s *FileService) Serve(ctx context.Context, p access.Principal, id string, transfer func(context.Context, *vault.Transient) error) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.vault.Serve(ctx, f, p, transfer)
}

// List returns every file for professors and only their own for students.
func (s *FileService) List(ctx context.Context, p access.Principal) ([]*models.StoredFile, error) {
	repo := s.repomanager.Files(s.db)

	var (
		files []*models.StoredFile
		err   error
	)
	switch p.Role {
	case access.RoleProfessor:
		files, err = repo.ListAll(ctx)
	case access.RoleStudent:
		files, err = repo.ListByOwner(ctx, p.ID)
	default:
		return nil, common.ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}
	return files, nil
}

// Purge deletes the row of id and then its blob. The blob is only removed
// once the deletion has committed, so a failed transaction never leaves a
// row without its ciphertext. A blob that cannot be removed afterwards is
// orphaned: it is logged and reported, but the file is gone.
func (s *FileService) Purge(ctx context.Context, id string) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Files(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("error purging file %s: %w", id, err)
	}

	if err := s.vault.Remove(ctx, f); err != nil {
		s.logger.Error(ctx, "orphaned blob", "file_id", id, "path", f.CiphertextPath, "error", err)
		return fmt.Errorf("file %s deleted but its blob was not removed: %w", id, err)
	}
	s.logger.Info(ctx, "file purged", "file_id", id)
	return nil
}

// VerifyAll authenticates every stored blob and reports the ones that fail.
func (s *FileService) VerifyAll(ctx context.Context) (*VerifyReport, error) {
	files, err := s.repomanager.Files(s.db).ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}

	report := &VerifyReport{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := s.vault.Verify(ctx, f); err != nil {
			s.logger.Warn(ctx, "verify failed", "file_id", f.ID, "error", err)
			report.Failures = append(report.Failures, VerifyFailure{FileID: f.ID, Err: err})
		}
	}
	return report, nil
}
