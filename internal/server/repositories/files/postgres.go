package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/server/models"
)

const selectColumns = `SELECT id, kind, owner_id, title, original_name, ciphertext_path, size, created_at FROM stored_files`

// PostgresRepository implements stored file metadata over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create records the metadata of a freshly ingested blob.
func (r *PostgresRepository) Create(ctx context.Context, file *models.StoredFile) error {
	query := `
		INSERT INTO stored_files (id, kind, owner_id, title, original_name, ciphertext_path, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, string(file.Kind), file.OwnerID, file.Title, file.OriginalName, file.CiphertextPath, file.Size, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.StoredFile, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)

	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// ListByOwner returns the files uploaded by ownerID, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.StoredFile, error) {
	return r.list(ctx, selectColumns+` WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// ListAll returns every file, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.StoredFile, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at DESC`)
}

// Delete removes the row for id. Exactly one row must be affected.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stored_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.StoredFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.StoredFile, error) {
	var (
		f    models.StoredFile
		kind string
	)
	if err := s.Scan(&f.ID, &kind, &f.OwnerID, &f.Title, &f.OriginalName, &f.CiphertextPath, &f.Size, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Kind = models.DocumentKind(kind)
	return &f, nil
}
