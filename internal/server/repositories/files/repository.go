package files

import (
	"context"

	"github.com/dmitrijs2005/examvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.StoredFile) error
	GetByID(ctx context.Context, id string) (*models.StoredFile, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.StoredFile, error)
	ListAll(ctx context.Context) ([]*models.StoredFile, error)
	Delete(ctx context.Context, id string) error
}
