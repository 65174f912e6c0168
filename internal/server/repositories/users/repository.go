package users

import (
	"context"

	"github.com/dmitrijs2005/ulpt/internal/server/models"
)

// Repository is the credential store. Lookups by email are case-insensitive
// and a missing row is reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// Update writes the profile columns (names, email, role, project).
	Update(ctx context.Context, user *models.User) (*models.User, error)
	// UpdatePassword stores a new hash and marks the account validated.
	UpdatePassword(ctx context.Context, id string, hash string) error
	Delete(ctx context.Context, id string) error
}
