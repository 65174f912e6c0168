// Package refreshtokens is the refresh-token ledger: the server-side record
// of which refresh tokens are still honoured. Tokens are keyed by their
// SHA-256 digest.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/server/models"
)

// Repository defines operations for issuing, validating and revoking refresh tokens.
type Repository interface {
	// Create records token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns the record of a live token. Unknown and expired tokens both
	// yield common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete revokes a token. It returns common.ErrorNotFound when nothing
	// was revoked, so a repeated logout is harmless but observable.
	Delete(ctx context.Context, token string) error

	// DeleteByUser revokes every token of userID.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired purges records past their expiry and reports how many
	// were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
