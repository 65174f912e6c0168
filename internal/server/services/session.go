// Package services contains server-side business logic. SessionService runs
// the login / refresh / logout lifecycle; UserService manages accounts and
// their password links.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/auth"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dmitrijs2005/ulpt/internal/server/services"

// LoginResult is what a successful login hands to the transport layer.
// Tokens go to cookies only; User is the minimal profile for the body.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// Status describes the caller's session without failing.
type Status struct {
	LoggedIn bool
	Expired  bool
	Role     string
}

type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      refreshtokens.Repository
	issuer      *auth.Issuer
	logger      logging.Logger

	logins    metric.Int64Counter
	refreshes metric.Int64Counter
}

// NewSessionService wires the service. ledger is the refresh-token store
// chosen at start (PostgreSQL or Redis).
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, ledger refreshtokens.Repository,
	issuer *auth.Issuer, logger logging.Logger) *SessionService {

	meter := otel.Meter(meterName)
	logins, _ := meter.Int64Counter("ulpt.session.logins",
		metric.WithDescription("Login attempts by outcome"))
	refreshes, _ := meter.Int64Counter("ulpt.session.refreshes",
		metric.WithDescription("Access token refreshes by outcome"))

	return &SessionService{
		db:          db,
		repomanager: m,
		ledger:      ledger,
		issuer:      issuer,
		logger:      logger.With("module", "session_service"),
		logins:      logins,
		refreshes:   refreshes,
	}
}

// Login checks credentials and opens a session. Unknown email, wrong
// password and an account that never set its password all return
// common.ErrInvalidCredentials, after the same amount of bcrypt work.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.CheckDummy(password)
			s.count(ctx, s.logins, "invalid_credentials")
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	// the hash is checked first so every branch pays for one comparison
	if !auth.CheckPassword(user.PasswordHash, password) || !user.Validated {
		s.count(ctx, s.logins, "invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}

	access, refresh, err := s.issuer.IssuePair(identityOf(user))
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.ledger.Create(ctx, user.ID, refresh, s.issuer.RefreshTTL()); err != nil {
		s.logger.Error(ctx, "refresh token not recorded", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	s.count(ctx, s.logins, "ok")
	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)

	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// Refresh mints a new access token from a refresh token. The ledger is
// consulted first: a token it does not hold is unauthenticated whatever its
// signature. A held token that fails verification, or whose owner differs
// from the ledger record, is invalid.
//
// The new access token copies the refresh token's claims, so a role change
// is only seen at the next login.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		s.count(ctx, s.refreshes, "unauthenticated")
		return "", common.ErrorUnauthorized
	}

	record, err := s.ledger.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.count(ctx, s.refreshes, "unauthenticated")
			return "", common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "refresh token lookup failed", "error", err)
		return "", common.ErrorInternal
	}

	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil || claims.UserID != record.UserID {
		s.count(ctx, s.refreshes, "invalid_token")
		return "", common.ErrInvalidToken
	}

	access, err := s.issuer.IssueAccess(claims.Identity())
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return "", common.ErrorInternal
	}

	s.count(ctx, s.refreshes, "ok")
	return access, nil
}

// Logout revokes refreshToken. A missing or already revoked token yields
// common.ErrorUnauthorized and changes nothing.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return common.ErrorUnauthorized
	}

	if err := s.ledger.Delete(ctx, refreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "refresh token revocation failed", "error", err)
		return common.ErrorInternal
	}

	return nil
}

// Status inspects an access token without rejecting the request.
func (s *SessionService) Status(accessToken string) Status {
	if accessToken == "" {
		return Status{}
	}
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return Status{Expired: errors.Is(err, common.ErrTokenExpired)}
	}
	return Status{LoggedIn: true, Role: claims.Role}
}

// PurgeExpired removes dead ledger records. It is run periodically.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	return n, nil
}

func (s *SessionService) count(ctx context.Context, c metric.Int64Counter, outcome string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{ID: u.ID, Role: u.Role, FirstName: u.FirstName, LastName: u.LastName}
}
