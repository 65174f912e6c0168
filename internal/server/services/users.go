package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/cryptox"
	"github.com/dmitrijs2005/ulpt/internal/dbx"
	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/auth"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	mailer "github.com/dmitrijs2005/ulpt/internal/server/mail"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/repomanager"
)

// MinPasswordLength is the shortest password accepted by set-password.
const MinPasswordLength = 8

// mailTimeout bounds one background delivery.
var mailTimeout = 30 * time.Second

// UserInput carries profile fields. Nil pointers leave a field untouched on
// update; on create they mean empty (or the default role).
type UserInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string
	Project   *string
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ledger      refreshtokens.Repository
	issuer      *auth.Issuer
	sender      mailer.Sender
	frontendURL string
	linkTTL     time.Duration
	logger      logging.Logger

	// pending tracks background mail deliveries
	pending sync.WaitGroup
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, ledger refreshtokens.Repository,
	issuer *auth.Issuer, sender mailer.Sender, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		ledger:      ledger,
		issuer:      issuer,
		sender:      sender,
		frontendURL: cfg.FrontendURL,
		linkTTL:     cfg.PasswordTokenValidityDuration,
		logger:      logger.With("module", "user_service"),
	}
}

// Create adds an unvalidated account without a password and mails the
// create-account link. The mail is sent in the background; a delivery
// failure is logged and does not undo the creation.
func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	user := &models.User{Role: models.RoleSimple}
	if err := apply(user, in); err != nil {
		return nil, err
	}
	if user.Email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := s.issuer.IssuePasswordToken(created.ID, created.Email, cryptox.Fingerprint(created.PasswordHash))
	if err != nil {
		return nil, fmt.Errorf("error issuing password token: %w", err)
	}
	msg, err := mailer.CreateAccount(s.frontendURL, token, s.linkTTL)
	if err != nil {
		return nil, fmt.Errorf("error rendering mail: %w", err)
	}
	s.dispatch(ctx, created.Email, msg)

	s.logger.Info(ctx, "user created", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// Update changes profile fields and role. Passwords are never set here;
// an admin sends a reset link instead.
func (s *UserService) Update(ctx context.Context, id string, in UserInput) (*models.User, error) {
	return s.update(ctx, id, in)
}

// UpdateMe lets a user edit their own profile. The role cannot be changed.
func (s *UserService) UpdateMe(ctx context.Context, id string, in UserInput) (*models.User, error) {
	in.Role = nil
	return s.update(ctx, id, in)
}

func (s *UserService) update(ctx context.Context, id string, in UserInput) (*models.User, error) {
	return dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := apply(user, in); err != nil {
			return nil, err
		}
		return repo.Update(ctx, user)
	})
}

// Delete removes the account and revokes its refresh tokens.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting user: %w", err)
	}

	if err := s.ledger.DeleteByUser(ctx, id); err != nil {
		s.logger.Warn(ctx, "refresh tokens of deleted user not revoked", "user_id", id, "error", err)
	}

	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// SetPassword consumes a create-account or reset-password token. The token
// must verify and its fingerprint must match the stored password state, which
// makes it single-use. Every token problem is reported as
// common.ErrInvalidPasswordToken.
func (s *UserService) SetPassword(ctx context.Context, token, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}

	claims, err := s.issuer.ParsePasswordToken(token)
	if err != nil {
		return common.ErrInvalidPasswordToken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if auth.IsHashTooLong(err) {
			return fmt.Errorf("%w: password is too long", common.ErrorValidation)
		}
		return fmt.Errorf("error hashing password: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidPasswordToken
			}
			return err
		}

		if !strings.EqualFold(user.Email, claims.Email) ||
			!cryptox.Equal(cryptox.Fingerprint(user.PasswordHash), claims.Fingerprint) {
			return common.ErrInvalidPasswordToken
		}

		return repo.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidPasswordToken) {
			return err
		}
		return fmt.Errorf("error setting password: %w", err)
	}

	s.logger.Info(ctx, "password set", "user_id", claims.UserID)
	return nil
}

// ResetPassword mails a new password link to the user. The account keeps
// its validated flag and current password until the link is used.
func (s *UserService) ResetPassword(ctx context.Context, userID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	token, err := s.issuer.IssuePasswordToken(user.ID, user.Email, cryptox.Fingerprint(user.PasswordHash))
	if err != nil {
		return fmt.Errorf("error issuing password token: %w", err)
	}
	msg, err := mailer.ResetPassword(s.frontendURL, token, s.linkTTL)
	if err != nil {
		return fmt.Errorf("error rendering mail: %w", err)
	}
	s.dispatch(ctx, user.Email, msg)

	return nil
}

// EnsureAdmin creates a validated admin with the given credentials unless an
// account with that email already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}

	repo := s.repomanager.Users(s.db)
	_, err := repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Debug(ctx, "bootstrap admin already exists", "email", email)
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error looking up admin: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("error hashing admin password: %w", err)
	}

	_, err = repo.Create(ctx, &models.User{
		FirstName:    "Admin",
		LastName:     "User",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Validated:    true,
	})
	if err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
		return fmt.Errorf("error creating admin: %w", err)
	}

	s.logger.Info(ctx, "bootstrap admin created", "email", email)
	return nil
}

// Wait blocks until background mail deliveries have finished.
func (s *UserService) Wait() {
	s.pending.Wait()
}

func (s *UserService) dispatch(ctx context.Context, to string, msg mailer.Message) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
		defer cancel()

		if err := s.sender.Send(ctx, to, msg.Subject, msg.HTML); err != nil {
			s.logger.Error(ctx, "mail delivery failed", "to", to, "subject", msg.Subject, "error", err)
		}
	}()
}

func apply(u *models.User, in UserInput) error {
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Project != nil {
		u.Project = strings.TrimSpace(*in.Project)
	}
	if in.Email != nil {
		addr, err := mail.ParseAddress(strings.TrimSpace(*in.Email))
		if err != nil || addr.Name != "" {
			return fmt.Errorf("%w: invalid email", common.ErrorValidation)
		}
		u.Email = addr.Address
	}
	if in.Role != nil {
		if !models.ValidRole(*in.Role) {
			return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, *in.Role)
		}
		u.Role = *in.Role
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLength)
	}
	return nil
}
