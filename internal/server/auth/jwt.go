// Package auth issues and verifies the three kinds of JWT used by the server
// (access, refresh and one-time password links) and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is what an access token asserts about its bearer. The values are
// trusted until the token expires; changes to the user row are not seen
// before the next refresh.
type Identity struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Claims is the payload of access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"id"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Identity returns the bearer identity carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Role: c.Role, FirstName: c.FirstName, LastName: c.LastName}
}

// PasswordClaims is the payload of create-account and reset-password links.
// Fingerprint binds the link to the password hash current at issue time.
type PasswordClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"id"`
	Email       string `json:"email"`
	Fingerprint string `json:"fp"`
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock replaces the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// Issuer signs and verifies tokens. Each token kind has its own HMAC key, so
// a token of one kind never verifies as another.
type Issuer struct {
	accessSecret   []byte
	refreshSecret  []byte
	passwordSecret []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	passwordTTL    time.Duration
	now            func() time.Time
}

// NewIssuer builds an Issuer from the token settings of cfg.
func NewIssuer(cfg *config.Config, opts ...Option) *Issuer {
	i := &Issuer{
		accessSecret:   []byte(cfg.AccessTokenSecret),
		refreshSecret:  []byte(cfg.RefreshTokenSecret),
		passwordSecret: []byte(cfg.PasswordTokenSecret),
		accessTTL:      cfg.AccessTokenValidityDuration,
		refreshTTL:     cfg.RefreshTokenValidityDuration,
		passwordTTL:    cfg.PasswordTokenValidityDuration,
		now:            time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// RefreshTTL is the lifetime of refresh tokens; ledgers and cookies use it.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair mints an access token and a refresh token for id.
func (i *Issuer) IssuePair(id Identity) (access string, refresh string, err error) {
	access, err = i.IssueAccess(id)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.sign(i.refreshSecret, i.claims(id, i.refreshTTL))
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// IssueAccess mints an access token only.
func (i *Issuer) IssueAccess(id Identity) (string, error) {
	return i.sign(i.accessSecret, i.claims(id, i.accessTTL))
}

// ParseAccess verifies an access token. It returns common.ErrTokenExpired
// for an expired but otherwise well-formed token and common.ErrInvalidToken
// for everything else.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	claims := &Claims{}
	if err := i.parse(token, i.accessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token, with the same error contract as
// ParseAccess.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	claims := &Claims{}
	if err := i.parse(token, i.refreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// IssuePasswordToken mints a one-time link token for the user. fingerprint
// must be derived from the user's current password state.
func (i *Issuer) IssuePasswordToken(userID, email, fingerprint string) (string, error) {
	now := i.now()
	return i.sign(i.passwordSecret, PasswordClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.passwordTTL)),
		},
		UserID:      userID,
		Email:       email,
		Fingerprint: fingerprint,
	})
}

// ParsePasswordToken verifies a link token.
func (i *Issuer) ParsePasswordToken(token string) (*PasswordClaims, error) {
	claims := &PasswordClaims{}
	if err := i.parse(token, i.passwordSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.Fingerprint == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) claims(id Identity, ttl time.Duration) Claims {
	now := i.now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps two tokens minted in the same second apart
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.ID,
		Role:      id.Role,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	}
}

func (i *Issuer) sign(secret []byte, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (i *Issuer) parse(token string, secret []byte, claims jwt.Claims) error {
	if token == "" {
		return common.ErrInvalidToken
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}

	return nil
}
