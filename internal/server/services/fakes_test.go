package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/cryptox"
	"github.com/dmitrijs2005/ulpt/internal/dbx"
	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/auth"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errBoom = errors.New("boom")

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	failGet error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{}}
}

func (f *fakeUsers) put(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	f.byID[u.ID] = &cp
	return u
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeUsers) List(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	u.Validated = true
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*models.RefreshToken
	fail    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*models.RefreshToken{}}
}

func (l *fakeLedger) Create(_ context.Context, userID, token string, validity time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.records[cryptox.TokenDigest(token)] = &models.RefreshToken{
		TokenDigest: cryptox.TokenDigest(token),
		UserID:      userID,
		Expires:     time.Now().Add(validity),
	}
	return nil
}

func (l *fakeLedger) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	rt, ok := l.records[cryptox.TokenDigest(token)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rt
	return &cp, nil
}

func (l *fakeLedger) Delete(_ context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	d := cryptox.TokenDigest(token)
	if _, ok := l.records[d]; !ok {
		return common.ErrorNotFound
	}
	delete(l.records, d)
	return nil
}

func (l *fakeLedger) DeleteByUser(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for d, rt := range l.records {
		if rt.UserID == userID {
			delete(l.records, d)
		}
	}
	return nil
}

func (l *fakeLedger) DeleteExpired(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return 0, l.fail
	}
	var n int64
	for d, rt := range l.records {
		if !rt.Expires.After(time.Now()) {
			delete(l.records, d)
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type fakeManager struct {
	users  *fakeUsers
	ledger *fakeLedger
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.ledger }
func (m *fakeManager) ORM() *gorm.DB                                   { return nil }

type sentMail struct {
	to, subject, html string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{to, subject, html})
	return s.err
}

func (s *fakeSender) messages() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	cfg      *config.Config
	users    *fakeUsers
	ledger   *fakeLedger
	sender   *fakeSender
	issuer   *auth.Issuer
	sessions *SessionService
	accounts *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	f := &fixture{
		db:     db,
		mock:   mock,
		cfg:    cfg,
		users:  newFakeUsers(),
		ledger: newFakeLedger(),
		sender: &fakeSender{},
		issuer: auth.NewIssuer(cfg),
	}
	m := &fakeManager{users: f.users, ledger: f.ledger}
	f.sessions = NewSessionService(db, m, f.ledger, f.issuer, logging.Nop())
	f.accounts = NewUserService(db, m, f.ledger, f.issuer, f.sender, cfg, logging.Nop())
	return f
}

// addUser stores a user with the given password; an empty password leaves
// the account unvalidated.
func (f *fixture) addUser(t *testing.T, email, password, role string) *models.User {
	t.Helper()
	u := &models.User{FirstName: "Jane", LastName: "Doe", Email: email, Role: role}
	if password != "" {
		h, err := auth.HashPassword(password)
		require.NoError(t, err)
		u.PasswordHash = h
		u.Validated = true
	}
	return f.users.put(u)
}
