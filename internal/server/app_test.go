package server

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := logging.Nop()
	ledger := refreshtokens.NewRedisRepository(rdb)

	return &App{
		logger:   logger,
		db:       db,
		redis:    rdb,
		sessions: services.NewSessionService(db, nil, ledger, nil, logger),
	}, mock, mr
}

func TestProbe(t *testing.T) {
	app, mock, mr := newTestApp(t)

	mock.ExpectPing()
	assert.NoError(t, app.probe(context.Background()))

	mock.ExpectPing()
	mr.SetError("LOADING")
	assert.Error(t, app.probe(context.Background()))

	mr.SetError("")
	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.ErrorIs(t, app.probe(context.Background()), assert.AnError)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	app, _, _ := newTestApp(t)

	old := janitorInterval
	janitorInterval = 5 * time.Millisecond
	t.Cleanup(func() { janitorInterval = old })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.runJanitor(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
