// Package server initializes and runs the ULPT backend. It opens the database,
// picks the refresh-token ledger and the image store, and runs the REST API,
// the gRPC health endpoint and the ledger janitor until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/auth"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	gs "github.com/dmitrijs2005/ulpt/internal/server/grpc"
	"github.com/dmitrijs2005/ulpt/internal/server/mail"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/resources"
	"github.com/dmitrijs2005/ulpt/internal/server/rest"
	"github.com/dmitrijs2005/ulpt/internal/server/services"
	"github.com/dmitrijs2005/ulpt/internal/server/storage"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

var (
	// janitorInterval is how often expired refresh tokens are purged.
	janitorInterval = 10 * time.Minute
	// healthInterval is how often dependencies are probed for gRPC health.
	healthInterval = 15 * time.Second
	startupTimeout = 30 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	sessions *services.SessionService
	accounts *services.UserService
	router   *gin.Engine
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	if c.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	rm, err := repomanager.NewPostgresRepositoryManager(app.db)
	if err != nil {
		return err
	}
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	var ledger refreshtokens.Repository
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
		ledger = refreshtokens.NewRedisRepository(app.redis)
		app.logger.Info(ctx, "refresh tokens stored in redis", "addr", c.RedisAddr)
	} else {
		ledger = rm.RefreshTokens(app.db)
	}

	files, err := storage.New(ctx, c)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}

	issuer := auth.NewIssuer(c)
	sender := mail.NewSender(c, app.logger)

	app.sessions = services.NewSessionService(app.db, rm, ledger, issuer, app.logger)
	app.accounts = services.NewUserService(app.db, rm, ledger, issuer, sender, c, app.logger)

	if err := app.accounts.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword); err != nil {
		return err
	}

	orm := rm.ORM()
	app.router = rest.NewRouter(rest.Deps{
		Config:        c,
		Logger:        app.logger,
		Issuer:        issuer,
		Sessions:      app.sessions,
		Accounts:      app.accounts,
		Files:         files,
		Books:         resources.NewGormRepository[models.Book](orm),
		ChildProfiles: resources.NewGormRepository[models.ChildProfile](orm),
		Projects:      resources.NewGormRepository[models.Project](orm),
		BookLoans:     resources.NewGormRepository[models.BookLoan](orm, resources.WithPreload("Book")),
	})

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, app.router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.probe, healthInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// probe reports whether the stores the server depends on answer.
func (app *App) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := app.db.PingContext(ctx)
	if app.redis != nil {
		err = errors.Join(err, app.redis.Ping(ctx).Err())
	}
	return err
}

// runJanitor purges expired refresh tokens until ctx is done.
func (app *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sessions.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired refresh tokens purged", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Wait()

	// let queued account mails go out before the process exits
	app.accounts.Wait()
	app.close()

	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
