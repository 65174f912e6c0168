// Package rest is the HTTP/JSON API consumed by the ULPT frontend: cookie
// sessions, user management, the CRUD resources and image upload.
package rest

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/ulpt/internal/logging"
	"github.com/dmitrijs2005/ulpt/internal/server/auth"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/dmitrijs2005/ulpt/internal/server/models"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/resources"
	"github.com/dmitrijs2005/ulpt/internal/server/storage"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Config        *config.Config
	Logger        logging.Logger
	Issuer        *auth.Issuer
	Sessions      Sessions
	Accounts      Accounts
	Files         storage.FileStore
	Books         resources.Repository[models.Book]
	ChildProfiles resources.Repository[models.ChildProfile]
	Projects      resources.Repository[models.Project]
	BookLoans     resources.Repository[models.BookLoan]
}

var (
	anyRole   = models.AllRoles
	adminOnly = []string{models.RoleAdmin}
)

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger.With("module", "rest")

	r := gin.New()
	// ClientIP, and so the login rate limit, only believes X-Forwarded-For
	// from these peers.
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		logger.Error(context.Background(), "invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(Recovery(logger), RequestLogger(logger), CORS(d.Config.FrontendURL))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if ls, ok := d.Files.(*storage.LocalStore); ok {
		r.Static(storage.URLPrefix, ls.Dir())
	}

	sh := &sessionHandlers{sessions: d.Sessions, cookies: newCookieJar(d.Config)}
	uh := &userHandlers{accounts: d.Accounts}
	throttle := RateLimit(d.Config.LoginRateLimit)

	api := r.Group("/api")

	// public w.r.t. the access token
	users := api.Group("/users")
	users.POST("/login", throttle, sh.login)
	users.GET("/status", sh.status)
	users.POST("/set-password", throttle, uh.setPassword)
	users.POST("/refresh-token", sh.refresh)
	users.POST("/token", sh.refresh)
	users.POST("/logout", sh.logout)

	authed := api.Group("", Authenticate(d.Issuer))

	me := authed.Group("/users")
	me.GET("/me", uh.me)
	me.PUT("/me", uh.updateMe)

	admin := authed.Group("/users", RequireRoles(adminOnly...))
	admin.POST("/add", uh.create)
	admin.GET("", uh.list)
	admin.GET("/:id", uh.get)
	admin.PUT("/:id", uh.update)
	admin.DELETE("/:id", uh.delete)
	admin.POST("/reset-password", uh.resetPassword)

	registerResource(authed, "/books", d.Books, access{read: anyRole, write: adminOnly}, nil)
	registerResource(authed, "/childProfiles", d.ChildProfiles, access{read: anyRole, write: anyRole}, nil)
	registerResource(authed, "/projects", d.Projects, access{read: anyRole, write: adminOnly}, nil)
	registerResource(authed, "/bookLoans", d.BookLoans, access{read: anyRole, write: anyRole},
		map[string]string{"childId": "child_id"})

	up := &uploadHandler{files: d.Files}
	authed.POST("/upload", RequireRoles(anyRole...), up.upload)

	return r
}
