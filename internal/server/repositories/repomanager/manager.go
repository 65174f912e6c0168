package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ulpt/internal/dbx"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/users"
	"gorm.io/gorm"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	// ORM returns the gorm handle the resource repositories share.
	ORM() *gorm.DB
}
