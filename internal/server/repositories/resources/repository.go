// Package resources is the storage side of the generic CRUD controller:
// one gorm-backed repository type instantiated per resource model.
package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/dbx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores one kind of resource.
type Repository[T any] interface {
	// List returns all rows matching the column=value filters, oldest first.
	List(ctx context.Context, filters map[string]any) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, item *T) error
	// Update writes only the named struct fields and returns the stored row.
	Update(ctx context.Context, id string, item *T, fields []string) (*T, error)
	Delete(ctx context.Context, id string) error
}

// GormRepository implements Repository with gorm.
type GormRepository[T any] struct {
	db      *gorm.DB
	preload []string
}

// Option customizes a GormRepository.
type Option func(*options)

type options struct {
	preload []string
}

// WithPreload loads the named associations on List and Get. Associations are
// read-only through the repository: Create and Update never write them.
func WithPreload(associations ...string) Option {
	return func(o *options) { o.preload = append(o.preload, associations...) }
}

func NewGormRepository[T any](db *gorm.DB, opts ...Option) *GormRepository[T] {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return &GormRepository[T]{db: db, preload: o.preload}
}

func (r *GormRepository[T]) query(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	for _, a := range r.preload {
		q = q.Preload(a)
	}
	return q
}

// List treats a filter value the column cannot hold (a malformed uuid) as a
// validation error rather than a missing row.
func (r *GormRepository[T]) List(ctx context.Context, filters map[string]any) ([]T, error) {
	items := make([]T, 0)
	q := r.query(ctx)
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	if err := q.Order("created_at").Find(&items).Error; err != nil {
		if dbx.IsInvalidText(err) {
			return nil, fmt.Errorf("%w: malformed filter value", common.ErrorValidation)
		}
		return nil, mapError(err)
	}
	return items, nil
}

func (r *GormRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	item := new(T)
	if err := r.query(ctx).Where("id = ?", id).Take(item).Error; err != nil {
		return nil, mapError(err)
	}
	return item, nil
}

func (r *GormRepository[T]) Create(ctx context.Context, item *T) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		return mapError(err)
	}
	return nil
}

func (r *GormRepository[T]) Update(ctx context.Context, id string, item *T, fields []string) (*T, error) {
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).
			Select(fields).Omit(clause.Associations).Updates(item)
		if res.Error != nil {
			return nil, mapError(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, common.ErrorNotFound
		}
	}
	return r.Get(ctx, id)
}

func (r *GormRepository[T]) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// mapError translates gorm and PostgreSQL errors. A malformed id (22P02)
// cannot match any row, so it is reported as not found.
func mapError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), dbx.IsInvalidText(err):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err):
		return common.ErrorAlreadyExists
	case dbx.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced record does not exist", common.ErrorValidation)
	}
	return fmt.Errorf("db error: %w", err)
}
