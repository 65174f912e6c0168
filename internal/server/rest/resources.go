package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/resources"
	"github.com/gin-gonic/gin"
)

// maxBodySize bounds a JSON resource payload.
const maxBodySize = 1 << 20

// access names the roles allowed to read and to write a resource.
type access struct {
	read  []string
	write []string
}

type validator interface {
	Validate() error
}

type metaClearer interface {
	ClearMeta()
}

// resourceController serves list/get/create/update/delete for one model.
// filters maps accepted query parameters to columns.
type resourceController[T any] struct {
	repo    resources.Repository[T]
	filters map[string]string
}

// registerResource mounts the five CRUD routes of T under path.
func registerResource[T any](g *gin.RouterGroup, path string, repo resources.Repository[T], a access, filters map[string]string) {
	rc := &resourceController[T]{repo: repo, filters: filters}

	read := RequireRoles(a.read...)
	write := RequireRoles(a.write...)

	rg := g.Group(path)
	rg.GET("", read, rc.list)
	rg.GET("/:id", read, rc.get)
	rg.POST("", write, rc.create)
	rg.PUT("/:id", write, rc.update)
	rg.DELETE("/:id", write, rc.delete)
}

func (rc *resourceController[T]) list(c *gin.Context) {
	filters := map[string]any{}
	for param, column := range rc.filters {
		if v := c.Query(param); v != "" {
			filters[column] = v
		}
	}

	items, err := rc.repo.List(c.Request.Context(), filters)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (rc *resourceController[T]) get(c *gin.Context) {
	item, err := rc.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (rc *resourceController[T]) create(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	item := new(T)
	if err := json.Unmarshal(body, item); err != nil {
		abortWithError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}
	if m, ok := any(item).(metaClearer); ok {
		m.ClearMeta()
	}
	if v, ok := any(item).(validator); ok {
		if err := v.Validate(); err != nil {
			abortWithError(c, err)
			return
		}
	}

	if err := rc.repo.Create(c.Request.Context(), item); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// update writes only the fields present in the body.
func (rc *resourceController[T]) update(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	var present map[string]json.RawMessage
	item := new(T)
	if json.Unmarshal(body, &present) != nil || json.Unmarshal(body, item) != nil {
		abortWithError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}

	keys := make([]string, 0, len(present))
	for k := range present {
		keys = append(keys, k)
	}

	updated, err := rc.repo.Update(c.Request.Context(), c.Param("id"), item, resources.UpdatableFields[T](keys))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (rc *resourceController[T]) delete(c *gin.Context) {
	if err := rc.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "deleted"})
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: unreadable body", common.ErrorValidation))
		return nil, false
	}
	if len(body) > maxBodySize {
		abortWithError(c, fmt.Errorf("%w: body too large", common.ErrorValidation))
		return nil, false
	}
	return body, true
}
