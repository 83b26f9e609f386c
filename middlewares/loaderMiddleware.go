package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/hr_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// EmployeeSource is the batch lookup behind the employee loader.
type EmployeeSource interface {
	GetEmployeesByIds(ctx context.Context, ids []int) ([]*models.Employee, error)
}

// Loaders batch the employee lookups a list response needs into one query per request.
type Loaders struct {
	employeeLoader *dataloader.Loader[int, *models.Employee]
}

func NewLoaders(source EmployeeSource) *Loaders {
	employeeReader := &employeeReader{source: source}
	return &Loaders{
		employeeLoader: dataloader.NewBatchedLoader(
			employeeReader.getEmployees,
			dataloader.WithWait[int, *models.Employee](time.Millisecond),
		),
	}
}

func LoaderMiddleware(source EmployeeSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(source)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders, or nil outside LoaderMiddleware.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
