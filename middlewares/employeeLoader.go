package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/hr_backend/models"
)

type employeeReader struct {
	source EmployeeSource
}

func (r *employeeReader) getEmployees(ctx context.Context, ids []int) []*dataloader.Result[*models.Employee] {
	results, err := r.source.GetEmployeesByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Employee](len(ids), err)
	}
	resultMap := make(map[int]*models.Employee, len(results))
	for _, e := range results {
		resultMap[e.ID] = e
	}
	loaderResults := make([]*dataloader.Result[*models.Employee], 0, len(ids))
	for _, id := range ids {
		e, ok := resultMap[id]
		if !ok {
			loaderResults = append(loaderResults, &dataloader.Result[*models.Employee]{Error: models.ErrRecordNotFound})
			continue
		}
		loaderResults = append(loaderResults, &dataloader.Result[*models.Employee]{Data: e})
	}
	return loaderResults
}

func GetEmployee(ctx context.Context, id int) (*models.Employee, error) {
	loaders := For(ctx)
	if loaders == nil {
		return nil, models.ErrRecordNotFound
	}
	return loaders.employeeLoader.Load(ctx, id)()
}

func GetEmployees(ctx context.Context, ids []int) ([]*models.Employee, []error) {
	loaders := For(ctx)
	if loaders == nil {
		return make([]*models.Employee, len(ids)), []error{models.ErrRecordNotFound}
	}
	return loaders.employeeLoader.LoadMany(ctx, ids)()
}
