package workflow

import (
	"context"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/sirupsen/logrus"
)

// EmployeeDirectory maintains the roster. Employees are deactivated, never deleted.
type EmployeeDirectory struct {
	Repo   models.Repository
	Policy config.HRPolicy
	Logger *logrus.Logger
}

func (d *EmployeeDirectory) normalise(input *models.NewEmployee) error {
	if err := input.Validate(); err != nil {
		return err
	}
	phone, err := utils.FormatE164(input.Phone, d.Policy.PhoneRegion)
	if err != nil {
		return models.NewValidationError("phone", err)
	}
	input.Phone = phone
	return nil
}

func (d *EmployeeDirectory) Create(ctx context.Context, input models.NewEmployee) (*models.Employee, error) {
	if err := d.normalise(&input); err != nil {
		return nil, err
	}
	emp := &models.Employee{}
	input.Apply(emp)
	if err := d.Repo.CreateEmployee(ctx, emp); err != nil {
		return nil, err
	}
	return emp, nil
}

func (d *EmployeeDirectory) Update(ctx context.Context, employeeId int, input models.NewEmployee) (*models.Employee, error) {
	if err := d.normalise(&input); err != nil {
		return nil, err
	}
	var result *models.Employee
	err := d.Repo.Transaction(ctx, func(tx models.Repository) error {
		emp, err := tx.GetEmployee(ctx, employeeId)
		if err != nil {
			return err
		}
		input.Apply(emp)
		if err := tx.UpdateEmployee(ctx, emp); err != nil {
			return err
		}
		result = emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Deactivate soft-deletes the employee and expires any outstanding code; payroll history keeps referencing it.
func (d *EmployeeDirectory) Deactivate(ctx context.Context, employeeId int) (*models.Employee, error) {
	var result *models.Employee
	err := d.Repo.Transaction(ctx, func(tx models.Repository) error {
		emp, err := tx.GetEmployee(ctx, employeeId)
		if err != nil {
			return err
		}
		emp.IsActive = false
		if err := tx.UpdateEmployee(ctx, emp); err != nil {
			return err
		}
		// an outstanding code must not outlive the employee
		if err := tx.ExpireValidChallenges(ctx, employeeId); err != nil {
			return err
		}
		result = emp
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.Logger.WithFields(logrus.Fields{
		"field":         "EmployeeDirectory",
		"employee_id":   employeeId,
		"employee_code": result.EmployeeCode,
	}).Info("employee deactivated")
	return result, nil
}

func (d *EmployeeDirectory) Get(ctx context.Context, employeeId int) (*models.Employee, error) {
	return d.Repo.GetEmployee(ctx, employeeId)
}

func (d *EmployeeDirectory) GetMany(ctx context.Context, ids []int) ([]*models.Employee, error) {
	return d.Repo.GetEmployeesByIds(ctx, ids)
}

func (d *EmployeeDirectory) ListActive(ctx context.Context) ([]*models.Employee, error) {
	return d.Repo.ListActiveEmployees(ctx)
}
