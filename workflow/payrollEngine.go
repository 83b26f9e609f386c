package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/models/reports"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errNoArtifactStore = errors.New("artifact store is not configured")

// PayrollEngine runs the draft -> processed -> locked lifecycle of monthly payroll.
type PayrollEngine struct {
	Repo   models.Repository
	Locker *KeyLocker
	Store  utils.ArtifactStore
	Policy config.HRPolicy
	Logger *logrus.Logger
	Now    func() time.Time
}

// RunSummary reports a batch calculation.
type RunSummary struct {
	Calculated int            `json:"calculated"`
	Skipped    int            `json:"skipped"`
	Failed     map[int]string `json:"failed"`
}

func (p *PayrollEngine) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now()
}

// Calculate writes or overwrites the draft record of the period.
func (p *PayrollEngine) Calculate(ctx context.Context, employeeId, year int, month time.Month) (*models.PayrollRecord, error) {
	ctx, span := tracer.Start(ctx, "payroll.calculate", trace.WithAttributes(
		attribute.Int("employee_id", employeeId),
		attribute.Int("year", year),
		attribute.Int("month", int(month)),
	))
	defer span.End()

	if err := models.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	unlock, err := p.Locker.Lock(ctx, payrollKey(employeeId, year, month))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.PayrollRecord
	err = p.Repo.Transaction(ctx, func(tx models.Repository) error {
		emp, err := tx.GetEmployee(ctx, employeeId)
		if err != nil {
			return err
		}
		existing, err := tx.FindPayroll(ctx, employeeId, year, int(month))
		if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
			return err
		}
		if existing != nil {
			if err := existing.CheckRecalculable(); err != nil {
				return err
			}
		}

		first, last := models.MonthRange(year, month)
		attendance, err := tx.ListAttendance(ctx, employeeId, first, last)
		if err != nil {
			return err
		}
		leaves, err := tx.ListApprovedLeaves(ctx, employeeId, first, last)
		if err != nil {
			return err
		}
		rec, err := models.CalculatePayroll(models.PayrollInput{
			Employee:   emp,
			Year:       year,
			Month:      month,
			Attendance: attendance,
			Leaves:     leaves,
			Policy:     p.Policy,
			Now:        p.now(),
		})
		if err != nil {
			return err
		}
		if existing != nil {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			if err := tx.UpdatePayroll(ctx, rec); err != nil {
				return err
			}
		} else if err := tx.CreatePayroll(ctx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

// CalculateAll recalculates the month for every active employee. Processed and locked
// periods are skipped.
func (p *PayrollEngine) CalculateAll(ctx context.Context, year int, month time.Month) (*RunSummary, error) {
	if err := models.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	employees, err := p.Repo.ListActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{Failed: map[int]string{}}
	for _, emp := range employees {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		_, err := p.Calculate(ctx, emp.ID, year, month)
		switch {
		case err == nil:
			summary.Calculated++
		case errors.Is(err, models.ErrLocked), errors.Is(err, models.ErrAlreadyProcessed):
			summary.Skipped++
		default:
			summary.Failed[emp.ID] = err.Error()
			config.LogError(p.Logger, "payrollEngine.go", "CalculateAll", "Calculate", emp.ID, err)
		}
	}
	return summary, nil
}

// Process renders and stores the salary statement, then moves the draft to processed.
func (p *PayrollEngine) Process(ctx context.Context, payrollId, processorId int) (*models.PayrollRecord, error) {
	ctx, span := tracer.Start(ctx, "payroll.process", trace.WithAttributes(attribute.Int("payroll_id", payrollId)))
	defer span.End()

	if p.Store == nil {
		return nil, errNoArtifactStore
	}
	result, err := p.transition(ctx, payrollId, func(tx models.Repository, rec *models.PayrollRecord) error {
		switch rec.Status {
		case models.PayrollStatusDraft:
		case models.PayrollStatusLocked:
			return models.ErrLocked
		default:
			return models.ErrInvalidTransition
		}
		emp, err := tx.GetEmployee(ctx, rec.EmployeeId)
		if err != nil {
			return err
		}
		data, err := reports.RenderSalaryStatement(rec, emp)
		if err != nil {
			return fmt.Errorf("render salary statement: %w", err)
		}
		ref, err := p.Store.Put(ctx, statementObjectName(rec, emp), reports.XlsxContentType, data)
		if err != nil {
			return fmt.Errorf("store salary statement: %w", err)
		}
		return rec.MarkProcessed(ref, processorId, p.now())
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

// Lock freezes a processed record.
func (p *PayrollEngine) Lock(ctx context.Context, payrollId, lockerId int) (*models.PayrollRecord, error) {
	return p.transition(ctx, payrollId, func(_ models.Repository, rec *models.PayrollRecord) error {
		return rec.MarkLocked(lockerId, p.now())
	})
}

func (p *PayrollEngine) transition(ctx context.Context, payrollId int, apply func(tx models.Repository, rec *models.PayrollRecord) error) (*models.PayrollRecord, error) {
	current, err := p.Repo.GetPayroll(ctx, payrollId)
	if err != nil {
		return nil, err
	}
	year, month := current.Period()
	unlock, err := p.Locker.Lock(ctx, payrollKey(current.EmployeeId, year, month))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.PayrollRecord
	err = p.Repo.Transaction(ctx, func(tx models.Repository) error {
		rec, err := tx.GetPayroll(ctx, payrollId)
		if err != nil {
			return err
		}
		if err := apply(tx, rec); err != nil {
			return err
		}
		if err := tx.UpdatePayroll(ctx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.Logger.WithFields(logrus.Fields{
		"field":       "PayrollEngine",
		"payroll_id":  payrollId,
		"employee_id": result.EmployeeId,
		"status":      result.Status,
	}).Info("payroll status changed")
	return result, nil
}

func (p *PayrollEngine) Get(ctx context.Context, payrollId int) (*models.PayrollRecord, error) {
	return p.Repo.GetPayroll(ctx, payrollId)
}

func (p *PayrollEngine) List(ctx context.Context, year int, month time.Month) ([]*models.PayrollRecord, error) {
	if err := models.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	return p.Repo.ListPayroll(ctx, year, int(month))
}

// Export renders the month's payroll register workbook.
func (p *PayrollEngine) Export(ctx context.Context, year int, month time.Month) ([]byte, error) {
	records, err := p.List(ctx, year, month)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.EmployeeId)
	}
	employees, err := p.Repo.GetEmployeesByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*models.Employee, len(employees))
	for _, emp := range employees {
		byId[emp.ID] = emp
	}
	return reports.RenderPayrollRegister(year, month, records, byId)
}

func statementObjectName(rec *models.PayrollRecord, emp *models.Employee) string {
	return fmt.Sprintf("payroll/%04d-%02d/%s-%d.xlsx", rec.Year, rec.Month, emp.EmployeeCode, rec.ID)
}
