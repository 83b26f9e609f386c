package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
	"github.com/sirupsen/logrus"
)

type LeaveLedger struct {
	Repo   models.Repository
	Locker *KeyLocker
	Logger *logrus.Logger
	Now    func() time.Time
}

func (l *LeaveLedger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now()
}

// Apply files a pending leave after checking it against the employee's pending and approved leave.
func (l *LeaveLedger) Apply(ctx context.Context, input models.NewLeave) (*models.LeaveRecord, error) {
	ctx, span := tracer.Start(ctx, "leave.apply")
	defer span.End()

	leave, err := input.BuildLeave()
	if err != nil {
		return nil, err
	}
	emp, err := l.Repo.GetEmployee(ctx, leave.EmployeeId)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive {
		return nil, models.NewValidationError("employee_id", errors.New("employee is inactive"))
	}

	unlock, err := l.Locker.Lock(ctx, leaveKey(leave.EmployeeId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = l.Repo.Transaction(ctx, func(tx models.Repository) error {
		existing, err := tx.FindOverlappingLeaves(ctx, leave.EmployeeId, leave.Start(), leave.End())
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.IsBlocking() && other.Overlaps(leave.Start(), leave.End()) {
				return models.ErrOverlap
			}
		}
		return tx.CreateLeave(ctx, leave)
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return leave, nil
}

func (l *LeaveLedger) Approve(ctx context.Context, leaveId, approverId int) (*models.LeaveRecord, error) {
	return l.decide(ctx, leaveId, func(leave *models.LeaveRecord) error {
		return leave.Approve(approverId, l.now())
	})
}

func (l *LeaveLedger) Reject(ctx context.Context, leaveId, approverId int, reason string) (*models.LeaveRecord, error) {
	return l.decide(ctx, leaveId, func(leave *models.LeaveRecord) error {
		return leave.Reject(approverId, reason, l.now())
	})
}

func (l *LeaveLedger) decide(ctx context.Context, leaveId int, transition func(*models.LeaveRecord) error) (*models.LeaveRecord, error) {
	current, err := l.Repo.GetLeave(ctx, leaveId)
	if err != nil {
		return nil, err
	}
	unlock, err := l.Locker.Lock(ctx, leaveKey(current.EmployeeId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.LeaveRecord
	err = l.Repo.Transaction(ctx, func(tx models.Repository) error {
		leave, err := tx.GetLeave(ctx, leaveId)
		if err != nil {
			return err
		}
		if err := transition(leave); err != nil {
			return err
		}
		if err := tx.UpdateLeave(ctx, leave); err != nil {
			return err
		}
		result = leave
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.Logger.WithFields(logrus.Fields{
		"field":       "LeaveLedger",
		"leave_id":    leaveId,
		"employee_id": result.EmployeeId,
		"status":      result.Status,
	}).Info("leave decided")
	return result, nil
}

func (l *LeaveLedger) Get(ctx context.Context, leaveId int) (*models.LeaveRecord, error) {
	return l.Repo.GetLeave(ctx, leaveId)
}

func (l *LeaveLedger) List(ctx context.Context, filter models.LeaveFilter) ([]*models.LeaveRecord, error) {
	return l.Repo.ListLeaves(ctx, filter)
}
