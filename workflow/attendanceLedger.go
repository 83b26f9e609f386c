package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/sirupsen/logrus"
)

// AttendanceLedger owns the per (employee, date) attendance records.
type AttendanceLedger struct {
	Repo   models.Repository
	Locker *KeyLocker
	Policy config.HRPolicy
	Logger *logrus.Logger
	Now    func() time.Time
}

type MarkDayInput struct {
	EmployeeId int                     `json:"employee_id" binding:"required"`
	Date       time.Time               `json:"date" binding:"required"`
	Status     models.AttendanceStatus `json:"status" binding:"required"`
}

func (l *AttendanceLedger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now()
}

// markScan applies a verified scan inside the caller's transaction. The caller holds the
// attendance key of (employeeId, date).
func (l *AttendanceLedger) markScan(ctx context.Context, tx models.Repository, employeeId int, date time.Time, scan models.Scan) (models.ScanType, *models.AttendanceRecord, error) {
	record, err := tx.FindAttendance(ctx, employeeId, date)
	if errors.Is(err, models.ErrRecordNotFound) {
		record = models.NewAttendanceRecord(employeeId, date, models.AttendanceStatusPresent)
		record.ApplyCheckIn(scan)
		if err := tx.CreateAttendance(ctx, record); err != nil {
			return "", nil, err
		}
		return models.ScanTypeCheckIn, record, nil
	}
	if err != nil {
		return "", nil, err
	}

	// a pre-marked day (absent, holiday) without scans opens with this scan
	if record.CheckInAt == nil {
		record.ApplyCheckIn(scan)
		if err := tx.UpdateAttendance(ctx, record); err != nil {
			return "", nil, err
		}
		return models.ScanTypeCheckIn, record, nil
	}

	if err := record.ApplyCheckOut(scan, l.Policy); err != nil {
		return "", nil, err
	}
	if err := tx.UpdateAttendance(ctx, record); err != nil {
		return "", nil, err
	}
	return models.ScanTypeCheckOut, record, nil
}

// Correct overwrites fields of a record outside the scan flow and stamps the corrector.
func (l *AttendanceLedger) Correct(ctx context.Context, recordId int, correction models.AttendanceCorrection, correctorId int) (*models.AttendanceRecord, error) {
	ctx, span := tracer.Start(ctx, "attendance.correct")
	defer span.End()

	current, err := l.Repo.GetAttendance(ctx, recordId)
	if err != nil {
		return nil, err
	}
	unlock, err := l.Locker.Lock(ctx, attendanceKey(current.EmployeeId, current.Date()))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.AttendanceRecord
	err = l.Repo.Transaction(ctx, func(tx models.Repository) error {
		record, err := tx.GetAttendance(ctx, recordId)
		if err != nil {
			return err
		}
		if err := correction.Apply(record, l.Policy); err != nil {
			return err
		}
		record.MarkCorrected(correctorId, l.now())
		if err := tx.UpdateAttendance(ctx, record); err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	l.Logger.WithFields(logrus.Fields{
		"field":        "AttendanceLedger",
		"record_id":    recordId,
		"employee_id":  result.EmployeeId,
		"corrected_by": correctorId,
	}).Info("attendance corrected")
	return result, nil
}

// MarkDay records a day-level status without scans. Existing scan times are kept.
func (l *AttendanceLedger) MarkDay(ctx context.Context, input MarkDayInput, correctorId int) (*models.AttendanceRecord, error) {
	if !input.Status.IsValid() {
		return nil, models.NewValidationError("status", errors.New("unknown attendance status"))
	}
	if input.EmployeeId <= 0 {
		return nil, models.NewValidationError("employee_id", errors.New("employee is required"))
	}
	date := models.TruncateDate(input.Date)
	if _, err := l.Repo.GetEmployee(ctx, input.EmployeeId); err != nil {
		return nil, err
	}
	unlock, err := l.Locker.Lock(ctx, attendanceKey(input.EmployeeId, date))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *models.AttendanceRecord
	err = l.Repo.Transaction(ctx, func(tx models.Repository) error {
		record, err := tx.FindAttendance(ctx, input.EmployeeId, date)
		isNew := errors.Is(err, models.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			record = models.NewAttendanceRecord(input.EmployeeId, date, input.Status)
		}
		record.Status = input.Status
		record.Recompute(l.Policy, false)
		record.MarkCorrected(correctorId, l.now())
		if isNew {
			err = tx.CreateAttendance(ctx, record)
		} else {
			err = tx.UpdateAttendance(ctx, record)
		}
		if err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *AttendanceLedger) Get(ctx context.Context, recordId int) (*models.AttendanceRecord, error) {
	return l.Repo.GetAttendance(ctx, recordId)
}

// List returns the employee's records in [from, to].
func (l *AttendanceLedger) List(ctx context.Context, employeeId int, from, to time.Time) ([]*models.AttendanceRecord, error) {
	from, to = models.TruncateDate(from), models.TruncateDate(to)
	if from.After(to) {
		return nil, models.ErrInvalidRange
	}
	return l.Repo.ListAttendance(ctx, employeeId, from, to)
}
