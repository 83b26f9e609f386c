package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LeaveRecord is one leave application with an inclusive date span.
type LeaveRecord struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EmployeeId      int             `gorm:"not null;index:idx_leave_employee_span,priority:1" json:"employee_id"`
	Type            LeaveType       `gorm:"size:20;not null" json:"type"`
	StartDate       datatypes.Date  `gorm:"not null;index:idx_leave_employee_span,priority:2" json:"start_date"`
	EndDate         datatypes.Date  `gorm:"not null;index:idx_leave_employee_span,priority:3" json:"end_date"`
	HalfDay         bool            `gorm:"not null;default:false" json:"half_day"`
	Days            decimal.Decimal `gorm:"type:decimal(5,1);not null" json:"days"`
	Reason          string          `gorm:"size:500" json:"reason"`
	Status          LeaveStatus     `gorm:"size:20;not null;index" json:"status"`
	ApproverId      *int            `json:"approver_id"`
	DecidedAt       *time.Time      `json:"decided_at"`
	RejectionReason string          `gorm:"size:500" json:"rejection_reason"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLeave struct {
	EmployeeId int       `json:"employee_id" binding:"required"`
	Type       string    `json:"type" binding:"required"`
	StartDate  time.Time `json:"start_date" binding:"required"`
	EndDate    time.Time `json:"end_date" binding:"required"`
	HalfDay    bool      `json:"half_day"`
	Reason     string    `json:"reason" binding:"max=500"`
}

type LeaveFilter struct {
	EmployeeId int
	Status     LeaveStatus
}

func (l LeaveRecord) Start() time.Time { return TruncateDate(time.Time(l.StartDate)) }

func (l LeaveRecord) End() time.Time { return TruncateDate(time.Time(l.EndDate)) }

// IsBlocking reports whether the record takes part in overlap checks.
func (l LeaveRecord) IsBlocking() bool {
	return l.Status == LeaveStatusPending || l.Status == LeaveStatusApproved
}

// Overlaps reports whether [start, end] intersects the record's span.
func (l LeaveRecord) Overlaps(start, end time.Time) bool {
	return !l.Start().After(end) && !l.End().Before(start)
}

// DaysWithin counts the leave days falling inside [from, to]: the record's own day count when the
// whole span is inside, otherwise the overlapping calendar days.
func (l LeaveRecord) DaysWithin(from, to time.Time) decimal.Decimal {
	if !l.Overlaps(from, to) {
		return decimal.Zero
	}
	if !l.Start().Before(from) && !l.End().After(to) {
		return l.Days
	}
	return decimal.NewFromInt(int64(inclusiveDays(maxTime(l.Start(), from), minTime(l.End(), to))))
}

// LeaveDayCount is the inclusive day difference, minus half a day for a half-day leave.
func LeaveDayCount(start, end time.Time, halfDay bool) (decimal.Decimal, error) {
	start, end = TruncateDate(start), TruncateDate(end)
	if start.After(end) {
		return decimal.Zero, ErrInvalidRange
	}
	days := decimal.NewFromInt(int64(inclusiveDays(start, end)))
	if halfDay {
		if !start.Equal(end) {
			return decimal.Zero, NewValidationError("half_day", errors.Join(ErrInvalidRange, errors.New("half-day leave must be a single day")))
		}
		days = days.Sub(decimal.NewFromFloat(0.5))
	}
	return days, nil
}

// BuildLeave validates the application and returns the pending record.
func (input *NewLeave) BuildLeave() (*LeaveRecord, error) {
	leaveType, err := ParseLeaveType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.EmployeeId <= 0 {
		return nil, NewValidationError("employee_id", errors.New("employee is required"))
	}
	start, end := TruncateDate(input.StartDate), TruncateDate(input.EndDate)
	days, err := LeaveDayCount(start, end, input.HalfDay)
	if err != nil {
		return nil, err
	}
	return &LeaveRecord{
		EmployeeId: input.EmployeeId,
		Type:       leaveType,
		StartDate:  datatypes.Date(start),
		EndDate:    datatypes.Date(end),
		HalfDay:    input.HalfDay,
		Days:       days,
		Reason:     strings.TrimSpace(input.Reason),
		Status:     LeaveStatusPending,
	}, nil
}

func (l *LeaveRecord) Approve(approverId int, at time.Time) error {
	if l.Status != LeaveStatusPending {
		return ErrInvalidTransition
	}
	l.Status = LeaveStatusApproved
	l.ApproverId = &approverId
	l.DecidedAt = &at
	return nil
}

func (l *LeaveRecord) Reject(approverId int, reason string, at time.Time) error {
	if l.Status != LeaveStatusPending {
		return ErrInvalidTransition
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewValidationError("reason", errors.New("rejection reason is required"))
	}
	l.Status = LeaveStatusRejected
	l.ApproverId = &approverId
	l.DecidedAt = &at
	l.RejectionReason = reason
	return nil
}
