package models

import (
	"errors"
	"strings"
)

type CompensationMode string

const (
	CompensationModeMonthly CompensationMode = "monthly"
	CompensationModeHourly  CompensationMode = "hourly"
)

func (m CompensationMode) IsValid() bool {
	return m == CompensationModeMonthly || m == CompensationModeHourly
}

type OTPStatus string

const (
	OTPStatusValid   OTPStatus = "valid"
	OTPStatusUsed    OTPStatus = "used"
	OTPStatusExpired OTPStatus = "expired"
)

type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusHalfDay AttendanceStatus = "half_day"
	AttendanceStatusHoliday AttendanceStatus = "holiday"
	AttendanceStatusLeave   AttendanceStatus = "leave"
)

func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusHalfDay, AttendanceStatusHoliday, AttendanceStatusLeave:
		return true
	}
	return false
}

// ScanType tells whether a verified scan opened or closed the day.
type ScanType string

const (
	ScanTypeCheckIn  ScanType = "checkIn"
	ScanTypeCheckOut ScanType = "checkOut"
)

type LeaveType string

const (
	LeaveTypeCasual LeaveType = "casual"
	LeaveTypeSick   LeaveType = "sick"
	LeaveTypePaid   LeaveType = "paid"
	LeaveTypeUnpaid LeaveType = "unpaid"
)

func ParseLeaveType(s string) (LeaveType, error) {
	switch t := LeaveType(strings.ToLower(strings.TrimSpace(s))); t {
	case LeaveTypeCasual, LeaveTypeSick, LeaveTypePaid, LeaveTypeUnpaid:
		return t, nil
	}
	return "", NewValidationError("type", errors.New("leave type must be casual, sick, paid or unpaid"))
}

// IsPaid reports whether days of this type are paid in payroll.
func (t LeaveType) IsPaid() bool {
	return t == LeaveTypeCasual || t == LeaveTypeSick || t == LeaveTypePaid
}

type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

type PayrollStatus string

const (
	PayrollStatusDraft     PayrollStatus = "draft"
	PayrollStatusProcessed PayrollStatus = "processed"
	PayrollStatusLocked    PayrollStatus = "locked"
)

// OTP delivery outbox statuses. Kept as upper-case strings like the other outbox tables.
const (
	DeliveryStatusPending    = "PENDING"
	DeliveryStatusProcessing = "PROCESSING"
	DeliveryStatusSent       = "SENT"
	DeliveryStatusFailed     = "FAILED"
	DeliveryStatusDead       = "DEAD"
	// DeliveryStatusSkipped marks deliveries whose challenge was used or expired before publishing.
	DeliveryStatusSkipped = "SKIPPED"
)
