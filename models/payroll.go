package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PayrollRecord is the salary computation of one employee for one month.
type PayrollRecord struct {
	ID               int                                `gorm:"primary_key" json:"id"`
	EmployeeId       int                                `gorm:"not null;uniqueIndex:idx_payroll_period,priority:1" json:"employee_id"`
	Year             int                                `gorm:"not null;uniqueIndex:idx_payroll_period,priority:2;index:idx_payroll_month,priority:1" json:"year"`
	Month            int                                `gorm:"not null;uniqueIndex:idx_payroll_period,priority:3;index:idx_payroll_month,priority:2" json:"month"`
	CompensationMode CompensationMode                   `gorm:"size:20;not null" json:"compensation_mode"`
	CalendarDays     int                                `gorm:"not null" json:"calendar_days"`
	WorkingDays      int                                `gorm:"not null" json:"working_days"`
	PresentDays      decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"present_days"`
	HalfDays         decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"half_days"`
	AbsentDays       decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"absent_days"`
	HolidayDays      decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"holiday_days"`
	LeaveDays        decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"leave_days"`
	PaidLeaveDays    decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"paid_leave_days"`
	UnpaidLeaveDays  decimal.Decimal                    `gorm:"type:decimal(5,1);not null" json:"unpaid_leave_days"`
	TotalHours       decimal.Decimal                    `gorm:"type:decimal(8,2);not null" json:"total_hours"`
	OvertimeHours    decimal.Decimal                    `gorm:"type:decimal(8,2);not null" json:"overtime_hours"`
	BasicSalary      decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"basic_salary"`
	HourlyRate       decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"hourly_rate"`
	BasePay          decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"base_pay"`
	Allowances       datatypes.JSONType[PayComponents] `json:"allowances"`
	AllowancesTotal  decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"allowances_total"`
	OvertimePay      decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"overtime_pay"`
	Deductions       datatypes.JSONType[PayComponents] `json:"deductions"`
	DeductionsTotal  decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"deductions_total"`
	LeaveDeduction   decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"leave_deduction"`
	NetSalary        decimal.Decimal                    `gorm:"type:decimal(20,2);not null" json:"net_salary"`
	Status           PayrollStatus                      `gorm:"size:20;not null;index" json:"status"`
	ArtifactRef      string                             `gorm:"size:255" json:"artifact_ref"`
	CalculatedAt     time.Time                          `gorm:"not null" json:"calculated_at"`
	ProcessedBy      *int                               `json:"processed_by"`
	ProcessedAt      *time.Time                         `json:"processed_at"`
	LockedBy         *int                               `json:"locked_by"`
	LockedAt         *time.Time                         `json:"locked_at"`
	CreatedAt        time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p PayrollRecord) Period() (int, time.Month) {
	return p.Year, time.Month(p.Month)
}

// CheckRecalculable rejects recalculation of a processed or locked period.
func (p *PayrollRecord) CheckRecalculable() error {
	switch p.Status {
	case PayrollStatusLocked:
		return ErrLocked
	case PayrollStatusProcessed:
		return ErrAlreadyProcessed
	}
	return nil
}

func (p *PayrollRecord) MarkProcessed(artifactRef string, by int, at time.Time) error {
	switch p.Status {
	case PayrollStatusLocked:
		return ErrLocked
	case PayrollStatusDraft:
	default:
		return ErrInvalidTransition
	}
	if artifactRef == "" {
		return ErrInvalidTransition
	}
	p.Status = PayrollStatusProcessed
	p.ArtifactRef = artifactRef
	p.ProcessedBy = &by
	p.ProcessedAt = &at
	return nil
}

func (p *PayrollRecord) MarkLocked(by int, at time.Time) error {
	switch p.Status {
	case PayrollStatusLocked:
		return ErrLocked
	case PayrollStatusProcessed:
	default:
		return ErrInvalidTransition
	}
	p.Status = PayrollStatusLocked
	p.LockedBy = &by
	p.LockedAt = &at
	return nil
}
