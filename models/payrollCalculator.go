package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PayrollInput is everything a month's salary is derived from.
type PayrollInput struct {
	Employee   *Employee
	Year       int
	Month      time.Month
	Attendance []*AttendanceRecord
	Leaves     []*LeaveRecord // approved leave overlapping the month
	Policy     config.HRPolicy
	Now        time.Time
}

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
)

func ValidatePeriod(year int, month time.Month) error {
	if month < time.January || month > time.December {
		return NewValidationError("month", errors.New("month must be 1-12"))
	}
	if year < 2000 || year > 2100 {
		return NewValidationError("year", errors.New("year is out of range"))
	}
	return nil
}

// CalculatePayroll derives a draft payroll record. It is a pure function of its input.
func CalculatePayroll(in PayrollInput) (*PayrollRecord, error) {
	emp := in.Employee
	if emp == nil {
		return nil, ErrRecordNotFound
	}
	if err := ValidatePeriod(in.Year, in.Month); err != nil {
		return nil, err
	}
	first, last := MonthRange(in.Year, in.Month)
	workingDays := WorkingDays(in.Year, in.Month, in.Policy.RestWeekday)
	if workingDays <= 0 {
		return nil, NewValidationError("month", errors.New("period has no working days"))
	}
	working := decimal.NewFromInt(int64(workingDays))

	// attendance facts
	present, halfDays, holidays, recordedAbsent := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	totalHours, overtimeHours := decimal.Zero, decimal.Zero
	for _, r := range in.Attendance {
		if r == nil || r.EmployeeId != emp.ID {
			continue
		}
		if d := r.Date(); d.Before(first) || d.After(last) {
			continue
		}
		switch r.Status {
		case AttendanceStatusPresent:
			present = present.Add(decimal.NewFromInt(1))
		case AttendanceStatusHalfDay:
			halfDays = halfDays.Add(decimal.NewFromInt(1))
		case AttendanceStatusHoliday:
			holidays = holidays.Add(decimal.NewFromInt(1))
		case AttendanceStatusAbsent:
			recordedAbsent = recordedAbsent.Add(decimal.NewFromInt(1))
		}
		totalHours = totalHours.Add(r.TotalHours)
		overtimeHours = overtimeHours.Add(r.OvertimeHours)
	}

	// leave facts
	paidLeave, unpaidLeave := decimal.Zero, decimal.Zero
	for _, l := range in.Leaves {
		if l == nil || l.EmployeeId != emp.ID || l.Status != LeaveStatusApproved {
			continue
		}
		days := l.DaysWithin(first, last)
		if l.Type.IsPaid() {
			paidLeave = paidLeave.Add(days)
		} else {
			unpaidLeave = unpaidLeave.Add(days)
		}
	}
	leaveDays := paidLeave.Add(unpaidLeave)

	absent := working.Sub(present).Sub(halfDays).Sub(holidays).Sub(leaveDays)
	if absent.LessThan(recordedAbsent) {
		absent = recordedAbsent
	}
	if absent.IsNegative() {
		absent = decimal.Zero
	}

	allowances := emp.AllowanceList()
	deductions := emp.DeductionList()

	rec := &PayrollRecord{
		EmployeeId:       emp.ID,
		Year:             in.Year,
		Month:            int(in.Month),
		CompensationMode: emp.CompensationMode,
		CalendarDays:     last.Day(),
		WorkingDays:      workingDays,
		PresentDays:      present,
		HalfDays:         halfDays,
		AbsentDays:       absent,
		HolidayDays:      holidays,
		LeaveDays:        leaveDays,
		PaidLeaveDays:    paidLeave,
		UnpaidLeaveDays:  unpaidLeave,
		TotalHours:       totalHours.Round(2),
		OvertimeHours:    overtimeHours.Round(2),
		Allowances:       datatypes.NewJSONType(allowances),
		AllowancesTotal:  allowances.Total(),
		Deductions:       datatypes.NewJSONType(deductions),
		DeductionsTotal:  deductions.Total(),
		BasePay:          decimal.Zero,
		BasicSalary:      decimal.Zero,
		HourlyRate:       decimal.Zero,
		OvertimePay:      decimal.Zero,
		LeaveDeduction:   decimal.Zero,
		Status:           PayrollStatusDraft,
		CalculatedAt:     in.Now,
	}

	multiplier := in.Policy.OvertimeMultiplier
	switch emp.CompensationMode {
	case CompensationModeHourly:
		if !emp.HourlyWage.Valid {
			return nil, NewValidationError("hourly_wage", errors.New("hourly employee has no wage"))
		}
		wage := emp.HourlyWage.Decimal
		rec.HourlyRate = wage.Round(2)
		rec.BasePay = wage.Mul(totalHours).Round(2)
		rec.OvertimePay = overtimeHours.Mul(wage).Mul(multiplier).Round(2)
	default:
		if !emp.BasicSalary.Valid {
			return nil, NewValidationError("basic_salary", errors.New("monthly employee has no basic salary"))
		}
		basic := emp.BasicSalary.Decimal
		// present-day equivalent: paid leave and holidays count as worked days
		equivalent := present.Add(halfDays.Mul(half)).Add(paidLeave).Add(holidays)
		if equivalent.GreaterThan(working) {
			equivalent = working
		}
		standardHours := working.Mul(in.Policy.StandardDayHours)
		rec.BasicSalary = basic.Round(2)
		rec.BasePay = basic.Mul(equivalent).Div(working).Round(2)
		if standardHours.IsPositive() {
			rec.HourlyRate = basic.Div(standardHours).Round(2)
			rec.OvertimePay = overtimeHours.Mul(basic).Mul(multiplier).Div(standardHours).Round(2)
		}
		rec.LeaveDeduction = unpaidLeave.Mul(basic).Div(working).Round(2)
	}

	rec.NetSalary = rec.BasePay.
		Add(rec.AllowancesTotal).
		Add(rec.OvertimePay).
		Sub(rec.DeductionsTotal).
		Sub(rec.LeaveDeduction).
		Round(2)
	return rec, nil
}

// AttendanceRate is present-day equivalent over working days, as a percentage.
func (p PayrollRecord) AttendanceRate() decimal.Decimal {
	if p.WorkingDays == 0 {
		return decimal.Zero
	}
	equivalent := p.PresentDays.Add(p.HalfDays.Mul(half))
	return equivalent.Mul(hundred).Div(decimal.NewFromInt(int64(p.WorkingDays))).Round(1)
}
