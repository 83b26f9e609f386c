package models

import (
	"testing"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func monthlyEmployee(basic int64) *Employee {
	return &Employee{
		ID:               1,
		CompensationMode: CompensationModeMonthly,
		BasicSalary:      decimal.NewNullDecimal(decimal.NewFromInt(basic)),
		IsActive:         true,
	}
}

func presentDays(employeeId int, days ...int) []*AttendanceRecord {
	out := make([]*AttendanceRecord, 0, len(days))
	for _, d := range days {
		out = append(out, NewAttendanceRecord(employeeId, day(6, d), AttendanceStatusPresent))
	}
	return out
}

func TestWorkingDays(t *testing.T) {
	if got := WorkingDays(2024, time.June, time.Sunday); got != 25 {
		t.Fatalf("expected 25 working days in June 2024, got %d", got)
	}
	if got := WorkingDays(2024, time.February, time.Friday); got != 25 {
		t.Fatalf("expected 25 working days in February 2024 with Friday rest, got %d", got)
	}
	if DaysInMonth(2024, time.February) != 29 {
		t.Fatalf("2024 is a leap year")
	}
}

func TestCalculatePayroll_MonthlyWithHalfDaysAndHolidays(t *testing.T) {
	attendance := presentDays(1, 3, 4, 5, 6, 7, 8, 10, 11, 12, 13)
	attendance = append(attendance,
		NewAttendanceRecord(1, day(6, 14), AttendanceStatusHalfDay),
		NewAttendanceRecord(1, day(6, 15), AttendanceStatusHoliday),
		NewAttendanceRecord(1, day(7, 1), AttendanceStatusPresent), // outside the month
		NewAttendanceRecord(2, day(6, 17), AttendanceStatusPresent), // someone else
	)
	rec, err := CalculatePayroll(PayrollInput{
		Employee:   monthlyEmployee(25000),
		Year:       2024,
		Month:      time.June,
		Attendance: attendance,
		Policy:     config.DefaultHRPolicy(),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 10 present + 0.5 half + 1 holiday = 11.5 of 25 days
	if !rec.BasePay.Equal(decimal.NewFromInt(11500)) {
		t.Fatalf("expected base pay 11500, got %s", rec.BasePay)
	}
	if !rec.AbsentDays.Equal(decimal.NewFromInt(13)) || !rec.HalfDays.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected day counts absent=%s half=%s", rec.AbsentDays, rec.HalfDays)
	}
	if !rec.AttendanceRate().Equal(decimal.NewFromInt(42)) {
		t.Fatalf("expected attendance rate 42, got %s", rec.AttendanceRate())
	}
}

func TestCalculatePayroll_OvertimeForMonthly(t *testing.T) {
	r := NewAttendanceRecord(1, day(6, 3), AttendanceStatusPresent)
	r.TotalHours = decimal.NewFromInt(10)
	r.OvertimeHours = decimal.NewFromInt(2)
	rec, err := CalculatePayroll(PayrollInput{
		Employee:   monthlyEmployee(20000),
		Year:       2024,
		Month:      time.June,
		Attendance: []*AttendanceRecord{r},
		Policy:     config.DefaultHRPolicy(),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// rate 20000 / (25 * 8) = 100; 2h at 1.5 = 300
	if !rec.HourlyRate.Equal(decimal.NewFromInt(100)) || !rec.OvertimePay.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected overtime rate=%s pay=%s", rec.HourlyRate, rec.OvertimePay)
	}
	if !rec.NetSalary.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("expected net 1100, got %s", rec.NetSalary)
	}
}

func TestCalculatePayroll_LeaveSpanningMonths(t *testing.T) {
	leave := &LeaveRecord{
		EmployeeId: 1,
		Type:       LeaveTypeUnpaid,
		StartDate:  datatypes.Date(day(5, 30)),
		EndDate:    datatypes.Date(day(6, 2)),
		Days:       decimal.NewFromInt(4),
		Status:     LeaveStatusApproved,
	}
	pending := &LeaveRecord{
		EmployeeId: 1,
		Type:       LeaveTypeUnpaid,
		StartDate:  datatypes.Date(day(6, 20)),
		EndDate:    datatypes.Date(day(6, 20)),
		Days:       decimal.NewFromInt(1),
		Status:     LeaveStatusPending,
	}
	rec, err := CalculatePayroll(PayrollInput{
		Employee: monthlyEmployee(25000),
		Year:     2024,
		Month:    time.June,
		Leaves:   []*LeaveRecord{leave, pending},
		Policy:   config.DefaultHRPolicy(),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !rec.UnpaidLeaveDays.Equal(decimal.NewFromInt(2)) || !rec.LeaveDeduction.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("unexpected leave unpaid=%s deduction=%s", rec.UnpaidLeaveDays, rec.LeaveDeduction)
	}
	if !rec.NetSalary.Equal(decimal.NewFromInt(-2000)) {
		t.Fatalf("expected net -2000, got %s", rec.NetSalary)
	}
}

func TestCalculatePayroll_Validation(t *testing.T) {
	policy := config.DefaultHRPolicy()
	if _, err := CalculatePayroll(PayrollInput{Employee: monthlyEmployee(100), Year: 2024, Month: 0, Policy: policy}); KindOf(err) != ErrorKindValidation {
		t.Fatalf("expected validation error for month 0, got %v", err)
	}
	hourly := &Employee{ID: 1, CompensationMode: CompensationModeHourly}
	if _, err := CalculatePayroll(PayrollInput{Employee: hourly, Year: 2024, Month: time.June, Policy: policy}); KindOf(err) != ErrorKindValidation {
		t.Fatalf("expected validation error without wage, got %v", err)
	}
}
