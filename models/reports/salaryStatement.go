package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	XlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	StatementSheetName = "Statement"
	RegisterSheetName  = "Payroll"
)

type statementLine struct {
	Label string
	Value interface{}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// RenderSalaryStatement writes the payslip of one payroll record as an xlsx workbook.
func RenderSalaryStatement(rec *models.PayrollRecord, emp *models.Employee) ([]byte, error) {
	if rec == nil || emp == nil {
		return nil, errors.New("payroll record and employee are required")
	}
	year, month := rec.Period()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", StatementSheetName); err != nil {
		return nil, err
	}
	sheet := StatementSheetName

	lines := []statementLine{
		{"Employee Code", emp.EmployeeCode},
		{"Employee Name", emp.Name},
		{"Period", fmt.Sprintf("%s %d", month.String(), year)},
		{"Compensation Mode", string(rec.CompensationMode)},
		{"Calendar Days", rec.CalendarDays},
		{"Working Days", rec.WorkingDays},
		{"Present Days", rec.PresentDays.InexactFloat64()},
		{"Half Days", rec.HalfDays.InexactFloat64()},
		{"Holiday Days", rec.HolidayDays.InexactFloat64()},
		{"Paid Leave Days", rec.PaidLeaveDays.InexactFloat64()},
		{"Unpaid Leave Days", rec.UnpaidLeaveDays.InexactFloat64()},
		{"Absent Days", rec.AbsentDays.InexactFloat64()},
		{"Total Hours", money(rec.TotalHours)},
		{"Overtime Hours", money(rec.OvertimeHours)},
		{"Basic Salary", money(rec.BasicSalary)},
		{"Hourly Rate", money(rec.HourlyRate)},
		{"Base Pay", money(rec.BasePay)},
	}
	for _, a := range rec.Allowances.Data() {
		lines = append(lines, statementLine{"Allowance: " + a.Name, money(a.Amount)})
	}
	lines = append(lines,
		statementLine{"Allowances Total", money(rec.AllowancesTotal)},
		statementLine{"Overtime Pay", money(rec.OvertimePay)},
	)
	for _, d := range rec.Deductions.Data() {
		lines = append(lines, statementLine{"Deduction: " + d.Name, money(d.Amount)})
	}
	lines = append(lines,
		statementLine{"Deductions Total", money(rec.DeductionsTotal)},
		statementLine{"Leave Deduction", money(rec.LeaveDeduction)},
		statementLine{"Net Salary", money(rec.NetSalary)},
		statementLine{"Calculated At", rec.CalculatedAt.UTC().Format(time.RFC3339)},
	)

	if err := f.SetCellValue(sheet, "A1", "Salary Statement"); err != nil {
		return nil, err
	}
	for i, line := range lines {
		row := i + 3
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), line.Label); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), line.Value); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return nil, err
	}
	netRow := fmt.Sprintf("A%d", len(lines)+1)
	if err := f.SetCellStyle(sheet, netRow, fmt.Sprintf("B%d", len(lines)+1), bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "B", 20); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
