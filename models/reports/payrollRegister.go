package reports

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var registerHeaders = []string{
	"Employee Code", "Employee Name", "Mode", "Working Days", "Present", "Half", "Leave", "Absent",
	"Hours", "Overtime Hours", "Base Pay", "Allowances", "Overtime Pay", "Deductions", "Leave Deduction",
	"Net Salary", "Status",
}

type registerRow struct {
	code string
	name string
	rec  *models.PayrollRecord
}

func (r registerRow) GetCellValues() []interface{} {
	return []interface{}{
		r.code,
		r.name,
		string(r.rec.CompensationMode),
		r.rec.WorkingDays,
		r.rec.PresentDays.InexactFloat64(),
		r.rec.HalfDays.InexactFloat64(),
		r.rec.LeaveDays.InexactFloat64(),
		r.rec.AbsentDays.InexactFloat64(),
		money(r.rec.TotalHours),
		money(r.rec.OvertimeHours),
		money(r.rec.BasePay),
		money(r.rec.AllowancesTotal),
		money(r.rec.OvertimePay),
		money(r.rec.DeductionsTotal),
		money(r.rec.LeaveDeduction),
		money(r.rec.NetSalary),
		string(r.rec.Status),
	}
}

// RenderPayrollRegister writes one row per payroll record of the month plus a totals row.
func RenderPayrollRegister(year int, month time.Month, records []*models.PayrollRecord, employees map[int]*models.Employee) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", RegisterSheetName); err != nil {
		return nil, err
	}
	sheet := RegisterSheetName

	if err := f.SetCellValue(sheet, "A1", fmt.Sprintf("Payroll Register %s %d", month.String(), year)); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A2", &registerHeaders); err != nil {
		return nil, err
	}

	net := decimal.Zero
	row := 3
	for _, rec := range records {
		if rec == nil {
			continue
		}
		r := registerRow{rec: rec, code: fmt.Sprintf("#%d", rec.EmployeeId)}
		if emp, ok := employees[rec.EmployeeId]; ok && emp != nil {
			r.code = emp.EmployeeCode
			r.name = emp.Name
		}
		values := r.GetCellValues()
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
		net = net.Add(rec.NetSalary)
		row++
	}

	netCol, _ := excelize.CoordinatesToCellName(len(registerHeaders)-1, row)
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, netCol, money(net)); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(registerHeaders), 2)
	if err := f.SetCellStyle(sheet, "A2", lastHeader, bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), netCol, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
