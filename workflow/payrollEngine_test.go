package workflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// markPresentDays marks the first n working days (Mon-Sat) of June 2024 present.
func markPresentDays(t *testing.T, h *harness, employeeId, n int) {
	t.Helper()
	marked := 0
	for d := 1; marked < n && d <= 30; d++ {
		day := june(d)
		if day.Weekday() == time.Sunday {
			continue
		}
		if _, err := h.svc.Attendance.MarkDay(context.Background(), MarkDayInput{
			EmployeeId: employeeId,
			Date:       day,
			Status:     models.AttendanceStatusPresent,
		}, 1); err != nil {
			t.Fatalf("mark day: %v", err)
		}
		marked++
	}
}

func TestPayrollCalculate_MonthlyBasePay(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	markPresentDays(t, h, emp.ID, 20)

	rec, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if rec.WorkingDays != 25 || rec.CalendarDays != 30 {
		t.Fatalf("expected 25 working / 30 calendar days, got %d / %d", rec.WorkingDays, rec.CalendarDays)
	}
	if !rec.PresentDays.Equal(dec("20")) || !rec.AbsentDays.Equal(dec("5")) {
		t.Fatalf("unexpected day counts present=%s absent=%s", rec.PresentDays, rec.AbsentDays)
	}
	if !rec.BasePay.Equal(dec("24000")) {
		t.Fatalf("expected base pay 24000, got %s", rec.BasePay)
	}
	if !rec.NetSalary.Equal(dec("24000")) || rec.Status != models.PayrollStatusDraft {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPayrollCalculate_RecalculationOverwritesDraft(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	markPresentDays(t, h, emp.ID, 10)

	first, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	markPresentDays(t, h, emp.ID, 25)
	second, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("recalculation must overwrite the draft, got new id %d", second.ID)
	}
	if !second.BasePay.Equal(dec("30000")) {
		t.Fatalf("expected full base pay, got %s", second.BasePay)
	}
	list, _ := h.svc.Payroll.List(context.Background(), 2024, time.June)
	if len(list) != 1 {
		t.Fatalf("expected one payroll record, got %d", len(list))
	}
}

func TestPayrollCalculate_LeaveAllowancesAndDeductions(t *testing.T) {
	h := newHarness(t)
	salary := decimal.NewFromInt(30000)
	emp, err := h.svc.Employees.Create(context.Background(), models.NewEmployee{
		EmployeeCode:     "E010",
		Name:             "Ko Aung",
		Phone:            testPhone,
		CompensationMode: models.CompensationModeMonthly,
		BasicSalary:      &salary,
		Allowances:       []models.PayComponent{{Name: "housing", Amount: dec("1000")}, {Name: "travel", Amount: dec("250.50")}},
		Deductions:       []models.PayComponent{{Name: "tax", Amount: dec("500")}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	markPresentDays(t, h, emp.ID, 20)

	paid, err := applyLeave(h, emp.ID, "sick", 24, 25, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	unpaid, err := applyLeave(h, emp.ID, "unpaid", 26, 27, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// pending leave is not paid out
	if _, err := applyLeave(h, emp.ID, "unpaid", 28, 28, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, id := range []int{paid.ID, unpaid.ID} {
		if _, err := h.svc.Leaves.Approve(context.Background(), id, 1); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	rec, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 22 paid-equivalent days of 25 -> 26400; unpaid 2 days -> 2400
	checks := []struct {
		name      string
		got, want decimal.Decimal
	}{
		{"paid leave", rec.PaidLeaveDays, dec("2")},
		{"unpaid leave", rec.UnpaidLeaveDays, dec("2")},
		{"absent days", rec.AbsentDays, dec("1")},
		{"base pay", rec.BasePay, dec("26400")},
		{"allowances", rec.AllowancesTotal, dec("1250.5")},
		{"deductions", rec.DeductionsTotal, dec("500")},
		{"leave deduction", rec.LeaveDeduction, dec("2400")},
		{"hourly rate", rec.HourlyRate, dec("150")},
		{"net", rec.NetSalary, dec("24750.5")},
	}
	for _, c := range checks {
		if !c.got.Equal(c.want) {
			t.Fatalf("%s: expected %s, got %s", c.name, c.want, c.got)
		}
	}
}

func TestPayrollCalculate_HourlyEmployee(t *testing.T) {
	h := newHarness(t)
	emp := h.addHourlyEmployee(t, "H001", 10)
	site := h.addSite(t, "HQ", 100)

	h.scan(t, emp.ID, site.ID)
	h.clock.Advance(9 * time.Hour)
	h.scan(t, emp.ID, site.ID)

	rec, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !rec.BasePay.Equal(dec("90")) || !rec.OvertimePay.Equal(dec("15")) || !rec.LeaveDeduction.IsZero() {
		t.Fatalf("unexpected hourly pay base=%s ot=%s leave=%s", rec.BasePay, rec.OvertimePay, rec.LeaveDeduction)
	}
	if !rec.NetSalary.Equal(dec("105")) {
		t.Fatalf("expected net 105, got %s", rec.NetSalary)
	}
}

func TestPayrollLifecycle_ProcessLockAndImmutability(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	markPresentDays(t, h, emp.ID, 20)

	draft, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if _, err := h.svc.Payroll.Lock(context.Background(), draft.ID, 1); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("draft must not lock, got %v", err)
	}

	processed, err := h.svc.Payroll.Process(context.Background(), draft.ID, 42)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Status != models.PayrollStatusProcessed || processed.ProcessedBy == nil || *processed.ProcessedBy != 42 {
		t.Fatalf("unexpected processed record %+v", processed)
	}
	if !strings.HasPrefix(processed.ArtifactRef, "mem://payroll/2024-06/E001-") {
		t.Fatalf("unexpected artifact ref %q", processed.ArtifactRef)
	}
	if h.store.Len() != 1 {
		t.Fatalf("expected the statement to be stored")
	}
	if _, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if _, err := h.svc.Payroll.Process(context.Background(), draft.ID, 42); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("processed must not process again, got %v", err)
	}

	locked, err := h.svc.Payroll.Lock(context.Background(), draft.ID, 43)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked.Status != models.PayrollStatusLocked || locked.LockedAt == nil {
		t.Fatalf("unexpected locked record %+v", locked)
	}

	markPresentDays(t, h, emp.ID, 25)
	_, err = h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if !errors.Is(err, models.ErrLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	stored, _ := h.svc.Payroll.Get(context.Background(), draft.ID)
	if !stored.NetSalary.Equal(dec("24000")) || stored.Status != models.PayrollStatusLocked {
		t.Fatalf("locked record changed: %+v", stored)
	}
	if _, err := h.svc.Payroll.Lock(context.Background(), draft.ID, 43); !errors.Is(err, models.ErrLocked) {
		t.Fatalf("expected locked on relock, got %v", err)
	}
	if _, err := h.svc.Payroll.Process(context.Background(), draft.ID, 42); !errors.Is(err, models.ErrLocked) {
		t.Fatalf("expected locked on process, got %v", err)
	}
	if err := h.repo.UpdatePayroll(context.Background(), stored); !errors.Is(err, models.ErrLocked) {
		t.Fatalf("storage must reject writes to locked rows, got %v", err)
	}
}

func TestPayrollProcess_StoreFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	draft, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	h.store.Fail = true
	if _, err := h.svc.Payroll.Process(context.Background(), draft.ID, 1); err == nil {
		t.Fatalf("expected store failure")
	}
	stored, _ := h.svc.Payroll.Get(context.Background(), draft.ID)
	if stored.Status != models.PayrollStatusDraft || stored.ArtifactRef != "" {
		t.Fatalf("failed processing must leave the draft untouched: %+v", stored)
	}
}

func TestPayrollCalculate_InvalidPeriodAndUnknownEmployee(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Payroll.Calculate(context.Background(), 1, 2024, time.Month(13)); models.KindOf(err) != models.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.svc.Payroll.Calculate(context.Background(), 999, 2024, time.June); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayroll_ConcurrentCalculationsWriteOneRecord(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	markPresentDays(t, h, emp.ID, 20)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Payroll.Calculate(context.Background(), emp.ID, 2024, time.June); err != nil {
				t.Errorf("calculate: %v", err)
			}
		}()
	}
	wg.Wait()
	list, _ := h.svc.Payroll.List(context.Background(), 2024, time.June)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}
}

func TestPayrollCalculateAllAndExport(t *testing.T) {
	h := newHarness(t)
	a := h.addMonthlyEmployee(t, "E001", 30000)
	b := h.addMonthlyEmployee(t, "E002", 25000)
	markPresentDays(t, h, a.ID, 25)

	rec, err := h.svc.Payroll.Calculate(context.Background(), b.ID, 2024, time.June)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if _, err := h.svc.Payroll.Process(context.Background(), rec.ID, 1); err != nil {
		t.Fatalf("process: %v", err)
	}

	summary, err := h.svc.Payroll.CalculateAll(context.Background(), 2024, time.June)
	if err != nil {
		t.Fatalf("calculate all: %v", err)
	}
	if summary.Calculated != 1 || summary.Skipped != 1 || len(summary.Failed) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	data, err := h.svc.Payroll.Export(context.Background(), 2024, time.June)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open register: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Payroll")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	// title, header, two employees, totals
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[2][0] != "E001" || rows[3][0] != "E002" || rows[4][0] != "Total" {
		t.Fatalf("unexpected register rows %v", rows)
	}
}
