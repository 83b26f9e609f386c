package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
)

func TestAttendanceCorrect_RecomputesAndStamps(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)
	in := h.scan(t, emp.ID, site.ID)

	checkOut := in.Record.CheckInAt.Add(10*time.Hour + 15*time.Minute)
	rec, err := h.svc.Attendance.Correct(context.Background(), in.Record.ID, models.AttendanceCorrection{CheckOutAt: &checkOut}, 77)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if !rec.TotalHours.Equal(dec("10.25")) || !rec.OvertimeHours.Equal(dec("2.25")) {
		t.Fatalf("expected 10.25 / 2.25, got %s / %s", rec.TotalHours, rec.OvertimeHours)
	}
	if !rec.IsManuallyCorrected || rec.CorrectedBy == nil || *rec.CorrectedBy != 77 || rec.CorrectedAt == nil {
		t.Fatalf("correction not stamped: %+v", rec)
	}
}

func TestAttendanceCorrect_RejectsInvertedTimes(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)
	in := h.scan(t, emp.ID, site.ID)

	before := in.Record.CheckInAt.Add(-time.Hour)
	_, err := h.svc.Attendance.Correct(context.Background(), in.Record.ID, models.AttendanceCorrection{CheckOutAt: &before}, 77)
	if !errors.Is(err, models.ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
	rec, _ := h.svc.Attendance.Get(context.Background(), in.Record.ID)
	if rec.CheckOutAt != nil || rec.IsManuallyCorrected {
		t.Fatalf("failed correction must not be stored: %+v", rec)
	}
}

func TestAttendanceCorrect_ExplicitStatusWins(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)
	in := h.scan(t, emp.ID, site.ID)

	status := models.AttendanceStatusHoliday
	rec, err := h.svc.Attendance.Correct(context.Background(), in.Record.ID, models.AttendanceCorrection{Status: &status}, 5)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if rec.Status != models.AttendanceStatusHoliday {
		t.Fatalf("expected holiday, got %s", rec.Status)
	}
}

func TestAttendanceMarkDay_ThenScanOpensDay(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	marked, err := h.svc.Attendance.MarkDay(context.Background(), MarkDayInput{
		EmployeeId: emp.ID,
		Date:       h.clock.Now(),
		Status:     models.AttendanceStatusAbsent,
	}, 9)
	if err != nil {
		t.Fatalf("mark day: %v", err)
	}
	if marked.Status != models.AttendanceStatusAbsent || !marked.IsManuallyCorrected {
		t.Fatalf("unexpected marked record %+v", marked)
	}

	res := h.scan(t, emp.ID, site.ID)
	if res.Type != models.ScanTypeCheckIn || res.Record.ID != marked.ID || res.Record.Status != models.AttendanceStatusPresent {
		t.Fatalf("scan on a pre-marked day should check in on the same record: %+v", res)
	}

	if _, err := h.svc.Attendance.MarkDay(context.Background(), MarkDayInput{EmployeeId: emp.ID, Date: h.clock.Now(), Status: "late"}, 9); models.KindOf(err) != models.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAttendanceList_Range(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	for d := 1; d <= 5; d++ {
		if _, err := h.svc.Attendance.MarkDay(context.Background(), MarkDayInput{
			EmployeeId: emp.ID,
			Date:       time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC),
			Status:     models.AttendanceStatusPresent,
		}, 1); err != nil {
			t.Fatalf("mark day: %v", err)
		}
	}
	list, err := h.svc.Attendance.List(context.Background(), emp.ID, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Date().Day() != 2 {
		t.Fatalf("expected days 2-4, got %d records", len(list))
	}
	if _, err := h.svc.Attendance.List(context.Background(), emp.ID, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)); !errors.Is(err, models.ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestAttendance_ConcurrentScansCreateOneRecord(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.verifyAt(emp.ID, site.ID, testCode, 10)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, models.ErrOTPNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("a single code must verify once, got %d successes", successes)
	}
	if h.repo.AttendanceCount() != 1 {
		t.Fatalf("expected one attendance record, got %d", h.repo.AttendanceCount())
	}
}
