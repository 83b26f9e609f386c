package workflow

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
)

func TestOTPIssue_QueuesDeliveryAndReturnsWindow(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)

	ctx := utils.SetCorrelationIdInContext(context.Background(), "corr-1")
	res, err := h.svc.OTP.Issue(ctx, emp.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res.ExpiresInSeconds != 300 {
		t.Fatalf("expected 300s window, got %d", res.ExpiresInSeconds)
	}
	if !res.ExpiresAt.Equal(h.clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}

	deliveries := h.repo.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("expected one delivery row, got %d", len(deliveries))
	}
	d := deliveries[0]
	if d.Status != models.DeliveryStatusPending || d.Recipient != "+16502530000" || d.ChallengeId != res.ChallengeId {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if d.CorrelationId != "corr-1" {
		t.Fatalf("expected correlation id to be carried, got %q", d.CorrelationId)
	}
}

func TestOTPIssue_ReissueExpiresPrevious(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)

	first, err := h.svc.OTP.Issue(context.Background(), emp.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := h.svc.OTP.Issue(context.Background(), emp.ID)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}

	challenges := h.repo.Challenges(emp.ID)
	if len(challenges) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(challenges))
	}
	if challenges[0].ID != first.ChallengeId || challenges[0].Status != models.OTPStatusExpired {
		t.Fatalf("expected first challenge expired, got %+v", challenges[0])
	}
	if challenges[1].ID != second.ChallengeId || challenges[1].Status != models.OTPStatusValid {
		t.Fatalf("expected second challenge valid, got %+v", challenges[1])
	}
}

func TestOTPIssue_InactiveOrUnknownEmployee(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	if _, err := h.svc.Employees.Deactivate(context.Background(), emp.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); models.KindOf(err) != models.ErrorKindValidation {
		t.Fatalf("expected validation error for inactive employee, got %v", err)
	}
	if _, err := h.svc.OTP.Issue(context.Background(), 999); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOTPVerify_CheckInThenCheckOut(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	in := h.scan(t, emp.ID, site.ID)
	if in.Type != models.ScanTypeCheckIn {
		t.Fatalf("expected checkIn, got %s", in.Type)
	}
	if in.Record.Status != models.AttendanceStatusPresent || in.Record.CheckInAt == nil || in.Record.CheckOutAt != nil {
		t.Fatalf("unexpected check-in record %+v", in.Record)
	}
	if in.Record.CheckInDevice != "test-device" || in.Record.CheckInSiteId == nil || *in.Record.CheckInSiteId != site.ID {
		t.Fatalf("scan origin not recorded: %+v", in.Record)
	}

	h.clock.Advance(9 * time.Hour)
	out := h.scan(t, emp.ID, site.ID)
	if out.Type != models.ScanTypeCheckOut {
		t.Fatalf("expected checkOut, got %s", out.Type)
	}
	if out.Record.ID != in.Record.ID {
		t.Fatalf("check-out must update the same record")
	}
	if !out.Record.TotalHours.Equal(dec("9")) || !out.Record.OvertimeHours.Equal(dec("1")) {
		t.Fatalf("expected 9h total / 1h overtime, got %s / %s", out.Record.TotalHours, out.Record.OvertimeHours)
	}
	if h.validChallenges(emp.ID) != 0 {
		t.Fatalf("used challenge must not stay valid")
	}
}

func TestOTPVerify_OutOfRangeDoesNotConsumeOrCount(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err := h.verifyAt(emp.ID, site.ID, testCode, 150)
	var rangeErr *models.OutOfRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if math.Abs(rangeErr.Distance-150) > 0.5 || rangeErr.Radius != 100 {
		t.Fatalf("unexpected diagnostics %+v", rangeErr)
	}
	if models.KindOf(err) != models.ErrorKindSecurity {
		t.Fatalf("expected security kind, got %s", models.KindOf(err))
	}
	if h.repo.AttendanceCount() != 0 {
		t.Fatalf("out of range verification must not create attendance")
	}
	challenges := h.repo.Challenges(emp.ID)
	if challenges[0].Status != models.OTPStatusValid || challenges[0].WrongAttempts != 0 {
		t.Fatalf("challenge must stay valid and uncharged, got %+v", challenges[0])
	}

	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); err != nil {
		t.Fatalf("same code from inside the site should succeed: %v", err)
	}
}

func TestOTPVerify_OutOfRangeOnCheckOutLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)
	in := h.scan(t, emp.ID, site.ID)

	h.clock.Advance(8 * time.Hour)
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 150); !errors.Is(err, models.ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	rec, err := h.svc.Attendance.Get(context.Background(), in.Record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CheckOutAt != nil || !rec.TotalHours.IsZero() {
		t.Fatalf("record must be unchanged, got %+v", rec)
	}
}

func TestOTPVerify_ThreeWrongCodesLockOut(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 1; i <= 3; i++ {
		_, err := h.verifyAt(emp.ID, site.ID, "000000", 50)
		var codeErr *models.InvalidCodeError
		if !errors.As(err, &codeErr) {
			t.Fatalf("attempt %d: expected InvalidCodeError, got %v", i, err)
		}
		if i < 3 {
			if codeErr.LockedUntil != nil || codeErr.AttemptsLeft != 3-i {
				t.Fatalf("attempt %d: unexpected %+v", i, codeErr)
			}
			continue
		}
		if codeErr.LockedUntil == nil || !codeErr.LockedUntil.Equal(h.clock.Now().Add(10*time.Minute)) {
			t.Fatalf("third wrong code must lock out for 10 minutes, got %+v", codeErr)
		}
	}

	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); !errors.Is(err, models.ErrOTPNotFound) {
		t.Fatalf("burned challenge must not verify, got %v", err)
	}
	_, err := h.svc.OTP.Issue(context.Background(), emp.ID)
	var blocked *models.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected Blocked during lockout, got %v", err)
	}
	if models.KindOf(err) != models.ErrorKindConflict {
		t.Fatalf("blocked must be a state conflict, got %s", models.KindOf(err))
	}

	h.clock.Advance(10*time.Minute + time.Second)
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue after lockout: %v", err)
	}
}

func TestOTPVerify_CorrectCodeOnThirdAttemptDoesNotLock(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := h.verifyAt(emp.ID, site.ID, "999999", 50); !errors.Is(err, models.ErrInvalidCode) {
			t.Fatalf("expected invalid code, got %v", err)
		}
	}
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); err != nil {
		t.Fatalf("correct third attempt should succeed: %v", err)
	}
	for _, c := range h.repo.Challenges(emp.ID) {
		if c.LockoutUntil != nil {
			t.Fatalf("no lockout expected, got %+v", c)
		}
	}
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue must not be blocked: %v", err)
	}
}

func TestOTPVerify_ExpiryAndClockSkew(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.clock.Advance(5*time.Minute + 5*time.Second)
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); err != nil {
		t.Fatalf("verification inside the skew tolerance should pass: %v", err)
	}

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.clock.Advance(5*time.Minute + 11*time.Second)
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); !errors.Is(err, models.ErrOTPExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if h.validChallenges(emp.ID) != 0 {
		t.Fatalf("expired challenge must be flipped to expired")
	}
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); !errors.Is(err, models.ErrOTPNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
}

func TestOTPVerify_AlreadyCompletedKeepsHoursAndChallenge(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	h.scan(t, emp.ID, site.ID)
	h.clock.Advance(8*time.Hour + 30*time.Minute)
	out := h.scan(t, emp.ID, site.ID)

	h.clock.Advance(time.Hour)
	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err := h.verifyAt(emp.ID, site.ID, testCode, 50)
	if !errors.Is(err, models.ErrAlreadyCompleted) {
		t.Fatalf("expected AlreadyCompleted, got %v", err)
	}
	rec, err := h.svc.Attendance.Get(context.Background(), out.Record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.TotalHours.Equal(dec("8.5")) || !rec.CheckOutAt.Equal(*out.Record.CheckOutAt) {
		t.Fatalf("completed record changed: %+v", rec)
	}
	if h.validChallenges(emp.ID) != 1 {
		t.Fatalf("rolled back verification must leave the challenge valid")
	}
}

func TestOTPVerify_ShortShiftIsHalfDay(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	h.scan(t, emp.ID, site.ID)
	h.clock.Advance(3 * time.Hour)
	out := h.scan(t, emp.ID, site.ID)
	if out.Record.Status != models.AttendanceStatusHalfDay {
		t.Fatalf("expected half_day, got %s", out.Record.Status)
	}
}

func TestOTPVerify_ValidationAndSiteErrors(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	_, err := h.svc.OTP.Verify(context.Background(), VerifyInput{EmployeeId: emp.ID, Code: testCode, Latitude: 91, Longitude: 0, SiteId: site.ID})
	if models.KindOf(err) != models.ErrorKindValidation {
		t.Fatalf("expected validation error for bad coordinates, got %v", err)
	}

	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); !errors.Is(err, models.ErrOTPNotFound) {
		t.Fatalf("expected not found without a challenge, got %v", err)
	}

	if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := h.verifyAt(emp.ID, 999, testCode, 50); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("expected unknown site to be not found, got %v", err)
	}

	inactive := false
	if _, err := h.svc.Sites.Update(context.Background(), site.ID, models.NewSite{
		Name: site.Name, Latitude: site.Latitude, Longitude: site.Longitude, RadiusMeters: site.RadiusMeters, IsActive: &inactive,
	}); err != nil {
		t.Fatalf("update site: %v", err)
	}
	if _, err := h.verifyAt(emp.ID, site.ID, testCode, 50); !errors.Is(err, models.ErrSiteInactive) {
		t.Fatalf("expected inactive site error, got %v", err)
	}
	if h.validChallenges(emp.ID) != 1 {
		t.Fatalf("site errors must not consume the challenge")
	}
}

func TestOTP_CurrentCodeAndExpireStale(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)

	if _, err := h.svc.OTP.CurrentCode(context.Background(), emp.ID); !errors.Is(err, models.ErrOTPNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	issued, err := h.svc.OTP.Issue(context.Background(), emp.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	current, err := h.svc.OTP.CurrentCode(context.Background(), emp.ID)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	if current.Code != testCode || current.ChallengeId != issued.ChallengeId {
		t.Fatalf("unexpected read-back %+v", current)
	}

	h.clock.Advance(4 * time.Minute)
	if n, err := h.svc.OTP.ExpireStale(context.Background()); err != nil || n != 0 {
		t.Fatalf("nothing should expire yet: %d %v", n, err)
	}
	h.clock.Advance(2 * time.Minute)
	if n, err := h.svc.OTP.ExpireStale(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected one expired challenge: %d %v", n, err)
	}
	if h.validChallenges(emp.ID) != 0 {
		t.Fatalf("sweep must leave no valid challenge")
	}
}

func TestOTP_ConcurrentIssueKeepsSingleValidChallenge(t *testing.T) {
	h := newHarness(t)
	emp := h.addMonthlyEmployee(t, "E001", 30000)
	site := h.addSite(t, "HQ", 100)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := h.svc.OTP.Issue(context.Background(), emp.ID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			_, err := h.verifyAt(emp.ID, site.ID, testCode, 500)
			if err != nil && !errors.Is(err, models.ErrOTPNotFound) && !errors.Is(err, models.ErrOutOfRange) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := h.validChallenges(emp.ID); n != 1 {
		t.Fatalf("expected exactly one valid challenge, got %d", n)
	}
	if len(h.repo.Challenges(emp.ID)) != 20 {
		t.Fatalf("expected 20 issued challenges")
	}
}
