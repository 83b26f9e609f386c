package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/geo"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTPAuthority issues and verifies attendance codes.
type OTPAuthority struct {
	Repo         models.Repository
	Locker       *KeyLocker
	Policy       config.HRPolicy
	Logger       *logrus.Logger
	Now          func() time.Time
	GenerateCode CodeGenerator
	Attendance   *AttendanceLedger
}

type IssueResult struct {
	ChallengeId      int       `json:"challenge_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

type VerifyInput struct {
	EmployeeId int
	Code       string
	Latitude   float64
	Longitude  float64
	SiteId     int
	Device     string
}

type VerifyResult struct {
	Type   models.ScanType          `json:"type"`
	Record *models.AttendanceRecord `json:"record"`
}

type CurrentCode struct {
	ChallengeId int       `json:"challenge_id"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *OTPAuthority) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}

// Issue replaces any outstanding challenge of the employee with a new one and queues its delivery.
func (a *OTPAuthority) Issue(ctx context.Context, employeeId int) (*IssueResult, error) {
	ctx, span := tracer.Start(ctx, "otp.issue", trace.WithAttributes(attribute.Int("employee_id", employeeId)))
	defer span.End()

	if employeeId <= 0 {
		return nil, models.NewValidationError("employee_id", errors.New("employee is required"))
	}
	unlock, err := a.Locker.Lock(ctx, otpKey(employeeId))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := a.now()
	var result *IssueResult
	err = a.Repo.Transaction(ctx, func(tx models.Repository) error {
		emp, err := tx.GetEmployee(ctx, employeeId)
		if err != nil {
			return err
		}
		if !emp.IsActive {
			return models.NewValidationError("employee_id", errors.New("employee is inactive"))
		}
		locked, err := tx.FindActiveLockout(ctx, employeeId, now)
		if err != nil {
			return err
		}
		if locked != nil {
			return &models.BlockedError{Until: *locked.LockoutUntil}
		}
		if err := tx.ExpireValidChallenges(ctx, employeeId); err != nil {
			return err
		}
		code, err := a.GenerateCode(a.Policy.OTPLength)
		if err != nil {
			return err
		}
		challenge := models.NewOTPChallenge(employeeId, code, now, a.Policy.OTPWindow)
		if err := tx.CreateChallenge(ctx, challenge); err != nil {
			return err
		}
		if err := tx.CreateDelivery(ctx, a.newDelivery(ctx, emp, challenge)); err != nil {
			return err
		}
		result = &IssueResult{
			ChallengeId:      challenge.ID,
			ExpiresAt:        challenge.ExpiresAt,
			ExpiresInSeconds: int(a.Policy.OTPWindow / time.Second),
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

// newDelivery builds the outbox row. A phone that cannot be normalised is recorded as DEAD
// right away; issuance itself never fails on delivery problems.
func (a *OTPAuthority) newDelivery(ctx context.Context, emp *models.Employee, c *models.OTPChallenge) *models.OTPDelivery {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	d := &models.OTPDelivery{
		ChallengeId:   c.ID,
		EmployeeId:    emp.ID,
		Channel:       a.Policy.DeliveryChannel,
		Status:        models.DeliveryStatusPending,
		CorrelationId: correlationId,
	}
	recipient, err := utils.FormatE164(emp.Phone, a.Policy.PhoneRegion)
	if err != nil {
		msg := "invalid recipient phone: " + err.Error()
		d.Status = models.DeliveryStatusDead
		d.LastError = &msg
		d.Recipient = emp.Phone
		if a.Logger != nil {
			a.Logger.WithFields(logrus.Fields{
				"field":        "OTPAuthority",
				"employee_id":  emp.ID,
				"challenge_id": c.ID,
			}).Warn("otp delivery not queued: " + msg)
		}
		return d
	}
	d.Recipient = recipient
	return d
}

// Verify checks code, expiry and geofence, then marks attendance. Wrong guesses and expiry are
// committed even though an error is returned.
func (a *OTPAuthority) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	ctx, span := tracer.Start(ctx, "otp.verify", trace.WithAttributes(
		attribute.Int("employee_id", in.EmployeeId),
		attribute.Int("site_id", in.SiteId),
	))
	defer span.End()

	claimed := geo.Point{Latitude: in.Latitude, Longitude: in.Longitude}
	if err := geo.ValidateCoordinates(claimed); err != nil {
		return nil, models.NewValidationError("latitude/longitude", err)
	}
	if in.EmployeeId <= 0 {
		return nil, models.NewValidationError("employee_id", errors.New("employee is required"))
	}
	if in.SiteId <= 0 {
		return nil, models.NewValidationError("site_id", errors.New("site is required"))
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, models.NewValidationError("code", errors.New("code is required"))
	}

	now := a.now()
	workDate := models.DateOf(now, a.Policy.Location)
	unlock, err := a.Locker.LockAll(ctx, otpKey(in.EmployeeId), attendanceKey(in.EmployeeId, workDate))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		result    *VerifyResult
		verifyErr error
	)
	err = a.Repo.Transaction(ctx, func(tx models.Repository) error {
		emp, err := tx.GetEmployee(ctx, in.EmployeeId)
		if err != nil {
			return err
		}
		if !emp.IsActive {
			return models.NewValidationError("employee_id", errors.New("employee is inactive"))
		}
		challenge, err := tx.FindValidChallenge(ctx, in.EmployeeId)
		if errors.Is(err, models.ErrRecordNotFound) {
			return models.ErrOTPNotFound
		}
		if err != nil {
			return err
		}

		if challenge.IsExpiredAt(now, a.Policy.ClockSkew) {
			challenge.Expire()
			if err := tx.UpdateChallenge(ctx, challenge); err != nil {
				return err
			}
			verifyErr = models.ErrOTPExpired
			return nil
		}

		if !codesEqual(challenge.Code, code) {
			lockedUntil := challenge.RecordWrongAttempt(now, a.Policy.MaxAttempts, a.Policy.Lockout)
			if err := tx.UpdateChallenge(ctx, challenge); err != nil {
				return err
			}
			left := a.Policy.MaxAttempts - challenge.WrongAttempts
			if left < 0 {
				left = 0
			}
			verifyErr = &models.InvalidCodeError{AttemptsLeft: left, LockedUntil: lockedUntil}
			if lockedUntil != nil && a.Logger != nil {
				a.Logger.WithFields(logrus.Fields{
					"field":        "OTPAuthority",
					"employee_id":  in.EmployeeId,
					"challenge_id": challenge.ID,
					"locked_until": lockedUntil.Format(time.RFC3339),
				}).Warn("otp lockout triggered")
			}
			return nil
		}

		site, err := tx.GetSite(ctx, in.SiteId)
		if err != nil {
			return err
		}
		if !site.IsActive {
			return models.ErrSiteInactive
		}
		inside, distance := geo.WithinRadius(claimed, site.Center(), site.RadiusMeters)
		if !inside {
			// the code is neither consumed nor charged
			return &models.OutOfRangeError{Distance: distance, Radius: site.RadiusMeters}
		}

		scanType, record, err := a.Attendance.markScan(ctx, tx, in.EmployeeId, workDate, models.Scan{
			At:        now,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			Device:    in.Device,
			SiteId:    site.ID,
		})
		if err != nil {
			return err
		}
		challenge.MarkUsed(now)
		if err := tx.UpdateChallenge(ctx, challenge); err != nil {
			return err
		}
		result = &VerifyResult{Type: scanType, Record: record}
		return nil
	})
	if err == nil {
		err = verifyErr
	}
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("scan_type", string(result.Type)))
	return result, nil
}

// CurrentCode reads back the employee's live code for support staff.
func (a *OTPAuthority) CurrentCode(ctx context.Context, employeeId int) (*CurrentCode, error) {
	challenge, err := a.Repo.FindValidChallenge(ctx, employeeId)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, models.ErrOTPNotFound
	}
	if err != nil {
		return nil, err
	}
	if challenge.IsExpiredAt(a.now(), a.Policy.ClockSkew) {
		return nil, models.ErrOTPNotFound
	}
	return &CurrentCode{
		ChallengeId: challenge.ID,
		Code:        challenge.Code,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// ExpireStale flips valid challenges past expiry plus skew to expired.
func (a *OTPAuthority) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.Policy.ClockSkew)
	return a.Repo.ExpireStaleChallenges(ctx, cutoff)
}

func recordSpanError(span trace.Span, err error) {
	if models.KindOf(err) == models.ErrorKindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.String("error_kind", string(models.KindOf(err))))
}
