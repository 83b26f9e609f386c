package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/sirupsen/logrus"
)

// PublishFunc hands a delivery message to the messaging channel and returns the provider message id.
type PublishFunc func(ctx context.Context, msg config.OTPDeliveryMessage) (string, error)

// OTPDeliveryDispatcher drains the otp_deliveries outbox after the issuing transaction committed.
type OTPDeliveryDispatcher struct {
	Repo         models.Repository
	Logger       *logrus.Logger
	DispatcherID string
	Publish      PublishFunc
	Now          func() time.Time

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOTPDeliveryDispatcher(repo models.Repository, logger *logrus.Logger) *OTPDeliveryDispatcher {
	return &OTPDeliveryDispatcher{
		Repo:           repo,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishOTPDeliveryWithResult,
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    8,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OTPDeliveryDispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now()
}

func (d *OTPDeliveryDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and publishes it. It returns the number of rows handled.
func (d *OTPDeliveryDispatcher) DispatchOnce(ctx context.Context) int {
	if d.Repo == nil || d.Publish == nil {
		return 0
	}
	now := d.now()
	claimed, err := d.Repo.ClaimDeliveries(ctx, now, now.Add(-d.LockTimeout), d.BatchSize, d.MaxAttempts, d.DispatcherID)
	if err != nil {
		config.LogError(d.Logger, "otpDeliveryDispatcher.go", "DispatchOnce", "ClaimDeliveries", d.DispatcherID, err)
		return 0
	}
	for _, delivery := range claimed {
		d.deliver(ctx, delivery)
	}
	return len(claimed)
}

func (d *OTPDeliveryDispatcher) deliver(ctx context.Context, delivery *models.OTPDelivery) {
	challenge, err := d.Repo.GetChallenge(ctx, delivery.ChallengeId)
	if err != nil {
		d.markFailed(ctx, delivery, fmt.Errorf("load challenge: %w", err))
		return
	}
	now := d.now()
	// a code that was used, superseded or timed out is not worth sending
	if challenge.Status != models.OTPStatusValid || now.After(challenge.ExpiresAt) {
		d.finish(ctx, delivery, models.DeliveryStatusSkipped, nil, nil)
		return
	}

	msg := models.ConvertToDeliveryMessage(*delivery, *challenge)
	providerId, err := d.Publish(ctx, msg)
	if err != nil {
		d.markFailed(ctx, delivery, err)
		return
	}
	d.finish(ctx, delivery, models.DeliveryStatusSent, &providerId, &now)
}

func (d *OTPDeliveryDispatcher) finish(ctx context.Context, delivery *models.OTPDelivery, status string, providerId *string, sentAt *time.Time) {
	delivery.Status = status
	delivery.ProviderMessageId = providerId
	delivery.SentAt = sentAt
	delivery.LockedAt = nil
	delivery.LockedBy = nil
	delivery.NextAttemptAt = nil
	if err := d.Repo.UpdateDelivery(ctx, delivery); err != nil {
		config.LogError(d.Logger, "otpDeliveryDispatcher.go", "finish", "UpdateDelivery", delivery.ID, err)
	}
}

func (d *OTPDeliveryDispatcher) markFailed(ctx context.Context, delivery *models.OTPDelivery, cause error) {
	msg := cause.Error()
	delivery.LastError = &msg
	delivery.LockedAt = nil
	delivery.LockedBy = nil

	// terminal after MaxAttempts (DLQ equivalent)
	if d.MaxAttempts > 0 && delivery.Attempts >= d.MaxAttempts {
		delivery.Status = models.DeliveryStatusDead
		delivery.NextAttemptAt = nil
		if err := d.Repo.UpdateDelivery(ctx, delivery); err != nil {
			config.LogError(d.Logger, "otpDeliveryDispatcher.go", "markFailed", "UpdateDelivery", delivery.ID, err)
		}
		d.Logger.WithFields(logrus.Fields{
			"field":       "OTPDeliveryDispatcher",
			"delivery_id": delivery.ID,
			"employee_id": delivery.EmployeeId,
			"attempt":     delivery.Attempts,
		}).Error("otp delivery moved to DEAD after max attempts: " + msg)
		return
	}

	next := d.now().Add(deliveryBackoff(d.InitialBackoff, delivery.Attempts))
	delivery.Status = models.DeliveryStatusFailed
	delivery.NextAttemptAt = &next
	if err := d.Repo.UpdateDelivery(ctx, delivery); err != nil {
		config.LogError(d.Logger, "otpDeliveryDispatcher.go", "markFailed", "UpdateDelivery", delivery.ID, err)
	}
	d.Logger.WithFields(logrus.Fields{
		"field":           "OTPDeliveryDispatcher",
		"delivery_id":     delivery.ID,
		"employee_id":     delivery.EmployeeId,
		"attempt":         delivery.Attempts,
		"next_attempt_at": next.Format(time.RFC3339Nano),
	}).Error("otp delivery failed: " + msg)
}

// deliveryBackoff doubles from initial per attempt, capped at ten minutes.
func deliveryBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}
