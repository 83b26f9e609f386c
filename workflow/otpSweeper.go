package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// OTPSweeper periodically expires challenges that outlived their window without being used.
type OTPSweeper struct {
	Authority *OTPAuthority
	Logger    *logrus.Logger
	Schedule  string
	Timeout   time.Duration

	cron *cron.Cron
}

func NewOTPSweeper(authority *OTPAuthority, logger *logrus.Logger, schedule string) *OTPSweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &OTPSweeper{
		Authority: authority,
		Logger:    logger,
		Schedule:  schedule,
		Timeout:   30 * time.Second,
	}
}

func (s *OTPSweeper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		_, _ = s.SweepOnce(ctx)
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *OTPSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *OTPSweeper) SweepOnce(ctx context.Context) (int64, error) {
	expired, err := s.Authority.ExpireStale(ctx)
	if err != nil {
		config.LogError(s.Logger, "otpSweeper.go", "SweepOnce", "ExpireStale", nil, err)
		return 0, err
	}
	if expired > 0 {
		s.Logger.WithFields(logrus.Fields{
			"field":   "OTPSweeper",
			"expired": expired,
		}).Info("expired stale otp challenges")
	}
	return expired, nil
}
