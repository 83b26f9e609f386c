package models

import "time"

// OTPChallenge is one issued code. ValidSlot equals EmployeeId while the challenge is valid and
// is NULL otherwise; its unique index keeps at most one valid challenge per employee.
type OTPChallenge struct {
	ID            int        `gorm:"primary_key" json:"id"`
	EmployeeId    int        `gorm:"not null;index:idx_otp_employee_status,priority:1" json:"employee_id"`
	Code          string     `gorm:"size:10;not null" json:"-"`
	IssuedAt      time.Time  `gorm:"not null" json:"issued_at"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	Status        OTPStatus  `gorm:"size:10;not null;index:idx_otp_employee_status,priority:2" json:"status"`
	WrongAttempts int        `gorm:"not null;default:0" json:"wrong_attempts"`
	LockoutUntil  *time.Time `gorm:"index" json:"lockout_until"`
	UsedAt        *time.Time `json:"used_at"`
	ValidSlot     *int       `gorm:"uniqueIndex" json:"-"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func NewOTPChallenge(employeeId int, code string, now time.Time, window time.Duration) *OTPChallenge {
	slot := employeeId
	return &OTPChallenge{
		EmployeeId: employeeId,
		Code:       code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(window),
		Status:     OTPStatusValid,
		ValidSlot:  &slot,
	}
}

// IsExpiredAt applies the clock-skew tolerance to the expiry.
func (c *OTPChallenge) IsExpiredAt(now time.Time, skew time.Duration) bool {
	return now.After(c.ExpiresAt.Add(skew))
}

func (c *OTPChallenge) IsLockedAt(now time.Time) bool {
	return c.LockoutUntil != nil && c.LockoutUntil.After(now)
}

func (c *OTPChallenge) Expire() {
	c.Status = OTPStatusExpired
	c.ValidSlot = nil
}

func (c *OTPChallenge) MarkUsed(at time.Time) {
	c.Status = OTPStatusUsed
	c.UsedAt = &at
	c.ValidSlot = nil
}

// RecordWrongAttempt counts a failed guess and burns the challenge once maxAttempts is reached.
// It returns the lockout end when the lockout was triggered.
func (c *OTPChallenge) RecordWrongAttempt(now time.Time, maxAttempts int, lockout time.Duration) *time.Time {
	c.WrongAttempts++
	if c.WrongAttempts < maxAttempts {
		return nil
	}
	until := now.Add(lockout)
	c.LockoutUntil = &until
	c.Expire()
	return &until
}
