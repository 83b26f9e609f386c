package config

import (
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HRPolicy holds the global attendance, OTP and payroll rules.
type HRPolicy struct {
	OTPLength   int
	OTPWindow   time.Duration
	ClockSkew   time.Duration
	MaxAttempts int
	Lockout     time.Duration

	StandardDayHours   decimal.Decimal
	HalfDayHours       decimal.Decimal
	OvertimeMultiplier decimal.Decimal
	RestWeekday        time.Weekday

	// Location decides which calendar date a scan belongs to.
	Location *time.Location

	DeliveryChannel string
	PhoneRegion     string
}

func DefaultHRPolicy() HRPolicy {
	return HRPolicy{
		OTPLength:          6,
		OTPWindow:          5 * time.Minute,
		ClockSkew:          10 * time.Second,
		MaxAttempts:        3,
		Lockout:            10 * time.Minute,
		StandardDayHours:   decimal.NewFromInt(8),
		HalfDayHours:       decimal.NewFromInt(4),
		OvertimeMultiplier: decimal.NewFromFloat(1.5),
		RestWeekday:        time.Sunday,
		Location:           time.UTC,
		DeliveryChannel:    "sms",
		PhoneRegion:        "MM",
	}
}

// LoadHRPolicy overlays env settings on DefaultHRPolicy. Invalid values keep the default.
func LoadHRPolicy() HRPolicy {
	p := DefaultHRPolicy()

	if n := intFromEnv("OTP_LENGTH", p.OTPLength); n >= 4 && n <= 8 {
		p.OTPLength = n
	}
	if n := intFromEnv("OTP_WINDOW_SECONDS", 0); n > 0 {
		p.OTPWindow = time.Duration(n) * time.Second
	}
	if n := intFromEnv("OTP_CLOCK_SKEW_SECONDS", -1); n >= 0 {
		p.ClockSkew = time.Duration(n) * time.Second
	}
	if n := intFromEnv("OTP_MAX_ATTEMPTS", 0); n > 0 {
		p.MaxAttempts = n
	}
	if n := intFromEnv("OTP_LOCKOUT_MINUTES", 0); n > 0 {
		p.Lockout = time.Duration(n) * time.Minute
	}
	p.StandardDayHours = decimalFromEnv("STANDARD_DAY_HOURS", p.StandardDayHours)
	p.HalfDayHours = decimalFromEnv("HALF_DAY_HOURS", p.HalfDayHours)
	p.OvertimeMultiplier = decimalFromEnv("OVERTIME_MULTIPLIER", p.OvertimeMultiplier)
	if wd, ok := ParseWeekday(stringFromEnv("REST_WEEKDAY", "")); ok {
		p.RestWeekday = wd
	}
	if tz := stringFromEnv("BUSINESS_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Printf("invalid BUSINESS_TIMEZONE %q: %v; using UTC", tz, err)
		} else {
			p.Location = loc
		}
	}
	switch ch := strings.ToLower(stringFromEnv("OTP_DELIVERY_CHANNEL", p.DeliveryChannel)); ch {
	case "sms", "whatsapp":
		p.DeliveryChannel = ch
	}
	p.PhoneRegion = strings.ToUpper(stringFromEnv("PHONE_REGION", p.PhoneRegion))
	return p
}

func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Sunday, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return time.Sunday, false
}

func decimalFromEnv(key string, def decimal.Decimal) decimal.Decimal {
	v := stringFromEnv(key, "")
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
