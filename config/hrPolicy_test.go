package config

import (
	"testing"
	"time"
)

func TestParseWeekday(t *testing.T) {
	cases := []struct {
		in   string
		want time.Weekday
		ok   bool
	}{
		{"sunday", time.Sunday, true},
		{"Fri", time.Friday, true},
		{" SATURDAY ", time.Saturday, true},
		{"", time.Sunday, false},
		{"someday", time.Sunday, false},
	}
	for _, tc := range cases {
		got, ok := ParseWeekday(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseWeekday(%q) = %v,%v; want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLoadHRPolicy_Defaults(t *testing.T) {
	for _, k := range []string{"OTP_LENGTH", "OTP_WINDOW_SECONDS", "OTP_CLOCK_SKEW_SECONDS", "OTP_MAX_ATTEMPTS",
		"OTP_LOCKOUT_MINUTES", "STANDARD_DAY_HOURS", "HALF_DAY_HOURS", "OVERTIME_MULTIPLIER", "REST_WEEKDAY",
		"BUSINESS_TIMEZONE", "OTP_DELIVERY_CHANNEL", "PHONE_REGION"} {
		t.Setenv(k, "")
	}
	p := LoadHRPolicy()
	if p.OTPLength != 6 || p.OTPWindow != 5*time.Minute || p.ClockSkew != 10*time.Second {
		t.Fatalf("unexpected otp defaults: %+v", p)
	}
	if p.MaxAttempts != 3 || p.Lockout != 10*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", p)
	}
	if p.StandardDayHours.String() != "8" || p.OvertimeMultiplier.String() != "1.5" {
		t.Fatalf("unexpected payroll defaults: std=%s mult=%s", p.StandardDayHours, p.OvertimeMultiplier)
	}
	if p.RestWeekday != time.Sunday || p.Location != time.UTC {
		t.Fatalf("unexpected calendar defaults: %v %v", p.RestWeekday, p.Location)
	}
}

func TestLoadHRPolicy_EnvOverrides(t *testing.T) {
	t.Setenv("OTP_LENGTH", "8")
	t.Setenv("OTP_WINDOW_SECONDS", "120")
	t.Setenv("OTP_CLOCK_SKEW_SECONDS", "0")
	t.Setenv("STANDARD_DAY_HOURS", "7.5")
	t.Setenv("REST_WEEKDAY", "friday")
	t.Setenv("OTP_DELIVERY_CHANNEL", "WhatsApp")
	t.Setenv("OVERTIME_MULTIPLIER", "-2")

	p := LoadHRPolicy()
	if p.OTPLength != 8 || p.OTPWindow != 2*time.Minute || p.ClockSkew != 0 {
		t.Fatalf("otp overrides not applied: %+v", p)
	}
	if p.StandardDayHours.String() != "7.5" {
		t.Fatalf("expected 7.5 standard hours, got %s", p.StandardDayHours)
	}
	if p.RestWeekday != time.Friday || p.DeliveryChannel != "whatsapp" {
		t.Fatalf("unexpected rest day/channel: %v %s", p.RestWeekday, p.DeliveryChannel)
	}
	if p.OvertimeMultiplier.String() != "1.5" {
		t.Fatalf("negative multiplier should keep default, got %s", p.OvertimeMultiplier)
	}
}
