package config

import "time"

// OTPDeliveryDispatchEnabled starts the delivery outbox dispatcher in the API process.
//
// Set via env:
// - OTP_DELIVERY_DISPATCH_ENABLED=false (when a separate worker publishes)
func OTPDeliveryDispatchEnabled() bool {
	return boolFromEnv("OTP_DELIVERY_DISPATCH_ENABLED", true)
}

// OTPSweepEnabled schedules the periodic expiry sweep of stale challenges.
//
// Set via env:
// - OTP_SWEEP_ENABLED=false
// - OTP_SWEEP_SCHEDULE="@every 1m" (robfig/cron spec)
func OTPSweepEnabled() bool {
	return boolFromEnv("OTP_SWEEP_ENABLED", true)
}

func OTPSweepSchedule() string {
	return stringFromEnv("OTP_SWEEP_SCHEDULE", "@every 1m")
}

// MigrationsDisabled skips AutoMigrate on startup (run it as a separate job instead).
func MigrationsDisabled() bool {
	return boolFromEnv("SKIP_MIGRATIONS", false)
}

// RateLimitEnabled turns on the global per-IP limiter.
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
// - RATE_LIMIT_WINDOW_SECONDS=60
// - RATE_LIMIT_MAX_REQUESTS=600
// - OTP_RATE_LIMIT_MAX_REQUESTS=5 (code issuance, always on when redis is up)
func RateLimitEnabled() bool {
	return boolFromEnv("RATE_LIMIT_ENABLED", false)
}

func RateLimitWindow() time.Duration {
	return time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
}

func RateLimitMaxRequests() int64 {
	return int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
}

func OTPRateLimitMaxRequests() int64 {
	return int64(intFromEnv("OTP_RATE_LIMIT_MAX_REQUESTS", 5))
}
