package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmdatafocus/hr_backend/geo"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{NewValidationError("name", errors.New("required")), ErrorKindValidation},
		{fmt.Errorf("wrap: %w", geo.ErrInvalidCoordinates), ErrorKindValidation},
		{ErrSiteInactive, ErrorKindValidation},
		{ErrRecordNotFound, ErrorKindNotFound},
		{ErrOTPNotFound, ErrorKindNotFound},
		{&InvalidCodeError{AttemptsLeft: 2}, ErrorKindSecurity},
		{&OutOfRangeError{Distance: 150, Radius: 100}, ErrorKindSecurity},
		{ErrOTPExpired, ErrorKindSecurity},
		{&BlockedError{Until: time.Now()}, ErrorKindConflict},
		{ErrLocked, ErrorKindConflict},
		{fmt.Errorf("%w: code", ErrDuplicate), ErrorKindConflict},
		{errors.New("boom"), ErrorKindInternal},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Fatalf("%v: expected %q, got %q", c.err, c.want, got)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	until := time.Date(2024, 6, 10, 9, 10, 0, 0, time.UTC)
	if got := (&InvalidCodeError{LockedUntil: &until}).Error(); got != "invalid otp code; too many attempts, locked until 2024-06-10T09:10:00Z" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&OutOfRangeError{Distance: 150, Radius: 100}).Error(); got != "position is outside the site radius: 150.0m away, allowed 100.0m" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestTranslateDBError(t *testing.T) {
	if err := translateDBError(gorm.ErrRecordNotFound); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := translateDBError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate for mysql, got %v", err)
	}
	if err := translateDBError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_payroll_period"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate for postgres, got %v", err)
	}
	other := errors.New("connection reset")
	if err := translateDBError(other); err != other {
		t.Fatalf("unknown errors pass through, got %v", err)
	}
}
