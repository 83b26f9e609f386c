package models

import (
	"context"
	"time"
)

// Repository is the persistence seam of the HR services. Reads named Find*/Get* inside a
// Transaction lock the returned rows until commit.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateSite(ctx context.Context, site *Site) error
	UpdateSite(ctx context.Context, site *Site) error
	GetSite(ctx context.Context, id int) (*Site, error)
	ListSites(ctx context.Context) ([]*Site, error)
	// ForgetSite drops any cached copy of the site. Call it after the change has committed.
	ForgetSite(ctx context.Context, id int)

	CreateEmployee(ctx context.Context, emp *Employee) error
	UpdateEmployee(ctx context.Context, emp *Employee) error
	GetEmployee(ctx context.Context, id int) (*Employee, error)
	GetEmployeesByIds(ctx context.Context, ids []int) ([]*Employee, error)
	ListActiveEmployees(ctx context.Context) ([]*Employee, error)

	// FindValidChallenge returns the employee's valid challenge or ErrRecordNotFound.
	FindValidChallenge(ctx context.Context, employeeId int) (*OTPChallenge, error)
	// FindActiveLockout returns the challenge carrying the latest lockout still in force at now, or nil.
	FindActiveLockout(ctx context.Context, employeeId int, now time.Time) (*OTPChallenge, error)
	GetChallenge(ctx context.Context, id int) (*OTPChallenge, error)
	CreateChallenge(ctx context.Context, c *OTPChallenge) error
	UpdateChallenge(ctx context.Context, c *OTPChallenge) error
	ExpireValidChallenges(ctx context.Context, employeeId int) error
	// ExpireStaleChallenges expires valid challenges whose expiry is before cutoff.
	ExpireStaleChallenges(ctx context.Context, cutoff time.Time) (int64, error)

	CreateDelivery(ctx context.Context, d *OTPDelivery) error
	UpdateDelivery(ctx context.Context, d *OTPDelivery) error
	// ClaimDeliveries moves up to limit ready rows to PROCESSING for dispatcherId. Rows that already
	// used maxAttempts go DEAD instead and are not returned.
	ClaimDeliveries(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, dispatcherId string) ([]*OTPDelivery, error)

	FindAttendance(ctx context.Context, employeeId int, date time.Time) (*AttendanceRecord, error)
	GetAttendance(ctx context.Context, id int) (*AttendanceRecord, error)
	CreateAttendance(ctx context.Context, r *AttendanceRecord) error
	UpdateAttendance(ctx context.Context, r *AttendanceRecord) error
	ListAttendance(ctx context.Context, employeeId int, from, to time.Time) ([]*AttendanceRecord, error)

	CreateLeave(ctx context.Context, l *LeaveRecord) error
	UpdateLeave(ctx context.Context, l *LeaveRecord) error
	GetLeave(ctx context.Context, id int) (*LeaveRecord, error)
	ListLeaves(ctx context.Context, filter LeaveFilter) ([]*LeaveRecord, error)
	// FindOverlappingLeaves returns the employee's pending/approved leave intersecting [start, end].
	FindOverlappingLeaves(ctx context.Context, employeeId int, start, end time.Time) ([]*LeaveRecord, error)
	ListApprovedLeaves(ctx context.Context, employeeId int, from, to time.Time) ([]*LeaveRecord, error)

	FindPayroll(ctx context.Context, employeeId, year, month int) (*PayrollRecord, error)
	GetPayroll(ctx context.Context, id int) (*PayrollRecord, error)
	CreatePayroll(ctx context.Context, p *PayrollRecord) error
	// UpdatePayroll fails with ErrLocked when the stored row is locked.
	UpdatePayroll(ctx context.Context, p *PayrollRecord) error
	ListPayroll(ctx context.Context, year, month int) ([]*PayrollRecord, error)
}
