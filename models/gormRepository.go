package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hr_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository implements Repository on MySQL or Postgres through gorm.
type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE inside a transaction.
func (r *GormRepository) forUpdate(q *gorm.DB) *gorm.DB {
	if !r.inTx {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, inTx: true})
	})
}

func (r *GormRepository) create(ctx context.Context, value any) error {
	return translateDBError(r.conn(ctx).Create(value).Error)
}

// updateAll writes every column of value by primary key. Save() is avoided because it
// falls back to an upsert when no row was updated.
func (r *GormRepository) updateAll(ctx context.Context, value any) (int64, error) {
	res := r.conn(ctx).Select("*").Omit("created_at").Updates(value)
	return res.RowsAffected, translateDBError(res.Error)
}

func first[T any](q *gorm.DB) (*T, error) {
	var result T
	if err := q.First(&result).Error; err != nil {
		return nil, translateDBError(err)
	}
	return &result, nil
}

func find[T any](q *gorm.DB) ([]*T, error) {
	var results []*T
	if err := q.Find(&results).Error; err != nil {
		return nil, translateDBError(err)
	}
	return results, nil
}

/* sites */

func (r *GormRepository) CreateSite(ctx context.Context, site *Site) error {
	return r.create(ctx, site)
}

func (r *GormRepository) UpdateSite(ctx context.Context, site *Site) error {
	_, err := r.updateAll(ctx, site)
	return err
}

func (r *GormRepository) ForgetSite(ctx context.Context, id int) {
	// best effort; the next read repopulates
	_ = utils.RemoveRedisItem[Site](id)
}

func (r *GormRepository) GetSite(ctx context.Context, id int) (*Site, error) {
	if !r.inTx {
		if cached, err := utils.RetrieveRedis[Site](id); err == nil && cached != nil {
			return cached, nil
		}
	}
	site, err := first[Site](r.forUpdate(r.conn(ctx)).Where("id = ?", id))
	if err != nil {
		return nil, err
	}
	if !r.inTx {
		_ = utils.StoreRedis[Site](site, id)
	}
	return site, nil
}

func (r *GormRepository) ListSites(ctx context.Context) ([]*Site, error) {
	return find[Site](r.conn(ctx).Order("name"))
}

/* employees */

func (r *GormRepository) CreateEmployee(ctx context.Context, emp *Employee) error {
	return r.create(ctx, emp)
}

func (r *GormRepository) UpdateEmployee(ctx context.Context, emp *Employee) error {
	_, err := r.updateAll(ctx, emp)
	return err
}

func (r *GormRepository) GetEmployee(ctx context.Context, id int) (*Employee, error) {
	return first[Employee](r.conn(ctx).Where("id = ?", id))
}

func (r *GormRepository) GetEmployeesByIds(ctx context.Context, ids []int) ([]*Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return find[Employee](r.conn(ctx).Where("id IN ?", ids))
}

func (r *GormRepository) ListActiveEmployees(ctx context.Context) ([]*Employee, error) {
	return find[Employee](r.conn(ctx).Where("is_active = ?", true).Order("id"))
}

/* otp challenges */

func (r *GormRepository) FindValidChallenge(ctx context.Context, employeeId int) (*OTPChallenge, error) {
	return first[OTPChallenge](r.forUpdate(r.conn(ctx)).
		Where("employee_id = ? AND status = ?", employeeId, OTPStatusValid).
		Order("id DESC"))
}

func (r *GormRepository) FindActiveLockout(ctx context.Context, employeeId int, now time.Time) (*OTPChallenge, error) {
	c, err := first[OTPChallenge](r.conn(ctx).
		Where("employee_id = ? AND lockout_until IS NOT NULL AND lockout_until > ?", employeeId, now).
		Order("lockout_until DESC"))
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return c, err
}

func (r *GormRepository) GetChallenge(ctx context.Context, id int) (*OTPChallenge, error) {
	return first[OTPChallenge](r.forUpdate(r.conn(ctx)).Where("id = ?", id))
}

func (r *GormRepository) CreateChallenge(ctx context.Context, c *OTPChallenge) error {
	return r.create(ctx, c)
}

func (r *GormRepository) UpdateChallenge(ctx context.Context, c *OTPChallenge) error {
	_, err := r.updateAll(ctx, c)
	return err
}

func (r *GormRepository) ExpireValidChallenges(ctx context.Context, employeeId int) error {
	return translateDBError(r.conn(ctx).Model(&OTPChallenge{}).
		Where("employee_id = ? AND status = ?", employeeId, OTPStatusValid).
		Updates(map[string]interface{}{
			"status":     OTPStatusExpired,
			"valid_slot": nil,
		}).Error)
}

func (r *GormRepository) ExpireStaleChallenges(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.conn(ctx).Model(&OTPChallenge{}).
		Where("status = ? AND expires_at < ?", OTPStatusValid, cutoff).
		Updates(map[string]interface{}{
			"status":     OTPStatusExpired,
			"valid_slot": nil,
		})
	return res.RowsAffected, translateDBError(res.Error)
}

/* otp delivery outbox */

func (r *GormRepository) CreateDelivery(ctx context.Context, d *OTPDelivery) error {
	return r.create(ctx, d)
}

func (r *GormRepository) UpdateDelivery(ctx context.Context, d *OTPDelivery) error {
	_, err := r.updateAll(ctx, d)
	return err
}

func (r *GormRepository) ClaimDeliveries(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, dispatcherId string) ([]*OTPDelivery, error) {
	var claimed []*OTPDelivery
	err := r.Transaction(ctx, func(txRepo Repository) error {
		tx := txRepo.(*GormRepository).conn(ctx)
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		var rows []*OTPDelivery
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{DeliveryStatusPending, DeliveryStatusFailed}, now, DeliveryStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		for _, d := range rows {
			// poison rows go terminal (DLQ equivalent)
			if maxAttempts > 0 && d.Attempts >= maxAttempts {
				msg := "max delivery attempts exceeded"
				if err := tx.Model(&OTPDelivery{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
					"status":          DeliveryStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}
			lockedBy := dispatcherId
			lockedAt := now
			if err := tx.Model(&OTPDelivery{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
				"status":          DeliveryStatusProcessing,
				"locked_at":       &lockedAt,
				"locked_by":       &lockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
			d.Status = DeliveryStatusProcessing
			d.LockedAt = &lockedAt
			d.LockedBy = &lockedBy
			d.Attempts++
			d.NextAttemptAt = nil
			claimed = append(claimed, d)
		}
		return nil
	})
	if err != nil {
		return nil, translateDBError(err)
	}
	return claimed, nil
}

/* attendance */

func (r *GormRepository) FindAttendance(ctx context.Context, employeeId int, date time.Time) (*AttendanceRecord, error) {
	return first[AttendanceRecord](r.forUpdate(r.conn(ctx)).
		Where("employee_id = ? AND work_date = ?", employeeId, datatypes.Date(TruncateDate(date))))
}

func (r *GormRepository) GetAttendance(ctx context.Context, id int) (*AttendanceRecord, error) {
	return first[AttendanceRecord](r.forUpdate(r.conn(ctx)).Where("id = ?", id))
}

func (r *GormRepository) CreateAttendance(ctx context.Context, rec *AttendanceRecord) error {
	return r.create(ctx, rec)
}

func (r *GormRepository) UpdateAttendance(ctx context.Context, rec *AttendanceRecord) error {
	_, err := r.updateAll(ctx, rec)
	return err
}

func (r *GormRepository) ListAttendance(ctx context.Context, employeeId int, from, to time.Time) ([]*AttendanceRecord, error) {
	return find[AttendanceRecord](r.conn(ctx).
		Where("employee_id = ? AND work_date BETWEEN ? AND ?", employeeId,
			datatypes.Date(TruncateDate(from)), datatypes.Date(TruncateDate(to))).
		Order("work_date"))
}

/* leave */

func (r *GormRepository) CreateLeave(ctx context.Context, l *LeaveRecord) error {
	return r.create(ctx, l)
}

func (r *GormRepository) UpdateLeave(ctx context.Context, l *LeaveRecord) error {
	_, err := r.updateAll(ctx, l)
	return err
}

func (r *GormRepository) GetLeave(ctx context.Context, id int) (*LeaveRecord, error) {
	return first[LeaveRecord](r.forUpdate(r.conn(ctx)).Where("id = ?", id))
}

func (r *GormRepository) ListLeaves(ctx context.Context, filter LeaveFilter) ([]*LeaveRecord, error) {
	q := r.conn(ctx)
	if filter.EmployeeId > 0 {
		q = q.Where("employee_id = ?", filter.EmployeeId)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return find[LeaveRecord](q.Order("start_date DESC, id DESC"))
}

func (r *GormRepository) FindOverlappingLeaves(ctx context.Context, employeeId int, start, end time.Time) ([]*LeaveRecord, error) {
	return find[LeaveRecord](r.forUpdate(r.conn(ctx)).
		Where("employee_id = ? AND status IN ? AND start_date <= ? AND end_date >= ?",
			employeeId, []LeaveStatus{LeaveStatusPending, LeaveStatusApproved},
			datatypes.Date(TruncateDate(end)), datatypes.Date(TruncateDate(start))))
}

func (r *GormRepository) ListApprovedLeaves(ctx context.Context, employeeId int, from, to time.Time) ([]*LeaveRecord, error) {
	return find[LeaveRecord](r.conn(ctx).
		Where("employee_id = ? AND status = ? AND start_date <= ? AND end_date >= ?",
			employeeId, LeaveStatusApproved,
			datatypes.Date(TruncateDate(to)), datatypes.Date(TruncateDate(from))).
		Order("start_date"))
}

/* payroll */

func (r *GormRepository) FindPayroll(ctx context.Context, employeeId, year, month int) (*PayrollRecord, error) {
	return first[PayrollRecord](r.forUpdate(r.conn(ctx)).
		Where("employee_id = ? AND year = ? AND month = ?", employeeId, year, month))
}

func (r *GormRepository) GetPayroll(ctx context.Context, id int) (*PayrollRecord, error) {
	return first[PayrollRecord](r.forUpdate(r.conn(ctx)).Where("id = ?", id))
}

func (r *GormRepository) CreatePayroll(ctx context.Context, p *PayrollRecord) error {
	return r.create(ctx, p)
}

func (r *GormRepository) UpdatePayroll(ctx context.Context, p *PayrollRecord) error {
	affected, err := r.updateAll(ctx, p)
	if err != nil {
		return err
	}
	if affected == 0 {
		// the lock guard turns writes to locked rows into no-ops
		var status string
		if err := r.conn(ctx).Model(&PayrollRecord{}).Where("id = ?", p.ID).Select("status").Scan(&status).Error; err != nil {
			return translateDBError(err)
		}
		if PayrollStatus(status) == PayrollStatusLocked {
			return ErrLocked
		}
	}
	return nil
}

func (r *GormRepository) ListPayroll(ctx context.Context, year, month int) ([]*PayrollRecord, error) {
	return find[PayrollRecord](r.conn(ctx).Where("year = ? AND month = ?", year, month).Order("employee_id"))
}
