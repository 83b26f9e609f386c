package config

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	payrollTable        = "payroll_records"
	payrollLockedStatus = "locked"
)

// PayrollLockGuardPlugin makes every UPDATE/DELETE on payroll_records conditional on
// status <> 'locked', so a locked period cannot be rewritten even by a stale writer.
// A guarded write that hits a locked row affects zero rows.
//
// NOTE: Raw SQL is not covered.
type PayrollLockGuardPlugin struct{}

func NewPayrollLockGuardPlugin() *PayrollLockGuardPlugin { return &PayrollLockGuardPlugin{} }

func (p *PayrollLockGuardPlugin) Name() string { return "payroll_lock_guard" }

func (p *PayrollLockGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("payroll_lock_guard:update", payrollLockGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("payroll_lock_guard:delete", payrollLockGuardCallback); err != nil {
		return err
	}
	return nil
}

func payrollLockGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if db.Statement.Table != payrollTable {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Neq{
				Column: clause.Column{Table: db.Statement.Table, Name: "status"},
				Value:  payrollLockedStatus,
			},
		},
	})
}
