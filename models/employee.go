package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PayComponent is one named allowance or deduction.
type PayComponent struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type PayComponents []PayComponent

func (p PayComponents) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p {
		total = total.Add(c.Amount)
	}
	return total.Round(2)
}

type Employee struct {
	ID               int                                `gorm:"primary_key" json:"id"`
	EmployeeCode     string                             `gorm:"size:50;not null;uniqueIndex" json:"employee_code"`
	Name             string                             `gorm:"size:100;not null" json:"name"`
	Phone            string                             `gorm:"size:30" json:"phone"`
	CompensationMode CompensationMode                   `gorm:"size:20;not null" json:"compensation_mode"`
	BasicSalary      decimal.NullDecimal                `gorm:"type:decimal(20,4)" json:"basic_salary"`
	HourlyWage       decimal.NullDecimal                `gorm:"type:decimal(20,4)" json:"hourly_wage"`
	Allowances       datatypes.JSONType[PayComponents] `json:"allowances"`
	Deductions       datatypes.JSONType[PayComponents] `json:"deductions"`
	IsActive         bool                               `gorm:"not null;index" json:"is_active"`
	CreatedAt        time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmployee struct {
	EmployeeCode     string           `json:"employee_code" binding:"required,max=50"`
	Name             string           `json:"name" binding:"required,max=100"`
	Phone            string           `json:"phone" binding:"required"`
	CompensationMode CompensationMode `json:"compensation_mode" binding:"required,oneof=monthly hourly"`
	BasicSalary      *decimal.Decimal `json:"basic_salary"`
	HourlyWage       *decimal.Decimal `json:"hourly_wage"`
	Allowances       []PayComponent   `json:"allowances" binding:"dive"`
	Deductions       []PayComponent   `json:"deductions" binding:"dive"`
}

func (e Employee) AllowanceList() PayComponents {
	return e.Allowances.Data()
}

func (e Employee) DeductionList() PayComponents {
	return e.Deductions.Data()
}

// validate input for both create & update
func (input *NewEmployee) Validate() error {
	input.EmployeeCode = strings.TrimSpace(input.EmployeeCode)
	input.Name = strings.TrimSpace(input.Name)
	if input.EmployeeCode == "" {
		return NewValidationError("employee_code", errors.New("employee code is required"))
	}
	if input.Name == "" {
		return NewValidationError("name", errors.New("name is required"))
	}
	switch input.CompensationMode {
	case CompensationModeMonthly:
		if input.BasicSalary == nil || !input.BasicSalary.IsPositive() {
			return NewValidationError("basic_salary", errors.New("monthly employees need a positive basic salary"))
		}
		if input.HourlyWage != nil {
			return NewValidationError("hourly_wage", errors.New("monthly employees must not have an hourly wage"))
		}
	case CompensationModeHourly:
		if input.HourlyWage == nil || !input.HourlyWage.IsPositive() {
			return NewValidationError("hourly_wage", errors.New("hourly employees need a positive hourly wage"))
		}
		if input.BasicSalary != nil {
			return NewValidationError("basic_salary", errors.New("hourly employees must not have a basic salary"))
		}
	default:
		return NewValidationError("compensation_mode", errors.New("compensation mode must be monthly or hourly"))
	}
	if err := validateComponents("allowances", input.Allowances); err != nil {
		return err
	}
	return validateComponents("deductions", input.Deductions)
}

func validateComponents(field string, items []PayComponent) error {
	for i, c := range items {
		if strings.TrimSpace(c.Name) == "" {
			return NewValidationError(fmt.Sprintf("%s[%d].name", field, i), errors.New("name is required"))
		}
		if c.Amount.IsNegative() {
			return NewValidationError(fmt.Sprintf("%s[%d].amount", field, i), errors.New("amount must not be negative"))
		}
	}
	return nil
}

// Apply copies validated input onto e; phone is expected to be normalised by the caller.
func (input *NewEmployee) Apply(e *Employee) {
	e.EmployeeCode = input.EmployeeCode
	e.Name = input.Name
	e.Phone = input.Phone
	e.CompensationMode = input.CompensationMode
	e.BasicSalary = decimal.NullDecimal{}
	e.HourlyWage = decimal.NullDecimal{}
	if input.BasicSalary != nil {
		e.BasicSalary = decimal.NewNullDecimal(*input.BasicSalary)
	}
	if input.HourlyWage != nil {
		e.HourlyWage = decimal.NewNullDecimal(*input.HourlyWage)
	}
	e.Allowances = datatypes.NewJSONType(PayComponents(input.Allowances))
	e.Deductions = datatypes.NewJSONType(PayComponents(input.Deductions))
	if e.ID == 0 {
		e.IsActive = true
	}
}
