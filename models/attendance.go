package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AttendanceRecord is the single record of one employee's business day.
type AttendanceRecord struct {
	ID                  int              `gorm:"primary_key" json:"id"`
	EmployeeId          int              `gorm:"not null;uniqueIndex:idx_attendance_employee_date,priority:1" json:"employee_id"`
	WorkDate            datatypes.Date   `gorm:"not null;uniqueIndex:idx_attendance_employee_date,priority:2;index" json:"work_date"`
	CheckInAt           *time.Time       `json:"check_in_at"`
	CheckInLatitude     *float64         `json:"check_in_latitude"`
	CheckInLongitude    *float64         `json:"check_in_longitude"`
	CheckInDevice       string           `gorm:"size:100" json:"check_in_device"`
	CheckInSiteId       *int             `json:"check_in_site_id"`
	CheckOutAt          *time.Time       `json:"check_out_at"`
	CheckOutLatitude    *float64         `json:"check_out_latitude"`
	CheckOutLongitude   *float64         `json:"check_out_longitude"`
	CheckOutDevice      string           `gorm:"size:100" json:"check_out_device"`
	CheckOutSiteId      *int             `json:"check_out_site_id"`
	TotalHours          decimal.Decimal  `gorm:"type:decimal(6,2);not null;default:0" json:"total_hours"`
	OvertimeHours       decimal.Decimal  `gorm:"type:decimal(6,2);not null;default:0" json:"overtime_hours"`
	Status              AttendanceStatus `gorm:"size:20;not null" json:"status"`
	IsManuallyCorrected bool             `gorm:"not null;default:false" json:"is_manually_corrected"`
	CorrectedBy         *int             `json:"corrected_by"`
	CorrectedAt         *time.Time       `json:"corrected_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Scan is a verified position report at a site.
type Scan struct {
	At        time.Time
	Latitude  float64
	Longitude float64
	Device    string
	SiteId    int
}

func (r AttendanceRecord) Date() time.Time {
	return TruncateDate(time.Time(r.WorkDate))
}

func (r AttendanceRecord) IsCompleted() bool {
	return r.CheckInAt != nil && r.CheckOutAt != nil
}

func NewAttendanceRecord(employeeId int, date time.Time, status AttendanceStatus) *AttendanceRecord {
	return &AttendanceRecord{
		EmployeeId: employeeId,
		WorkDate:   datatypes.Date(TruncateDate(date)),
		Status:     status,
	}
}

func (r *AttendanceRecord) ApplyCheckIn(scan Scan) {
	at, lat, lon, site := scan.At, scan.Latitude, scan.Longitude, scan.SiteId
	r.CheckInAt = &at
	r.CheckInLatitude = &lat
	r.CheckInLongitude = &lon
	r.CheckInDevice = scan.Device
	r.CheckInSiteId = &site
	r.Status = AttendanceStatusPresent
}

func (r *AttendanceRecord) ApplyCheckOut(scan Scan, policy config.HRPolicy) error {
	if r.CheckOutAt != nil {
		return ErrAlreadyCompleted
	}
	if r.CheckInAt == nil || scan.At.Before(*r.CheckInAt) {
		return ErrInvalidRange
	}
	at, lat, lon, site := scan.At, scan.Latitude, scan.Longitude, scan.SiteId
	r.CheckOutAt = &at
	r.CheckOutLatitude = &lat
	r.CheckOutLongitude = &lon
	r.CheckOutDevice = scan.Device
	r.CheckOutSiteId = &site
	r.Recompute(policy, true)
	return nil
}

// Recompute derives total and overtime hours from the timestamps. With deriveStatus set,
// a worked day shorter than the half-day threshold becomes half_day.
func (r *AttendanceRecord) Recompute(policy config.HRPolicy, deriveStatus bool) {
	if r.CheckInAt == nil || r.CheckOutAt == nil {
		r.TotalHours = decimal.Zero
		r.OvertimeHours = decimal.Zero
		return
	}
	r.TotalHours, r.OvertimeHours = ComputeWorkedHours(*r.CheckInAt, *r.CheckOutAt, policy.StandardDayHours)
	if !deriveStatus {
		return
	}
	if r.Status != AttendanceStatusPresent && r.Status != AttendanceStatusHalfDay {
		return
	}
	if policy.HalfDayHours.IsPositive() && r.TotalHours.LessThan(policy.HalfDayHours) {
		r.Status = AttendanceStatusHalfDay
	} else {
		r.Status = AttendanceStatusPresent
	}
}

// ComputeWorkedHours returns fractional hours (2dp) and the excess over the standard day.
func ComputeWorkedHours(checkIn, checkOut time.Time, standardDay decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if checkOut.Before(checkIn) {
		return decimal.Zero, decimal.Zero
	}
	seconds := decimal.NewFromInt(int64(checkOut.Sub(checkIn) / time.Second))
	total := seconds.Div(decimal.NewFromInt(3600)).Round(2)
	overtime := total.Sub(standardDay)
	if overtime.IsNegative() {
		overtime = decimal.Zero
	}
	return total, overtime.Round(2)
}

// AttendanceCorrection lists the fields an administrator may overwrite; nil means unchanged.
type AttendanceCorrection struct {
	CheckInAt         *time.Time        `json:"check_in_at"`
	CheckOutAt        *time.Time        `json:"check_out_at"`
	CheckInLatitude   *float64          `json:"check_in_latitude"`
	CheckInLongitude  *float64          `json:"check_in_longitude"`
	CheckOutLatitude  *float64          `json:"check_out_latitude"`
	CheckOutLongitude *float64          `json:"check_out_longitude"`
	CheckInDevice     *string           `json:"check_in_device"`
	CheckOutDevice    *string           `json:"check_out_device"`
	CheckInSiteId     *int              `json:"check_in_site_id"`
	CheckOutSiteId    *int              `json:"check_out_site_id"`
	Status            *AttendanceStatus `json:"status"`
	ClearCheckOut     bool              `json:"clear_check_out"`
}

func (c *AttendanceCorrection) Apply(r *AttendanceRecord, policy config.HRPolicy) error {
	if c.Status != nil && !c.Status.IsValid() {
		return NewValidationError("status", errors.New("unknown attendance status"))
	}
	if c.CheckInAt != nil {
		at := *c.CheckInAt
		r.CheckInAt = &at
	}
	if c.ClearCheckOut {
		r.CheckOutAt = nil
		r.CheckOutLatitude = nil
		r.CheckOutLongitude = nil
		r.CheckOutDevice = ""
		r.CheckOutSiteId = nil
	} else if c.CheckOutAt != nil {
		at := *c.CheckOutAt
		r.CheckOutAt = &at
	}
	if c.CheckInLatitude != nil {
		r.CheckInLatitude = c.CheckInLatitude
	}
	if c.CheckInLongitude != nil {
		r.CheckInLongitude = c.CheckInLongitude
	}
	if c.CheckOutLatitude != nil {
		r.CheckOutLatitude = c.CheckOutLatitude
	}
	if c.CheckOutLongitude != nil {
		r.CheckOutLongitude = c.CheckOutLongitude
	}
	if c.CheckInDevice != nil {
		r.CheckInDevice = *c.CheckInDevice
	}
	if c.CheckOutDevice != nil {
		r.CheckOutDevice = *c.CheckOutDevice
	}
	if c.CheckInSiteId != nil {
		site := *c.CheckInSiteId
		r.CheckInSiteId = &site
	}
	if c.CheckOutSiteId != nil {
		site := *c.CheckOutSiteId
		r.CheckOutSiteId = &site
	}
	if r.CheckOutAt != nil && r.CheckInAt == nil {
		return NewValidationError("check_in_at", errors.New("check-out requires a check-in"))
	}
	if r.CheckInAt != nil && r.CheckOutAt != nil && r.CheckOutAt.Before(*r.CheckInAt) {
		return ErrInvalidRange
	}
	if c.Status != nil {
		r.Status = *c.Status
	} else if r.Status == "" {
		r.Status = AttendanceStatusPresent
	}
	r.Recompute(policy, c.Status == nil)
	return nil
}

// MarkCorrected stamps a manual change.
func (r *AttendanceRecord) MarkCorrected(by int, at time.Time) {
	r.IsManuallyCorrected = true
	r.CorrectedBy = &by
	r.CorrectedAt = &at
}
