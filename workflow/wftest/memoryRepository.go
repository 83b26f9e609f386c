// Package wftest provides a DB-free models.Repository for service tests.
package wftest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmdatafocus/hr_backend/models"
)

// MemoryRepository keeps every table in maps. Transactions run one at a time and are rolled back
// from a snapshot when fn fails, which matches the all-or-nothing behaviour of the gorm repository.
type MemoryRepository struct {
	state *memState
	inTx  bool
}

type memState struct {
	mu sync.Mutex

	nextId int

	sites      map[int]models.Site
	employees  map[int]models.Employee
	challenges map[int]models.OTPChallenge
	deliveries map[int]models.OTPDelivery
	attendance map[int]models.AttendanceRecord
	leaves     map[int]models.LeaveRecord
	payroll    map[int]models.PayrollRecord

	forgotten []SiteEviction
}

// SiteEviction records a ForgetSite call and whether a transaction was still open.
type SiteEviction struct {
	SiteId int
	InTx   bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: &memState{
		sites:      map[int]models.Site{},
		employees:  map[int]models.Employee{},
		challenges: map[int]models.OTPChallenge{},
		deliveries: map[int]models.OTPDelivery{},
		attendance: map[int]models.AttendanceRecord{},
		leaves:     map[int]models.LeaveRecord{},
		payroll:    map[int]models.PayrollRecord{},
	}}
}

var _ models.Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.state.mu.Lock()
	return r.state.mu.Unlock
}

func (s *memState) id() int {
	s.nextId++
	return s.nextId
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) snapshot() *memState {
	return &memState{
		nextId:     s.nextId,
		sites:      copyMap(s.sites),
		employees:  copyMap(s.employees),
		challenges: copyMap(s.challenges),
		deliveries: copyMap(s.deliveries),
		attendance: copyMap(s.attendance),
		leaves:     copyMap(s.leaves),
		payroll:    copyMap(s.payroll),
	}
}

func (s *memState) restore(snap *memState) {
	s.nextId = snap.nextId
	s.sites = snap.sites
	s.employees = snap.employees
	s.challenges = snap.challenges
	s.deliveries = snap.deliveries
	s.attendance = snap.attendance
	s.leaves = snap.leaves
	s.payroll = snap.payroll
}

func (r *MemoryRepository) Transaction(ctx context.Context, fn func(tx models.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := r.state.snapshot()
	if err := fn(&MemoryRepository{state: r.state, inTx: true}); err != nil {
		r.state.restore(snap)
		return err
	}
	return nil
}

func duplicate(what string) error {
	return fmt.Errorf("%w: %s", models.ErrDuplicate, what)
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func sameDate(a, b time.Time) bool {
	return models.TruncateDate(a).Equal(models.TruncateDate(b))
}

/* sites */

func (r *MemoryRepository) CreateSite(ctx context.Context, site *models.Site) error {
	defer r.lock()()
	for _, s := range r.state.sites {
		if s.Name == site.Name {
			return duplicate("site name")
		}
	}
	site.ID = r.state.id()
	stamp(&site.CreatedAt, &site.UpdatedAt)
	r.state.sites[site.ID] = *site
	return nil
}

func (r *MemoryRepository) UpdateSite(ctx context.Context, site *models.Site) error {
	defer r.lock()()
	if _, ok := r.state.sites[site.ID]; !ok {
		return models.ErrRecordNotFound
	}
	for id, s := range r.state.sites {
		if id != site.ID && s.Name == site.Name {
			return duplicate("site name")
		}
	}
	stamp(&site.CreatedAt, &site.UpdatedAt)
	r.state.sites[site.ID] = *site
	return nil
}

func (r *MemoryRepository) GetSite(ctx context.Context, id int) (*models.Site, error) {
	defer r.lock()()
	s, ok := r.state.sites[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListSites(ctx context.Context) ([]*models.Site, error) {
	defer r.lock()()
	out := make([]*models.Site, 0, len(r.state.sites))
	for _, s := range r.state.sites {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

/* employees */

func (r *MemoryRepository) CreateEmployee(ctx context.Context, emp *models.Employee) error {
	defer r.lock()()
	for _, e := range r.state.employees {
		if e.EmployeeCode == emp.EmployeeCode {
			return duplicate("employee code")
		}
	}
	emp.ID = r.state.id()
	stamp(&emp.CreatedAt, &emp.UpdatedAt)
	r.state.employees[emp.ID] = *emp
	return nil
}

func (r *MemoryRepository) UpdateEmployee(ctx context.Context, emp *models.Employee) error {
	defer r.lock()()
	if _, ok := r.state.employees[emp.ID]; !ok {
		return models.ErrRecordNotFound
	}
	for id, e := range r.state.employees {
		if id != emp.ID && e.EmployeeCode == emp.EmployeeCode {
			return duplicate("employee code")
		}
	}
	stamp(&emp.CreatedAt, &emp.UpdatedAt)
	r.state.employees[emp.ID] = *emp
	return nil
}

func (r *MemoryRepository) GetEmployee(ctx context.Context, id int) (*models.Employee, error) {
	defer r.lock()()
	e, ok := r.state.employees[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &e, nil
}

func (r *MemoryRepository) GetEmployeesByIds(ctx context.Context, ids []int) ([]*models.Employee, error) {
	defer r.lock()()
	var out []*models.Employee
	for _, id := range ids {
		if e, ok := r.state.employees[id]; ok {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListActiveEmployees(ctx context.Context) ([]*models.Employee, error) {
	defer r.lock()()
	var out []*models.Employee
	for _, e := range r.state.employees {
		if e.IsActive {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

/* otp challenges */

func (r *MemoryRepository) FindValidChallenge(ctx context.Context, employeeId int) (*models.OTPChallenge, error) {
	defer r.lock()()
	var found *models.OTPChallenge
	for _, c := range r.state.challenges {
		if c.EmployeeId == employeeId && c.Status == models.OTPStatusValid {
			if found == nil || c.ID > found.ID {
				c := c
				found = &c
			}
		}
	}
	if found == nil {
		return nil, models.ErrRecordNotFound
	}
	return found, nil
}

func (r *MemoryRepository) FindActiveLockout(ctx context.Context, employeeId int, now time.Time) (*models.OTPChallenge, error) {
	defer r.lock()()
	var found *models.OTPChallenge
	for _, c := range r.state.challenges {
		if c.EmployeeId != employeeId || c.LockoutUntil == nil || !c.LockoutUntil.After(now) {
			continue
		}
		if found == nil || c.LockoutUntil.After(*found.LockoutUntil) {
			c := c
			found = &c
		}
	}
	return found, nil
}

func (r *MemoryRepository) GetChallenge(ctx context.Context, id int) (*models.OTPChallenge, error) {
	defer r.lock()()
	c, ok := r.state.challenges[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) checkValidSlot(c *models.OTPChallenge) error {
	if c.ValidSlot == nil {
		return nil
	}
	for id, other := range r.state.challenges {
		if id != c.ID && other.ValidSlot != nil && *other.ValidSlot == *c.ValidSlot {
			return duplicate("valid challenge")
		}
	}
	return nil
}

func (r *MemoryRepository) CreateChallenge(ctx context.Context, c *models.OTPChallenge) error {
	defer r.lock()()
	if err := r.checkValidSlot(c); err != nil {
		return err
	}
	c.ID = r.state.id()
	stamp(&c.CreatedAt, &c.UpdatedAt)
	r.state.challenges[c.ID] = *c
	return nil
}

func (r *MemoryRepository) UpdateChallenge(ctx context.Context, c *models.OTPChallenge) error {
	defer r.lock()()
	if _, ok := r.state.challenges[c.ID]; !ok {
		return models.ErrRecordNotFound
	}
	if err := r.checkValidSlot(c); err != nil {
		return err
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	r.state.challenges[c.ID] = *c
	return nil
}

func (r *MemoryRepository) ExpireValidChallenges(ctx context.Context, employeeId int) error {
	defer r.lock()()
	for id, c := range r.state.challenges {
		if c.EmployeeId == employeeId && c.Status == models.OTPStatusValid {
			c.Expire()
			r.state.challenges[id] = c
		}
	}
	return nil
}

func (r *MemoryRepository) ExpireStaleChallenges(ctx context.Context, cutoff time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for id, c := range r.state.challenges {
		if c.Status == models.OTPStatusValid && c.ExpiresAt.Before(cutoff) {
			c.Expire()
			r.state.challenges[id] = c
			n++
		}
	}
	return n, nil
}

// Challenges returns every challenge of the employee, oldest first.
func (r *MemoryRepository) Challenges(employeeId int) []models.OTPChallenge {
	defer r.lock()()
	var out []models.OTPChallenge
	for _, c := range r.state.challenges {
		if c.EmployeeId == employeeId {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryRepository) ForgetSite(ctx context.Context, id int) {
	defer r.lock()()
	r.state.forgotten = append(r.state.forgotten, SiteEviction{SiteId: id, InTx: r.inTx})
}

// SiteEvictions returns every ForgetSite call in order.
func (r *MemoryRepository) SiteEvictions() []SiteEviction {
	defer r.lock()()
	return append([]SiteEviction(nil), r.state.forgotten...)
}

/* otp deliveries */

func (r *MemoryRepository) CreateDelivery(ctx context.Context, d *models.OTPDelivery) error {
	defer r.lock()()
	d.ID = r.state.id()
	if d.Status == "" {
		d.Status = models.DeliveryStatusPending
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	r.state.deliveries[d.ID] = *d
	return nil
}

func (r *MemoryRepository) UpdateDelivery(ctx context.Context, d *models.OTPDelivery) error {
	defer r.lock()()
	if _, ok := r.state.deliveries[d.ID]; !ok {
		return models.ErrRecordNotFound
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	r.state.deliveries[d.ID] = *d
	return nil
}

func (r *MemoryRepository) ClaimDeliveries(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, dispatcherId string) ([]*models.OTPDelivery, error) {
	defer r.lock()()
	ids := make([]int, 0, len(r.state.deliveries))
	for id := range r.state.deliveries {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var claimed []*models.OTPDelivery
	for _, id := range ids {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		d := r.state.deliveries[id]
		ready := (d.Status == models.DeliveryStatusPending || d.Status == models.DeliveryStatusFailed) &&
			(d.NextAttemptAt == nil || !d.NextAttemptAt.After(now))
		stale := d.Status == models.DeliveryStatusProcessing && d.LockedAt != nil && !d.LockedAt.After(staleBefore)
		if !ready && !stale {
			continue
		}
		if maxAttempts > 0 && d.Attempts >= maxAttempts {
			msg := "max delivery attempts exceeded"
			d.Status = models.DeliveryStatusDead
			d.LastError = &msg
			d.NextAttemptAt, d.LockedAt, d.LockedBy = nil, nil, nil
			r.state.deliveries[id] = d
			continue
		}
		lockedAt, lockedBy := now, dispatcherId
		d.Status = models.DeliveryStatusProcessing
		d.LockedAt = &lockedAt
		d.LockedBy = &lockedBy
		d.Attempts++
		d.NextAttemptAt = nil
		r.state.deliveries[id] = d
		c := d
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

// Deliveries returns every outbox row, oldest first.
func (r *MemoryRepository) Deliveries() []models.OTPDelivery {
	defer r.lock()()
	out := make([]models.OTPDelivery, 0, len(r.state.deliveries))
	for _, d := range r.state.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

/* attendance */

func (r *MemoryRepository) FindAttendance(ctx context.Context, employeeId int, date time.Time) (*models.AttendanceRecord, error) {
	defer r.lock()()
	for _, a := range r.state.attendance {
		if a.EmployeeId == employeeId && sameDate(a.Date(), date) {
			return &a, nil
		}
	}
	return nil, models.ErrRecordNotFound
}

func (r *MemoryRepository) GetAttendance(ctx context.Context, id int) (*models.AttendanceRecord, error) {
	defer r.lock()()
	a, ok := r.state.attendance[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) CreateAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	defer r.lock()()
	for _, a := range r.state.attendance {
		if a.EmployeeId == rec.EmployeeId && sameDate(a.Date(), rec.Date()) {
			return duplicate("attendance day")
		}
	}
	rec.ID = r.state.id()
	stamp(&rec.CreatedAt, &rec.UpdatedAt)
	r.state.attendance[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) UpdateAttendance(ctx context.Context, rec *models.AttendanceRecord) error {
	defer r.lock()()
	if _, ok := r.state.attendance[rec.ID]; !ok {
		return models.ErrRecordNotFound
	}
	stamp(&rec.CreatedAt, &rec.UpdatedAt)
	r.state.attendance[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) ListAttendance(ctx context.Context, employeeId int, from, to time.Time) ([]*models.AttendanceRecord, error) {
	defer r.lock()()
	from, to = models.TruncateDate(from), models.TruncateDate(to)
	var out []*models.AttendanceRecord
	for _, a := range r.state.attendance {
		d := a.Date()
		if a.EmployeeId == employeeId && !d.Before(from) && !d.After(to) {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out, nil
}

// AttendanceCount is the number of stored attendance records.
func (r *MemoryRepository) AttendanceCount() int {
	defer r.lock()()
	return len(r.state.attendance)
}

/* leave */

func (r *MemoryRepository) CreateLeave(ctx context.Context, l *models.LeaveRecord) error {
	defer r.lock()()
	l.ID = r.state.id()
	stamp(&l.CreatedAt, &l.UpdatedAt)
	r.state.leaves[l.ID] = *l
	return nil
}

func (r *MemoryRepository) UpdateLeave(ctx context.Context, l *models.LeaveRecord) error {
	defer r.lock()()
	if _, ok := r.state.leaves[l.ID]; !ok {
		return models.ErrRecordNotFound
	}
	stamp(&l.CreatedAt, &l.UpdatedAt)
	r.state.leaves[l.ID] = *l
	return nil
}

func (r *MemoryRepository) GetLeave(ctx context.Context, id int) (*models.LeaveRecord, error) {
	defer r.lock()()
	l, ok := r.state.leaves[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &l, nil
}

func (r *MemoryRepository) ListLeaves(ctx context.Context, filter models.LeaveFilter) ([]*models.LeaveRecord, error) {
	defer r.lock()()
	var out []*models.LeaveRecord
	for _, l := range r.state.leaves {
		if filter.EmployeeId > 0 && l.EmployeeId != filter.EmployeeId {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		l := l
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start().Equal(out[j].Start()) {
			return out[i].Start().After(out[j].Start())
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) FindOverlappingLeaves(ctx context.Context, employeeId int, start, end time.Time) ([]*models.LeaveRecord, error) {
	defer r.lock()()
	var out []*models.LeaveRecord
	for _, l := range r.state.leaves {
		if l.EmployeeId == employeeId && l.IsBlocking() && l.Overlaps(models.TruncateDate(start), models.TruncateDate(end)) {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListApprovedLeaves(ctx context.Context, employeeId int, from, to time.Time) ([]*models.LeaveRecord, error) {
	defer r.lock()()
	var out []*models.LeaveRecord
	for _, l := range r.state.leaves {
		if l.EmployeeId == employeeId && l.Status == models.LeaveStatusApproved && l.Overlaps(models.TruncateDate(from), models.TruncateDate(to)) {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start().Before(out[j].Start()) })
	return out, nil
}

/* payroll */

func (r *MemoryRepository) FindPayroll(ctx context.Context, employeeId, year, month int) (*models.PayrollRecord, error) {
	defer r.lock()()
	for _, p := range r.state.payroll {
		if p.EmployeeId == employeeId && p.Year == year && p.Month == month {
			return &p, nil
		}
	}
	return nil, models.ErrRecordNotFound
}

func (r *MemoryRepository) GetPayroll(ctx context.Context, id int) (*models.PayrollRecord, error) {
	defer r.lock()()
	p, ok := r.state.payroll[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) CreatePayroll(ctx context.Context, p *models.PayrollRecord) error {
	defer r.lock()()
	for _, other := range r.state.payroll {
		if other.EmployeeId == p.EmployeeId && other.Year == p.Year && other.Month == p.Month {
			return duplicate("payroll period")
		}
	}
	p.ID = r.state.id()
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.state.payroll[p.ID] = *p
	return nil
}

// UpdatePayroll refuses to touch a stored locked row, like the lock guard plugin.
func (r *MemoryRepository) UpdatePayroll(ctx context.Context, p *models.PayrollRecord) error {
	defer r.lock()()
	stored, ok := r.state.payroll[p.ID]
	if !ok {
		return models.ErrRecordNotFound
	}
	if stored.Status == models.PayrollStatusLocked {
		return models.ErrLocked
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.state.payroll[p.ID] = *p
	return nil
}

func (r *MemoryRepository) ListPayroll(ctx context.Context, year, month int) ([]*models.PayrollRecord, error) {
	defer r.lock()()
	var out []*models.PayrollRecord
	for _, p := range r.state.payroll {
		if p.Year == year && p.Month == month {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeId < out[j].EmployeeId })
	return out, nil
}
