package workflow

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/workflow/wftest"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	testCode  = "123456"
	testPhone = "+1 650 253 0000"

	siteLat = 16.8409
	siteLon = 96.1735
)

// metersNorth converts a northward offset to degrees of latitude on the haversine sphere.
func metersNorth(m float64) float64 {
	return m / 111194.92664455873
}

type harness struct {
	repo   *wftest.MemoryRepository
	clock  *wftest.Clock
	store  *wftest.MemoryStore
	policy config.HRPolicy
	svc    *Services
	logger *logrus.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	policy := config.DefaultHRPolicy()
	policy.PhoneRegion = "US"

	h := &harness{
		repo:   wftest.NewMemoryRepository(),
		clock:  wftest.NewClock(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)),
		store:  wftest.NewMemoryStore(),
		policy: policy,
		logger: logger,
	}
	h.svc = NewServices(Deps{
		Repo:         h.repo,
		Store:        h.store,
		Policy:       policy,
		Logger:       logger,
		Now:          h.clock.Now,
		GenerateCode: wftest.FixedCode(testCode),
	})
	return h
}

func (h *harness) addSite(t *testing.T, name string, radius float64) *models.Site {
	t.Helper()
	site, err := h.svc.Sites.Register(context.Background(), models.NewSite{
		Name:         name,
		Latitude:     siteLat,
		Longitude:    siteLon,
		RadiusMeters: radius,
	})
	if err != nil {
		t.Fatalf("register site: %v", err)
	}
	return site
}

func (h *harness) addMonthlyEmployee(t *testing.T, code string, basic int64) *models.Employee {
	t.Helper()
	salary := decimal.NewFromInt(basic)
	emp, err := h.svc.Employees.Create(context.Background(), models.NewEmployee{
		EmployeeCode:     code,
		Name:             "Employee " + code,
		Phone:            testPhone,
		CompensationMode: models.CompensationModeMonthly,
		BasicSalary:      &salary,
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	return emp
}

func (h *harness) addHourlyEmployee(t *testing.T, code string, wage int64) *models.Employee {
	t.Helper()
	w := decimal.NewFromInt(wage)
	emp, err := h.svc.Employees.Create(context.Background(), models.NewEmployee{
		EmployeeCode:     code,
		Name:             "Employee " + code,
		Phone:            testPhone,
		CompensationMode: models.CompensationModeHourly,
		HourlyWage:       &w,
	})
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	return emp
}

func (h *harness) verifyAt(employeeId, siteId int, code string, metersAway float64) (*VerifyResult, error) {
	return h.svc.OTP.Verify(context.Background(), VerifyInput{
		EmployeeId: employeeId,
		Code:       code,
		Latitude:   siteLat + metersNorth(metersAway),
		Longitude:  siteLon,
		SiteId:     siteId,
		Device:     "test-device",
	})
}

// scan issues a fresh code and verifies it from inside the site.
func (h *harness) scan(t *testing.T, employeeId, siteId int) *VerifyResult {
	t.Helper()
	if _, err := h.svc.OTP.Issue(context.Background(), employeeId); err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, err := h.verifyAt(employeeId, siteId, testCode, 50)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res
}

func (h *harness) validChallenges(employeeId int) int {
	n := 0
	for _, c := range h.repo.Challenges(employeeId) {
		if c.Status == models.OTPStatusValid {
			n++
		}
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
