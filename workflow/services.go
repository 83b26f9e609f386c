package workflow

import (
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/mmdatafocus/hr_backend/workflow")

// Deps are the collaborators shared by every HR service.
type Deps struct {
	Repo         models.Repository
	Locker       *KeyLocker
	Store        utils.ArtifactStore
	Policy       config.HRPolicy
	Logger       *logrus.Logger
	Now          func() time.Time
	GenerateCode CodeGenerator
}

type Services struct {
	Sites      *SiteRegistry
	Employees  *EmployeeDirectory
	OTP        *OTPAuthority
	Attendance *AttendanceLedger
	Leaves     *LeaveLedger
	Payroll    *PayrollEngine
}

func NewServices(d Deps) *Services {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Logger == nil {
		d.Logger = config.GetLogger()
	}
	if d.Locker == nil {
		d.Locker = NewKeyLocker(nil, d.Logger)
	}
	if d.GenerateCode == nil {
		d.GenerateCode = GenerateOTPCode
	}
	if d.Policy.Location == nil {
		d.Policy.Location = time.UTC
	}

	attendance := &AttendanceLedger{
		Repo:   d.Repo,
		Locker: d.Locker,
		Policy: d.Policy,
		Logger: d.Logger,
		Now:    d.Now,
	}
	return &Services{
		Sites: &SiteRegistry{
			Repo:   d.Repo,
			Locker: d.Locker,
			Store:  d.Store,
			Logger: d.Logger,
			Now:    d.Now,
		},
		Employees: &EmployeeDirectory{
			Repo:   d.Repo,
			Policy: d.Policy,
			Logger: d.Logger,
		},
		OTP: &OTPAuthority{
			Repo:         d.Repo,
			Locker:       d.Locker,
			Policy:       d.Policy,
			Logger:       d.Logger,
			Now:          d.Now,
			GenerateCode: d.GenerateCode,
			Attendance:   attendance,
		},
		Attendance: attendance,
		Leaves: &LeaveLedger{
			Repo:   d.Repo,
			Locker: d.Locker,
			Logger: d.Logger,
			Now:    d.Now,
		},
		Payroll: &PayrollEngine{
			Repo:   d.Repo,
			Locker: d.Locker,
			Store:  d.Store,
			Policy: d.Policy,
			Logger: d.Logger,
			Now:    d.Now,
		},
	}
}
