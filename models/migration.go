package models

import (
	"log"

	"github.com/mmdatafocus/hr_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Site{}, &Employee{},
		&OTPChallenge{}, &OTPDelivery{},
		&AttendanceRecord{}, &LeaveRecord{},
		&PayrollRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
