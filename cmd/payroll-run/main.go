// payroll-run calculates (or recalculates) one month's payroll for every active employee.
// Processed and locked records are skipped.
//
// Usage (from backend directory):
//   go run ./cmd/payroll-run -year 2024 -month 6
//   go run ./cmd/payroll-run -year 2024 -month 6 -export payroll-2024-06.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/workflow"
)

func main() {
	now := time.Now()
	year := flag.Int("year", now.Year(), "Payroll year")
	month := flag.Int("month", int(now.Month()), "Payroll month (1-12)")
	export := flag.String("export", "", "Optional: write the payroll register workbook to this path")
	flag.Parse()

	if err := models.ValidatePeriod(*year, time.Month(*month)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid period: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	// Serialize with running API instances when redis is reachable.
	config.ConnectRedisOptional()

	logger := config.GetLogger()
	services := workflow.NewServices(workflow.Deps{
		Repo:   models.NewGormRepository(db),
		Locker: workflow.NewKeyLocker(config.GetRedisLock(), logger),
		Policy: config.LoadHRPolicy(),
		Logger: logger,
	})

	fmt.Printf("Calculating payroll %04d-%02d\n", *year, *month)
	summary, err := services.Payroll.CalculateAll(ctx, *year, time.Month(*month))
	if err != nil {
		fmt.Fprintf(os.Stderr, "payroll run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("calculated=%d skipped=%d failed=%d\n", summary.Calculated, summary.Skipped, len(summary.Failed))

	failedIds := make([]int, 0, len(summary.Failed))
	for id := range summary.Failed {
		failedIds = append(failedIds, id)
	}
	sort.Ints(failedIds)
	for _, id := range failedIds {
		fmt.Fprintf(os.Stderr, "  employee %d: %s\n", id, summary.Failed[id])
	}

	if *export != "" {
		data, err := services.Payroll.Export(ctx, *year, time.Month(*month))
		if err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*export, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *export, err)
			os.Exit(1)
		}
		fmt.Printf("register written to %s\n", *export)
	}
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}
