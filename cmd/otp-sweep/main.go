// otp-sweep expires every valid OTP challenge past its window plus clock skew, once.
// Use it from a scheduler when OTP_SWEEP_ENABLED=false on the API.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/otp-sweep
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/workflow"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	logger := config.GetLogger()
	services := workflow.NewServices(workflow.Deps{
		Repo:   models.NewGormRepository(db),
		Policy: config.LoadHRPolicy(),
		Logger: logger,
	})
	sweeper := workflow.NewOTPSweeper(services.OTP, logger, "")

	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otp sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("expired %d otp challenge(s)\n", n)
}
