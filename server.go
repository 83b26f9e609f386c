package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/handlers"
	"github.com/mmdatafocus/hr_backend/middlewares"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/mmdatafocus/hr_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen first; app routes return 503 until DB and Redis are ready.
	h := handlers.NewHandler(logger)
	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.Use(h.ReadinessGate())

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// The redis client is looked up per request since it connects after listen.
	limiter := func(limit int64, prefix string) gin.HandlerFunc {
		return func(c *gin.Context) {
			middlewares.NewRateLimiter(config.GetRedisDB(), limit, config.RateLimitWindow(), prefix).RateLimitMiddleware(c)
		}
	}
	if config.RateLimitEnabled() {
		r.Use(limiter(config.RateLimitMaxRequests(), "global"))
	}

	r.Use(middlewares.SessionMiddleware(middlewares.RedisSessionLookup))
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())
	h.RegisterRoutes(r, limiter(config.OTPRateLimitMaxRequests(), "otp"))
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.MigrationsDisabled() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	store, err := utils.NewArtifactStore()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"field":    "storage",
			"provider": utils.GetStorageProvider(),
		}).Fatal("artifact store unavailable: " + err.Error())
	}

	repo := models.NewGormRepository(db)
	services := workflow.NewServices(workflow.Deps{
		Repo:   repo,
		Locker: workflow.NewKeyLocker(config.GetRedisLock(), logger),
		Store:  store,
		Policy: config.LoadHRPolicy(),
		Logger: logger,
	})
	h.SetServices(services)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if config.OTPDeliveryDispatchEnabled() {
		if err := config.EnsureOTPDeliveryTopic(workerCtx); err != nil {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("otp delivery topic check failed: " + err.Error())
		}
		go workflow.NewOTPDeliveryDispatcher(repo, logger).Run(workerCtx)
	}
	var sweeper *workflow.OTPSweeper
	if config.OTPSweepEnabled() {
		sweeper = workflow.NewOTPSweeper(services.OTP, logger, config.OTPSweepSchedule())
		if err := sweeper.Start(); err != nil {
			logger.WithFields(logrus.Fields{"field": "otp_sweep"}).Error("could not schedule otp sweep: " + err.Error())
			sweeper = nil
		}
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("hr api listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining requests.
	cancelWorkers()
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
