package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	batch := flag.Int("batch", 50, "Events claimed per poll")
	poll := flag.Duration("poll", 500*time.Millisecond, "Idle poll interval")
	maxAttempts := flag.Int("max-attempts", 20, "Publish attempts before an event is marked DEAD")
	flag.Parse()

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcher := workflow.NewOutboxDispatcher(db, logger)
	dispatcher.BatchSize = *batch
	dispatcher.PollInterval = *poll
	dispatcher.MaxAttempts = *maxAttempts

	fields := logrus.Fields{"field": "OutboxDispatcher", "dispatcher_id": dispatcher.DispatcherID}
	logger.WithFields(fields).Info("outbox dispatcher started")
	dispatcher.Run(sigCtx)
	logger.WithFields(fields).Info("outbox dispatcher stopped")
}
