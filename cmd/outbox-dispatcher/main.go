package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/workflow"
)

func main() {
	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if topic := os.Getenv("PUBSUB_ROSTER_TOPIC"); topic != "" {
		if client, err := config.GetClient(ctx); err != nil {
			logger.WithField("topic", topic).Warn("pubsub client unavailable at startup: " + err.Error())
		} else if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			logger.WithField("topic", topic).Warn("ensuring pubsub topic: " + err.Error())
		}
	}

	dispatcher := workflow.NewOutboxDispatcher(db, logger)
	logger.WithField("dispatcher_id", dispatcher.DispatcherID).Info("outbox dispatcher started")
	dispatcher.Run(ctx)
	logger.Info("outbox dispatcher stopped")
}
