package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/config"
	"daily-driver/internal/model"
	"daily-driver/internal/repository"
)

func TestRunReleasesResourcesOnStartupError(t *testing.T) {
	srv := miniredis.RunT(t)

	rdb := repository.NewRedisClient(srv.Addr(), "", 0)
	store := repository.NewRedisDocumentStore(rdb)
	err := store.SetMerge(context.Background(), "ann", repository.Fields{
		model.FieldName:  "Ann",
		model.FieldEmail: "ann@example.com",
	})
	if err != nil {
		t.Fatalf("SetMerge failed: %v", err)
	}
	_ = rdb.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.Config{
		StoreDriver:      config.DriverRedis,
		RedisAddr:        srv.Addr(),
		SessionSecret:    "secret",
		SessionTTL:       time.Hour,
		SessionUserID:    "ann",
		RecentTasksLimit: 5,
		OperationTimeout: time.Second,
	}

	// No TELEGRAM_TOKEN: the bot cannot start after the core has loaded ann's data.
	err = run(cfg, logger)
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_TOKEN") {
		t.Fatalf("Expected a missing token error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.CurrentConnectionCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected redis connections to be closed, %d still open", srv.CurrentConnectionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
