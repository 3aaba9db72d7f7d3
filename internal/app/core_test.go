package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/config"
	"daily-driver/internal/service"
)

func TestOpenWithRedisStore(t *testing.T) {
	srv := miniredis.RunT(t)
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Config{
		StoreDriver:      config.DriverRedis,
		RedisAddr:        srv.Addr(),
		RecentTasksLimit: 3,
		SessionSecret:    "secret",
		SessionTTL:       time.Hour,
	}
	core, err := Open(cfg, log)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer core.Close()

	ctx := context.Background()
	if err := core.Profiles.CreateProfile(ctx, "ann", service.NewProfile{Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	defer core.Profiles.Bind(ctx, core.Sessions)()

	token, _, err := core.Tokens.Issue("ann")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	userID, err := core.Tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	core.Sessions.SignIn(userID)

	c, err := core.Mutator.AddCategory(ctx, "Work", "")
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	for _, text := range []string{"a", "b", "c", "d"} {
		if _, err := core.Mutator.AddTaskToCategory(ctx, c.ID, text); err != nil {
			t.Fatalf("AddTaskToCategory failed: %v", err)
		}
	}
	if got := core.Recent.Project(); len(got) != 3 || got[0].Task != "d" {
		t.Errorf("Expected 3 recent tasks starting with d, got %+v", got)
	}
	if !srv.Exists("doc:ann") {
		t.Error("Expected the document in redis")
	}
}
