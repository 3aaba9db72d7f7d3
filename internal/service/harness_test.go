package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/cache"
	"daily-driver/internal/events"
	"daily-driver/internal/model"
	"daily-driver/internal/repository"
	"daily-driver/internal/session"
)

// flakyStore wraps a real store and can fail or hold individual calls.
type flakyStore struct {
	repository.DocumentStore

	mu        sync.Mutex
	getErr    error
	updateErr error
	appendErr error
	hold      chan struct{} // UpdateFields waits on it when set
	entered   chan struct{} // UpdateFields reports entry when set
	updates   int
	appends   int
}

func (s *flakyStore) Get(ctx context.Context, userID string) (model.RawDocument, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.DocumentStore.Get(ctx, userID)
}

func (s *flakyStore) UpdateFields(ctx context.Context, userID string, fields repository.Fields) error {
	s.mu.Lock()
	err, hold, entered := s.updateErr, s.hold, s.entered
	s.updates++
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if hold != nil {
		<-hold
	}
	if err != nil {
		return err
	}
	return s.DocumentStore.UpdateFields(ctx, userID, fields)
}

func (s *flakyStore) AppendUnique(ctx context.Context, userID, field string, value any) error {
	s.mu.Lock()
	err := s.appendErr
	s.appends++
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.DocumentStore.AppendUnique(ctx, userID, field, value)
}

func (s *flakyStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates + s.appends
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	store     *flakyStore
	cache     *cache.UserData
	sessions  *session.Manager
	profiles  *ProfileService
	mutator   *Mutator
	recent    *RecentTasks
	published *recordingPublisher
}

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := repository.NewRedisClient(srv.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		store:     &flakyStore{DocumentStore: repository.NewRedisDocumentStore(rdb)},
		cache:     cache.New(),
		sessions:  session.NewManager(),
		published: &recordingPublisher{},
	}
	env.profiles = NewProfileService(env.store, env.cache, env.sessions, log)
	env.mutator = NewMutator(env.store, env.cache, env.sessions, env.published, log)
	env.recent = NewRecentTasks(env.cache, DefaultRecentLimit)

	var ids, ticks atomic.Int64
	env.mutator.newID = func() string { return fmt.Sprintf("id-%d", ids.Add(1)) }
	env.mutator.color = func() string { return model.Palette[0] }
	clock := func() time.Time { return testEpoch.Add(time.Duration(ticks.Add(1)) * time.Second) }
	env.mutator.now = clock
	env.profiles.now = clock
	return env
}

// signIn creates a profile for userID, binds the cache to the session and signs in.
func (e *testEnv) signIn(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	if err := e.profiles.CreateProfile(ctx, userID, NewProfile{Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	t.Cleanup(e.profiles.Bind(ctx, e.sessions))
	e.sessions.SignIn(userID)
	if snap := e.cache.Read(); snap == nil || snap.ID != userID {
		t.Fatalf("Expected cache loaded for %s after sign-in, got %+v", userID, snap)
	}
}

func (e *testEnv) addCategory(t *testing.T, name string) *model.Category {
	t.Helper()
	c, err := e.mutator.AddCategory(context.Background(), name, "")
	if err != nil {
		t.Fatalf("AddCategory(%q) failed: %v", name, err)
	}
	return c
}

func (e *testEnv) addTask(t *testing.T, categoryID, text string) *model.Task {
	t.Helper()
	task, err := e.mutator.AddTaskToCategory(context.Background(), categoryID, text)
	if err != nil {
		t.Fatalf("AddTaskToCategory(%q) failed: %v", text, err)
	}
	return task
}

func cachedCategory(t *testing.T, c *cache.UserData, id string) model.Category {
	t.Helper()
	snap := c.Read()
	if snap == nil {
		t.Fatal("cache is empty")
	}
	idx := model.FindCategory(snap.Categories, id)
	if idx < 0 {
		t.Fatalf("category %s not in cache", id)
	}
	return snap.Categories[idx]
}
