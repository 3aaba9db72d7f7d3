package service

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"daily-driver/internal/cache"
	"daily-driver/internal/model"
	"daily-driver/internal/repository"
	"daily-driver/internal/session"
)

func TestLoadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "ann")
	c := env.addCategory(t, "Home")
	env.addTask(t, c.ID, "dishes")
	ctx := context.Background()

	if err := env.profiles.Load(ctx, "ann"); err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	first := env.cache.Read()
	if err := env.profiles.Load(ctx, "ann"); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	second := env.cache.Read()

	if first == second {
		t.Error("Expected Load to store a new snapshot")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical snapshots\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if second.Name != "Ann" || second.Email != "ann@example.com" || second.CreatedAt.IsZero() {
		t.Errorf("Expected profile fields loaded, got %+v", second.Document)
	}
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed document", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.store.SetMerge(ctx, "ann", repository.Fields{
			model.FieldName:       "Ann",
			model.FieldCategories: "not a list",
		})
		if err != nil {
			t.Fatalf("SetMerge failed: %v", err)
		}
		env.sessions.SignIn("ann")

		err = env.profiles.Load(ctx, "ann")
		if !errors.Is(err, ErrMalformedDocument) || !errors.Is(err, model.ErrMalformed) {
			t.Fatalf("Expected ErrMalformedDocument, got %v", err)
		}
		if env.cache.Read() != nil {
			t.Error("Expected cache to stay empty")
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		env := newTestEnv(t)
		env.sessions.SignIn("ghost")
		if err := env.profiles.Load(ctx, "ghost"); !errors.Is(err, ErrProfileNotFound) {
			t.Fatalf("Expected ErrProfileNotFound, got %v", err)
		}
	})

	t.Run("read error keeps previous snapshot", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t, "ann")
		before := env.cache.Read()

		env.store.getErr = errors.New("timeout")
		if err := env.profiles.Refresh(ctx); !errors.Is(err, ErrRemoteRead) {
			t.Fatalf("Expected ErrRemoteRead, got %v", err)
		}
		if env.cache.Read() != before {
			t.Error("Expected cache snapshot to be unchanged")
		}
	})

	t.Run("other user", func(t *testing.T) {
		env := newTestEnv(t)
		env.signIn(t, "ann")
		if err := env.profiles.CreateProfile(ctx, "bob", NewProfile{Name: "Bob", Email: "bob@example.com"}); err != nil {
			t.Fatalf("CreateProfile failed: %v", err)
		}
		if err := env.profiles.Load(ctx, "bob"); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
		}
		if env.cache.Read().ID != "ann" {
			t.Error("Expected cache to keep ann's data")
		}
	})

	t.Run("signed out refresh", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.profiles.Refresh(ctx); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestCreateProfileValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		p      NewProfile
	}{
		{"no user", " ", NewProfile{Name: "Ann", Email: "ann@example.com"}},
		{"no name", "ann", NewProfile{Name: "  ", Email: "ann@example.com"}},
		{"bad email", "ann", NewProfile{Name: "Ann", Email: "ann"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := env.profiles.CreateProfile(ctx, tt.userID, tt.p); !errors.Is(err, ErrValidation) {
				t.Fatalf("Expected ErrValidation, got %v", err)
			}
		})
	}
	if _, err := env.store.Get(ctx, "ann"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected nothing stored, got %v", err)
	}
}

func TestBindFollowsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []string{"ann", "bob"} {
		if err := env.profiles.CreateProfile(ctx, id, NewProfile{Name: id, Email: id + "@example.com"}); err != nil {
			t.Fatalf("CreateProfile(%s) failed: %v", id, err)
		}
	}

	var seen []string
	unsubscribe := env.cache.Subscribe(func(d *model.UserData) {
		if d == nil {
			seen = append(seen, "")
			return
		}
		seen = append(seen, d.ID)
	})
	defer unsubscribe()

	stop := env.profiles.Bind(ctx, env.sessions)
	env.sessions.SignIn("ann")
	env.sessions.SignIn("bob")
	env.sessions.SignOut()
	stop()
	env.sessions.SignIn("ann")

	want := []string{"ann", "", "bob", ""}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("Expected cache transitions %v, got %v", want, seen)
	}
	if env.cache.Read() != nil {
		t.Error("Expected no load after unbinding")
	}
}

// signOutOnCheck reports userID as signed in, but signs out the way a bound
// session does (reset the cache) while answering.
type signOutOnCheck struct {
	session.Provider
	userID string
	cache  *cache.UserData
}

func (p *signOutOnCheck) CurrentUser() (string, bool) {
	p.cache.Reset()
	return p.userID, true
}

func TestLoadDiscardedWhenSignedOutDuringCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.profiles.CreateProfile(ctx, "ann", NewProfile{Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	sessions := &signOutOnCheck{Provider: session.NewManager(), userID: "ann", cache: env.cache}
	profiles := NewProfileService(env.store, env.cache, sessions, log)

	err := profiles.Load(ctx, "ann")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
	if snap := env.cache.Read(); snap != nil {
		t.Fatalf("Expected cache to stay empty after sign-out, got data for %q", snap.ID)
	}
}
