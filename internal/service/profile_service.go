package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"daily-driver/internal/cache"
	"daily-driver/internal/model"
	"daily-driver/internal/repository"
	"daily-driver/internal/session"
)

// NewProfile is the data written when a user signs up.
type NewProfile struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	PhotoURL  string `json:"photoURL"`
	AvatarSvg string `json:"avatarSvg"`
}

// ProfileService loads the signed-in user's document into the cache and creates
// profiles at sign-up.
type ProfileService struct {
	store    repository.DocumentStore
	cache    *cache.UserData
	sessions session.Provider
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewProfileService(store repository.DocumentStore, c *cache.UserData, sessions session.Provider, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{
		store:    store,
		cache:    c,
		sessions: sessions,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Load reads the user's document and replaces the cache with it. On any failure the
// cache keeps its previous value; views treat an empty cache as "no data yet".
func (s *ProfileService) Load(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	entry := s.log.WithField("user_id", userID)
	gen := s.cache.Generation()

	doc, err := fetchDocument(ctx, s.store, userID)
	if err != nil {
		entry.WithError(err).Warn("load user data")
		return fmt.Errorf("load profile: %w", err)
	}

	// The session may have moved on while we were reading. A sign-out that lands
	// after this check has already reset the cache, which ReplaceAt detects.
	if current, ok := s.sessions.CurrentUser(); !ok || current != userID {
		entry.Warn("session changed during load, discarding result")
		return ErrNotAuthenticated
	}
	if !s.cache.ReplaceAt(gen, &model.UserData{ID: userID, Document: doc}) {
		entry.Warn("cache reset during load, discarding result")
		return ErrNotAuthenticated
	}

	entry.WithFields(logrus.Fields{
		"categories":   len(doc.Categories),
		"recent_tasks": len(doc.RecentTasks),
	}).Info("user data loaded")
	return nil
}

// Refresh reloads the document of the signed-in user.
func (s *ProfileService) Refresh(ctx context.Context) error {
	userID, ok := s.sessions.CurrentUser()
	if !ok {
		return ErrNotAuthenticated
	}
	return s.Load(ctx, userID)
}

// CreateProfile writes the sign-up fields of a new user document.
func (s *ProfileService) CreateProfile(ctx context.Context, userID string, p NewProfile) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return validationError("user id is required")
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if err := model.Validate(p); err != nil {
		return validationError("%v", err)
	}

	err := s.store.SetMerge(ctx, userID, repository.Fields{
		model.FieldName:      p.Name,
		model.FieldEmail:     p.Email,
		model.FieldPhotoURL:  p.PhotoURL,
		model.FieldAvatarSvg: p.AvatarSvg,
		model.FieldCreatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("create profile: %w: %w", ErrRemoteWrite, err)
	}
	s.log.WithField("user_id", userID).Info("profile created")
	return nil
}

// Bind keeps the cache in step with the session: sign-in loads the user's data,
// sign-out empties the cache. The returned function stops listening.
func (s *ProfileService) Bind(ctx context.Context, p session.Provider) func() {
	return p.OnChange(func(userID string) {
		if userID == "" {
			s.cache.Reset()
			s.log.Info("signed out, cache cleared")
			return
		}
		if snap := s.cache.Read(); snap != nil && snap.ID != userID {
			s.cache.Reset()
		}
		if err := s.Load(ctx, userID); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Error("initial load after sign-in")
		}
	})
}

// fetchDocument reads and validates a user's document.
func fetchDocument(ctx context.Context, store repository.DocumentStore, userID string) (model.Document, error) {
	raw, err := store.Get(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Document{}, ErrProfileNotFound
	case err != nil:
		return model.Document{}, fmt.Errorf("%w: %w", ErrRemoteRead, err)
	}
	doc, err := model.DecodeDocument(raw)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return doc, nil
}
