package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"daily-driver/internal/cache"
	"daily-driver/internal/events"
	"daily-driver/internal/model"
	"daily-driver/internal/repository"
	"daily-driver/internal/session"
)

type stage string

const (
	stageValidating  stage = "validating"
	stageWriting     stage = "writing"
	stageReconciling stage = "reconciling"
	stageDone        stage = "done"
	stageRejected    stage = "rejected"
	stageFailed      stage = "failed"
)

var errSessionChanged = errors.New("session changed during write")

// Mutator is the only writer of categories and tasks. Every operation validates its
// input, writes to the store, and patches the cache only after the store confirmed
// the write. A failed write leaves the cache untouched.
//
// The store has no compare-and-swap, so operations assume a single writer per user
// document (one device session). RemoveCategory, AddTaskToCategory and RemoveTask
// read, modify and overwrite whole fields and can drop an edit made elsewhere.
type Mutator struct {
	store    repository.DocumentStore
	cache    *cache.UserData
	sessions session.Provider
	events   events.Publisher
	log      logrus.FieldLogger

	now   func() time.Time
	newID func() string
	color func() string

	removing atomic.Bool
}

func NewMutator(store repository.DocumentStore, c *cache.UserData, sessions session.Provider, publisher events.Publisher, log logrus.FieldLogger) *Mutator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Mutator{
		store:    store,
		cache:    c,
		sessions: sessions,
		events:   publisher,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		color:    randomColor,
	}
}

func randomColor() string {
	return model.Palette[rand.Intn(len(model.Palette))]
}

// AddCategory creates a category with an optional first task. The category only shows
// up in the cache once the store has accepted it, so its id is safe to use for
// follow-up task operations.
func (m *Mutator) AddCategory(ctx context.Context, name, firstTask string) (*model.Category, error) {
	userID, snap, entry, err := m.begin("add_category")
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, m.reject(entry, validationError("category name is required"))
	}

	now := m.now()
	ids := usedIDs(snap)
	category := model.Category{
		ID:        m.freshID(ids),
		Name:      name,
		Color:     m.color(),
		Tasks:     []model.Task{},
		TimeStamp: now,
	}
	if text := strings.TrimSpace(firstTask); text != "" {
		category.Tasks = append(category.Tasks, model.Task{ID: m.freshID(ids), Task: text, TimeStamp: now})
	}
	entry = entry.WithField("category_id", category.ID)

	entry.WithField("stage", stageWriting).Debug("appending category")
	if err := m.store.AppendUnique(ctx, userID, model.FieldCategories, category); err != nil {
		return nil, m.fail(entry, fmt.Errorf("add category: %w: %w", ErrRemoteWrite, err))
	}

	m.reconcile(entry, userID, func(d *model.UserData) error {
		d.Categories = append(d.Categories, category.Clone())
		return nil
	})
	m.publish(ctx, entry, events.Event{Type: events.CategoryCreated, UserID: userID, CategoryID: category.ID, Name: category.Name, OccurredAt: now})

	entry.WithField("stage", stageDone).Info("category added")
	out := category.Clone()
	return &out, nil
}

// RemoveCategory deletes a category and its tasks. It re-reads the document and
// overwrites the categories field with the filtered list, because the store has no
// remove-by-id primitive. Asking the user to confirm is up to the view.
func (m *Mutator) RemoveCategory(ctx context.Context, categoryID string) error {
	userID, _, entry, err := m.begin("remove_category")
	if err != nil {
		return err
	}

	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return m.reject(entry, validationError("no category selected"))
	}
	entry = entry.WithField("category_id", categoryID)

	doc, err := fetchDocument(ctx, m.store, userID)
	if err != nil {
		return m.fail(entry, fmt.Errorf("remove category: %w", err))
	}
	filtered := make([]model.Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		if c.ID != categoryID {
			filtered = append(filtered, c)
		}
	}

	entry.WithField("stage", stageWriting).Debug("writing categories")
	if err := m.store.UpdateFields(ctx, userID, repository.Fields{model.FieldCategories: filtered}); err != nil {
		return m.fail(entry, fmt.Errorf("remove category: %w: %w", ErrRemoteWrite, err))
	}

	m.reconcile(entry, userID, func(d *model.UserData) error {
		d.Categories = cloneCategories(filtered)
		return nil
	})
	m.publish(ctx, entry, events.Event{Type: events.CategoryRemoved, UserID: userID, CategoryID: categoryID, OccurredAt: m.now()})

	entry.WithField("stage", stageDone).Info("category removed")
	return nil
}

// AddTaskToCategory prepends a task to a category and to the recent-tasks log.
// Both fields go to the store in one update so no reader sees one without the other.
func (m *Mutator) AddTaskToCategory(ctx context.Context, categoryID, text string) (*model.Task, error) {
	userID, snap, entry, err := m.begin("add_task")
	if err != nil {
		return nil, err
	}

	categoryID = strings.TrimSpace(categoryID)
	text = strings.TrimSpace(text)
	if categoryID == "" {
		return nil, m.reject(entry, validationError("no category selected"))
	}
	if text == "" {
		return nil, m.reject(entry, validationError("task text is required"))
	}
	entry = entry.WithField("category_id", categoryID)

	idx := model.FindCategory(snap.Categories, categoryID)
	if idx < 0 {
		return nil, m.reject(entry, validationError("category %q not found", categoryID))
	}

	task := model.Task{ID: m.freshID(usedIDs(snap)), Task: text, TimeStamp: m.now()}
	entry = entry.WithField("task_id", task.ID)

	categories := cloneCategories(snap.Categories)
	categories[idx].Tasks = append([]model.Task{task}, categories[idx].Tasks...)

	doc, err := fetchDocument(ctx, m.store, userID)
	if err != nil {
		return nil, m.fail(entry, fmt.Errorf("add task: %w", err))
	}
	recent := append([]model.Task{task}, doc.RecentTasks...)

	entry.WithField("stage", stageWriting).Debug("writing categories and recent tasks")
	err = m.store.UpdateFields(ctx, userID, repository.Fields{
		model.FieldCategories:  categories,
		model.FieldRecentTasks: recent,
	})
	if err != nil {
		return nil, m.fail(entry, fmt.Errorf("add task: %w: %w", ErrRemoteWrite, err))
	}

	m.reconcile(entry, userID, func(d *model.UserData) error {
		d.Categories = cloneCategories(categories)
		d.RecentTasks = append([]model.Task(nil), recent...)
		return nil
	})
	m.publish(ctx, entry, events.Event{Type: events.TaskAdded, UserID: userID, CategoryID: categoryID, TaskID: task.ID, Name: task.Task, OccurredAt: task.TimeStamp})

	entry.WithField("stage", stageDone).Info("task added")
	return &task, nil
}

// RemoveTask deletes a task from a category, working from the cached category rather
// than a fresh read. The recent-tasks log keeps the entry.
//
// Only one removal may be writing at a time: two overlapping filter-and-overwrite
// calls would each start from a snapshot that still has the other's task, and the
// later write would bring it back. A call made while another removal is in flight
// fails with ErrRemovalInFlight and changes nothing.
func (m *Mutator) RemoveTask(ctx context.Context, categoryID, taskID string) error {
	userID, _, entry, err := m.begin("remove_task")
	if err != nil {
		return err
	}

	categoryID = strings.TrimSpace(categoryID)
	taskID = strings.TrimSpace(taskID)
	if categoryID == "" {
		return m.reject(entry, validationError("no category selected"))
	}
	if taskID == "" {
		return m.reject(entry, validationError("no task selected"))
	}
	entry = entry.WithFields(logrus.Fields{"category_id": categoryID, "task_id": taskID})

	if !m.removing.CompareAndSwap(false, true) {
		return m.reject(entry, ErrRemovalInFlight)
	}
	defer m.removing.Store(false)

	// Read after taking the guard so the previous removal's result is included.
	snap := m.cache.Read()
	if snap == nil || snap.ID != userID {
		return m.reject(entry, ErrNotLoaded)
	}
	idx := model.FindCategory(snap.Categories, categoryID)
	if idx < 0 {
		return m.reject(entry, validationError("category %q not found", categoryID))
	}

	categories := cloneCategories(snap.Categories)
	kept := make([]model.Task, 0, len(categories[idx].Tasks))
	for _, t := range categories[idx].Tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(categories[idx].Tasks) {
		return m.reject(entry, validationError("task %q not found", taskID))
	}
	categories[idx].Tasks = kept

	entry.WithField("stage", stageWriting).Debug("writing categories")
	if err := m.store.UpdateFields(ctx, userID, repository.Fields{model.FieldCategories: categories}); err != nil {
		return m.fail(entry, fmt.Errorf("remove task: %w: %w", ErrRemoteWrite, err))
	}

	m.reconcile(entry, userID, func(d *model.UserData) error {
		d.Categories = cloneCategories(categories)
		return nil
	})
	m.publish(ctx, entry, events.Event{Type: events.TaskRemoved, UserID: userID, CategoryID: categoryID, TaskID: taskID, OccurredAt: m.now()})

	entry.WithField("stage", stageDone).Info("task removed")
	return nil
}

// begin checks that a user is signed in and that their data is in the cache.
func (m *Mutator) begin(op string) (string, *model.UserData, *logrus.Entry, error) {
	entry := m.log.WithField("op", op)
	userID, ok := m.sessions.CurrentUser()
	if !ok {
		return "", nil, entry, m.reject(entry, ErrNotAuthenticated)
	}
	entry = entry.WithField("user_id", userID)

	snap := m.cache.Read()
	if snap == nil || snap.ID != userID {
		return "", nil, entry, m.reject(entry, ErrNotLoaded)
	}
	entry.WithField("stage", stageValidating).Debug("operation started")
	return userID, snap, entry, nil
}

func (m *Mutator) reject(entry *logrus.Entry, err error) error {
	entry.WithField("stage", stageRejected).WithError(err).Info("operation rejected")
	return err
}

func (m *Mutator) fail(entry *logrus.Entry, err error) error {
	entry.WithField("stage", stageFailed).WithError(err).Warn("operation failed")
	return err
}

// reconcile patches the cache after a confirmed write. If the user signed out or
// switched accounts meanwhile, the patch is dropped: the write itself still happened.
func (m *Mutator) reconcile(entry *logrus.Entry, userID string, fn func(*model.UserData) error) {
	entry.WithField("stage", stageReconciling).Debug("remote write confirmed")
	err := m.cache.Patch(func(d *model.UserData) error {
		if d.ID != userID {
			return errSessionChanged
		}
		return fn(d)
	})
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrEmpty), errors.Is(err, errSessionChanged):
		entry.Warn("session changed during write, cache left as is")
	default:
		entry.WithError(err).Error("reconcile cache")
	}
}

func (m *Mutator) publish(ctx context.Context, entry *logrus.Entry, e events.Event) {
	if err := m.events.Publish(ctx, e); err != nil {
		entry.WithError(err).WithField("event", e.Type).Warn("publish event")
	}
}

// freshID returns an id not present in used and records it there.
func (m *Mutator) freshID(used map[string]struct{}) string {
	for {
		id := m.newID()
		if _, taken := used[id]; !taken {
			used[id] = struct{}{}
			return id
		}
	}
}

// usedIDs collects every category and task id the user already has.
func usedIDs(d *model.UserData) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, c := range d.Categories {
		ids[c.ID] = struct{}{}
		for _, t := range c.Tasks {
			ids[t.ID] = struct{}{}
		}
	}
	for _, t := range d.RecentTasks {
		ids[t.ID] = struct{}{}
	}
	return ids
}

func cloneCategories(in []model.Category) []model.Category {
	out := make([]model.Category, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
