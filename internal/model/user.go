package model

import "time"

// Top-level field names of a user document.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhotoURL    = "photoURL"
	FieldAvatarSvg   = "avatarSvg"
	FieldCreatedAt   = "createdAt"
	FieldCategories  = "categories"
	FieldRecentTasks = "RecentTasks"
)

// Document is the per-user document kept in the remote store.
type Document struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	PhotoURL    string     `json:"photoURL"`
	AvatarSvg   string     `json:"avatarSvg"`
	CreatedAt   time.Time  `json:"createdAt"`
	Categories  []Category `json:"categories" validate:"dive"`
	RecentTasks []Task     `json:"RecentTasks" validate:"dive"`
}

// UserData is the cached view of the signed-in user: profile identity plus the document.
type UserData struct {
	ID string `json:"id"`
	Document
}

// Clone deep-copies the user data so the copy can be changed without touching u.
func (u *UserData) Clone() *UserData {
	if u == nil {
		return nil
	}
	out := *u
	if u.Categories != nil {
		out.Categories = make([]Category, len(u.Categories))
		for i, c := range u.Categories {
			out.Categories[i] = c.Clone()
		}
	}
	if u.RecentTasks != nil {
		out.RecentTasks = make([]Task, len(u.RecentTasks))
		copy(out.RecentTasks, u.RecentTasks)
	}
	return &out
}
