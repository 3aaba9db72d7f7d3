package model

import "time"

// Palette holds the colors a new category can be tagged with.
var Palette = []string{"#FF8552", "#4F4789", "#297373", "#E9D758", "#FF6F61"}

// Category groups tasks under a named, colored bucket. Tasks are kept newest first.
type Category struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Color     string    `json:"color"`
	Tasks     []Task    `json:"tasks" validate:"dive"`
	TimeStamp time.Time `json:"timeStamp"`
}

// Clone returns a copy that shares no slices with c.
func (c Category) Clone() Category {
	out := c
	if c.Tasks != nil {
		out.Tasks = make([]Task, len(c.Tasks))
		copy(out.Tasks, c.Tasks)
	}
	return out
}

// FindCategory returns the index of the category with the given id, or -1.
func FindCategory(categories []Category, id string) int {
	for i := range categories {
		if categories[i].ID == id {
			return i
		}
	}
	return -1
}
