package model

import "time"

// Task is a single to-do item inside a category.
type Task struct {
	ID        string    `json:"id" validate:"required"`
	Task      string    `json:"task" validate:"required"`
	TimeStamp time.Time `json:"timeStamp"`
}
