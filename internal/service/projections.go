package service

import (
	"strings"

	"daily-driver/internal/cache"
	"daily-driver/internal/model"
)

// DefaultRecentLimit is how many recent tasks the home view shows.
const DefaultRecentLimit = 5

// RecentTasks projects the newest entries of the cached recent-tasks log.
type RecentTasks struct {
	cache *cache.UserData
	limit int
}

func NewRecentTasks(c *cache.UserData, limit int) *RecentTasks {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RecentTasks{cache: c, limit: limit}
}

// Project returns at most limit tasks in log order, newest first. The log is kept in
// that order by the Mutator, so nothing is sorted here.
func (p *RecentTasks) Project() []model.Task {
	snap := p.cache.Read()
	if snap == nil {
		return nil
	}
	n := min(len(snap.RecentTasks), p.limit)
	return append([]model.Task(nil), snap.RecentTasks[:n]...)
}

// FilterCategories returns the categories whose name contains query, ignoring case.
// An empty query matches everything.
func FilterCategories(categories []model.Category, query string) []model.Category {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		if query == "" || strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	return out
}
