package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the state of a todo.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Todo is one item of the list.
type Todo struct {
	ID        string
	Title     string
	Status    Status
	CreatedAt time.Time
}

// Stats summarizes the store.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Store is an in-memory todo store shared by every request.
type Store struct {
	mu     sync.RWMutex
	todos  map[string]*Todo
	nextID int
	now    func() time.Time
}

// NewStore creates a store holding the given titles.
func NewStore(titles ...string) *Store {
	s := &Store{
		todos:  make(map[string]*Todo),
		nextID: 1,
		now:    time.Now,
	}
	for _, title := range titles {
		s.Add(title)
	}
	return s
}

// Add creates a new todo and returns its ID.
func (s *Store) Add(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("todo-%d", s.nextID)
	s.todos[id] = &Todo{
		ID:     id,
		Title:  title,
		Status: StatusPending,
		// Creation order breaks ties between todos added in the same instant.
		CreatedAt: s.now().Add(time.Duration(s.nextID)),
	}
	s.nextID++
	return id
}

// Toggle flips the completed status of a todo.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	todo, ok := s.todos[id]
	if !ok {
		return false
	}
	if todo.Status == StatusCompleted {
		todo.Status = StatusPending
	} else {
		todo.Status = StatusCompleted
	}
	return true
}

// List returns copies of the todos with the given status, oldest first. An
// empty status lists everything.
func (s *Store) List(status Status) []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Todo
	for _, todo := range s.todos {
		if status != "" && todo.Status != status {
			continue
		}
		result = append(result, *todo)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Stats returns statistics about the todos.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, todo := range s.todos {
		stats.Total++
		if todo.Status == StatusCompleted {
			stats.Completed++
		}
	}
	return stats
}
