package course

import (
	"errors"
	"fmt"
	"strings"
)

// Registry errors.
var (
	ErrNoCourses       = errors.New("registry: no courses configured")
	ErrDuplicateCourse = errors.New("registry: duplicate course id")
	ErrCourseNotFound  = errors.New("registry: course not found")
)

// Registry is the static, loaded-once list of tracked courses.
type Registry struct {
	courses []Course
	byID    map[string]Course
}

// NewRegistry builds a registry from the configured course list.
func NewRegistry(courses []Course) (*Registry, error) {
	if len(courses) == 0 {
		return nil, ErrNoCourses
	}

	byID := make(map[string]Course, len(courses))
	for _, c := range courses {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("registry: course needs id and name, got %+v", c)
		}
		if _, exists := byID[c.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCourse, c.ID)
		}
		byID[c.ID] = c
	}

	return &Registry{courses: courses, byID: byID}, nil
}

// Get returns the course with the given id.
func (r *Registry) Get(id string) (Course, error) {
	c, ok := r.byID[id]
	if !ok {
		return Course{}, fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	return c, nil
}

// All returns the tracked courses in configuration order.
func (r *Registry) All() []Course {
	out := make([]Course, len(r.courses))
	copy(out, r.courses)
	return out
}

// Names returns the course names joined for "valid options" replies.
func (r *Registry) Names() string {
	names := make([]string, 0, len(r.courses))
	for _, c := range r.courses {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// Len returns the number of tracked courses.
func (r *Registry) Len() int {
	return len(r.courses)
}
