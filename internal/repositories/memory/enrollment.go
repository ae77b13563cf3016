package memory

import (
	"context"
	"sort"
	"sync"
)

// Directory is an in-memory EnrollmentDirectory
type Directory struct {
	mu       sync.RWMutex
	subjects map[string]map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{subjects: make(map[string]map[string]struct{})}
}

// Enroll adds students to a subject
func (d *Directory) Enroll(subjectID string, studentIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	students, ok := d.subjects[subjectID]
	if !ok {
		students = make(map[string]struct{})
		d.subjects[subjectID] = students
	}
	for _, id := range studentIDs {
		students[id] = struct{}{}
	}
}

func (d *Directory) ListEnrolledStudents(ctx context.Context, subjectID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.subjects[subjectID]))
	for id := range d.subjects[subjectID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
