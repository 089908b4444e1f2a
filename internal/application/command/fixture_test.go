package command_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/domain/course"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	store  *memory.Store
	clock  *timeutil.FixedClock
	events *recorder
	opts   command.Options
}

// newFixture seeds a published 4-lesson course c-go priced $50.00, a
// published course without lessons, and a draft course.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(),
		clock:  timeutil.NewFixedClock(t0),
		events: &recorder{},
	}
	seq := 0
	var mu sync.Mutex
	f.opts = command.Options{
		Clock:     f.clock,
		Publisher: f.events,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}

	published := t0.Add(-48 * time.Hour)
	f.store.AddCourse(course.Course{
		ID: "c-go", InstructorID: "i-1", Title: "Go in Practice", Slug: "go-in-practice",
		Status: course.StatusPublished, Price: 5000, CreatedAt: published, PublishedAt: &published,
	})
	for i := 1; i <= 4; i++ {
		f.store.AddLesson(course.Lesson{ID: fmt.Sprintf("l-%d", i), SectionID: "s-1", CourseID: "c-go", Order: i})
	}
	f.store.AddCourse(course.Course{
		ID: "c-empty", InstructorID: "i-1", Title: "Coming Soon", Status: course.StatusPublished,
		IsFree: true, CreatedAt: published, PublishedAt: &published,
	})
	f.store.AddCourse(course.Course{
		ID: "c-draft", InstructorID: "i-2", Title: "Draft", Status: course.StatusDraft, Price: 1000, CreatedAt: published,
	})
	f.store.AddLesson(course.Lesson{ID: "l-draft", SectionID: "s-9", CourseID: "c-draft", Order: 1})
	return f
}
