package importer

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-globe/common"
	"github.com/google/uuid"
)

// Result is the terminal outcome of one import.
type Result struct {
	ID       uuid.UUID
	Kind     Kind
	Resource string
	// Sector is the imported region; zero when the import failed before it was known.
	Sector common.Sector
	// Layer is the name of the inserted layer or elevation model.
	Layer string
	// Err is nil on success and an *ImportError otherwise.
	Err      error
	Duration time.Duration
}

// OK reports whether the import succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Import is the handle of an accepted import. Done is closed once the import reached a terminal state.
type Import struct {
	id       uuid.UUID
	kind     Kind
	resource string

	once   sync.Once
	done   chan struct{}
	result Result
}

func newImport(kind Kind, resource string) *Import {
	return &Import{
		id:       uuid.New(),
		kind:     kind,
		resource: resource,
		done:     make(chan struct{}),
	}
}

// ID returns the import's unique identifier.
func (i *Import) ID() uuid.UUID { return i.id }

// Kind returns what the import produces.
func (i *Import) Kind() Kind { return i.kind }

// Resource returns the imported resource name.
func (i *Import) Resource() string { return i.resource }

// Done returns a channel closed when the import finishes.
func (i *Import) Done() <-chan struct{} { return i.done }

// Result returns the outcome, blocking until the import finishes.
func (i *Import) Result() Result {
	<-i.done
	return i.result
}

// Wait is Result bounded by d. ok is false if the import has not finished in time.
func (i *Import) Wait(d time.Duration) (res Result, ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-i.done:
		return i.result, true
	case <-timer.C:
		return Result{}, false
	}
}

func (i *Import) complete(res Result) {
	i.once.Do(func() {
		i.result = res
		close(i.done)
	})
}
