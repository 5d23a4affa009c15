package service

import (
	"fmt"
	"sync"
)

// Phase is the progress of one action on one entity
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// ActionState is one phase change of an action on an entity
type ActionState struct {
	EntityID string
	Action   string
	Phase    Phase
	Err      error
}

// Tracker reports which entities have an action in flight so a front end
// can show progress and disable controls while a request is pending
type Tracker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(ActionState)
}

func NewTracker() *Tracker {
	return &Tracker{
		listeners: make(map[int]func(ActionState)),
	}
}

// Track marks entityID pending for the duration of fn. The entity always
// ends up Succeeded or Failed, even when fn panics.
func (t *Tracker) Track(entityID, action string, fn func() error) (err error) {
	t.set(ActionState{EntityID: entityID, Action: action, Phase: PhasePending})

	defer func() {
		if r := recover(); r != nil {
			t.set(ActionState{EntityID: entityID, Action: action, Phase: PhaseFailed, Err: fmt.Errorf("panic: %v", r)})
			panic(r)
		}
		final := ActionState{EntityID: entityID, Action: action, Phase: PhaseSucceeded}
		if err != nil {
			final.Phase = PhaseFailed
			final.Err = err
		}
		t.set(final)
	}()

	return fn()
}

// Subscribe registers fn for every phase change and returns its unsubscribe func
func (t *Tracker) Subscribe(fn func(ActionState)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

func (t *Tracker) set(st ActionState) {
	t.mu.Lock()
	listeners := make([]func(ActionState), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
