package world

import (
	"fmt"
	"sync"

	"lockstep/internal/nav"
)

// Submitter is one registered actor: a connected player or peer process
// allowed to queue actions.
type Submitter struct {
	ID        string
	Name      string
	Level     int
	Pos       nav.Point3
	Resources map[string]int
}

func (s *Submitter) clone() *Submitter {
	cp := *s
	cp.Resources = make(map[string]int, len(s.Resources))
	for k, v := range s.Resources {
		cp.Resources[k] = v
	}
	return &cp
}

// State is the shared world state. The scheduler loop is the only writer
// (its result-application step); conflict resolution and notification
// fan-out read concurrently.
type State struct {
	mu         sync.RWMutex
	submitters map[string]*Submitter
	nextNum    uint64
}

func NewState() *State {
	return &State{submitters: make(map[string]*Submitter)}
}

// Join registers a submitter and assigns its id. Ids are sequential so that
// two peers replaying the same join order assign the same ids.
func (st *State) Join(name string, level int) *Submitter {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextNum++
	s := &Submitter{
		ID:        fmt.Sprintf("S%06d", st.nextNum),
		Name:      name,
		Level:     level,
		Resources: make(map[string]int),
	}
	st.submitters[s.ID] = s
	return s.clone()
}

func (st *State) Leave(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.submitters, id)
}

func (st *State) Exists(id string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.submitters[id]
	return ok
}

// SubmitterLevel returns the level of id, or 0 for unknown submitters.
func (st *State) SubmitterLevel(id string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s := st.submitters[id]; s != nil {
		return s.Level
	}
	return 0
}

// ResourceCount returns how much of resource the submitter holds.
func (st *State) ResourceCount(id, resource string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s := st.submitters[id]; s != nil {
		return s.Resources[resource]
	}
	return 0
}

func (st *State) Position(id string) (nav.Point3, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s := st.submitters[id]; s != nil {
		return s.Pos, true
	}
	return nav.Point3{}, false
}

func (st *State) SetPosition(id string, p nav.Point3) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s := st.submitters[id]; s != nil {
		s.Pos = p
	}
}

func (st *State) SetLevel(id string, level int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s := st.submitters[id]; s != nil {
		s.Level = level
	}
}

// AdjustResource adds delta (possibly negative) to a submitter's resource.
// A withdrawal below zero fails without mutating.
func (st *State) AdjustResource(id, resource string, delta int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.submitters[id]
	if s == nil {
		return fmt.Errorf("unknown submitter %s", id)
	}
	next := s.Resources[resource] + delta
	if next < 0 {
		return fmt.Errorf("insufficient %s: have %d, need %d", resource, s.Resources[resource], -delta)
	}
	if next == 0 {
		delete(s.Resources, resource)
		return nil
	}
	s.Resources[resource] = next
	return nil
}

// GrantResource is AdjustResource for positive amounts, used at setup time.
func (st *State) GrantResource(id, resource string, amount int) {
	if amount <= 0 {
		return
	}
	_ = st.AdjustResource(id, resource, amount)
}
