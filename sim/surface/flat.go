package surface

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/envsim/envsim/sim"
)

// Surface is the flat spatial index: one registry and a linear scan per query.
type Surface[K comparable] struct {
	mu      sync.Mutex
	agents  map[K]*agent
	byKind  map[Kind]map[K]*agent
	visited uint64
}

// NewSurface creates an empty flat index.
func NewSurface[K comparable]() *Surface[K] {
	return &Surface[K]{
		agents: make(map[K]*agent),
		byKind: map[Kind]map[K]*agent{
			Mobile: make(map[K]*agent),
			Static: make(map[K]*agent),
		},
	}
}

func (s *Surface[K]) Register(id K, kind Kind, pos Vec2, move MoveFunc) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("registering agent %v: %w: %v", id, sim.ErrUnknownKind, kind)
	}
	if !pos.IsFinite() {
		return false, fmt.Errorf("registering agent %v: %w: %v", id, sim.ErrInvalidPosition, pos)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; ok {
		return false, fmt.Errorf("registering agent %v: %w", id, sim.ErrDuplicateID)
	}
	a := newAgent(kind, pos, move)
	s.agents[id] = a
	s.byKind[kind][id] = a
	return true, nil
}

func (s *Surface[K]) Remove(id K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return false
	}
	delete(s.agents, id)
	delete(s.byKind[a.kind], id)
	return true
}

func (s *Surface[K]) GetPosition(id K) (Vec2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return Vec2{}, fmt.Errorf("agent %v: %w", id, sim.ErrNotFound)
	}
	return a.pos, nil
}

func (s *Surface[K]) SetPosition(id K, pos Vec2) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %v: %w", id, sim.ErrNotFound)
	}
	if !pos.IsFinite() {
		return fmt.Errorf("agent %v: %w: %v", id, sim.ErrInvalidPosition, pos)
	}
	a.pos = pos
	return nil
}

func (s *Surface[K]) Move(id K, delta Vec2) (Vec2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return Vec2{}, fmt.Errorf("agent %v: %w", id, sim.ErrNotFound)
	}
	if a.kind == Static {
		logrus.Infof("Tried to move static agent %v by %v", id, delta)
		return a.pos, nil
	}
	pos := a.target(delta)
	if !pos.IsFinite() {
		return a.pos, fmt.Errorf("agent %v: %w: %v", id, sim.ErrInvalidPosition, pos)
	}
	a.pos = pos
	return a.pos, nil
}

func (s *Surface[K]) FindWithinRadius(center Vec2, radius float64, filter KindFilter) ([]Neighbor[K], error) {
	kinds, err := filter.kinds()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []Neighbor[K]
	for _, kind := range kinds {
		for id, a := range s.byKind[kind] {
			s.visited++
			if center.Dist(a.pos) < radius {
				found = append(found, Neighbor[K]{ID: id, Kind: kind, Position: a.pos})
			}
		}
	}
	return found, nil
}

func (s *Surface[K]) Agents() []Neighbor[K] {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Neighbor[K], 0, len(s.agents))
	for id, a := range s.agents {
		all = append(all, Neighbor[K]{ID: id, Kind: a.kind, Position: a.pos})
	}
	return all
}

func (s *Surface[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

func (s *Surface[K]) Visited() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited
}
