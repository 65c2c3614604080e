// Package surface tracks agent positions on a 2-D surface and answers
// radius-based proximity queries.
//
// Two implementations share the Index contract: Surface scans every agent,
// TiledSurface partitions the plane into lazily created square tiles and scans
// only the tiles a query disc touches. Every public method of both holds one
// exclusive lock for its full duration.
package surface

// Index is the operation surface shared by the flat and tiled variants.
// Keys are supplied by the caller and never generated.
type Index[K comparable] interface {
	// Register inserts a new agent. A duplicate id returns false and
	// sim.ErrDuplicateID without touching the existing entry.
	Register(id K, kind Kind, pos Vec2, move MoveFunc) (bool, error)
	// Remove deletes id if present and reports whether it was.
	Remove(id K) bool
	GetPosition(id K) (Vec2, error)
	// SetPosition overwrites the position of either kind of agent.
	SetPosition(id K, pos Vec2) error
	// Move applies the agent's MoveFunc to delta. Static agents are not moved.
	Move(id K, delta Vec2) (Vec2, error)
	// FindWithinRadius returns agents strictly closer than radius to center,
	// mobile agents before static ones.
	FindWithinRadius(center Vec2, radius float64, filter KindFilter) ([]Neighbor[K], error)
	// Agents returns every registered agent.
	Agents() []Neighbor[K]
	Len() int
	// Visited counts agent records examined by queries since creation.
	Visited() uint64
}

var (
	_ Index[string] = (*Surface[string])(nil)
	_ Index[string] = (*TiledSurface[string])(nil)
)
