package surface

import (
	"fmt"
	"strings"

	"github.com/envsim/envsim/sim"
)

// Kind distinguishes agents that move on their own from fixed ones.
type Kind int

const (
	Mobile Kind = iota + 1
	Static
)

func (k Kind) String() string {
	switch k {
	case Mobile:
		return "mobile"
	case Static:
		return "static"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is Mobile or Static.
func (k Kind) Valid() bool {
	return k == Mobile || k == Static
}

// ParseKind maps "mobile" or "static" (case-insensitive) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "mobile":
		return Mobile, nil
	case "static":
		return Static, nil
	default:
		return 0, fmt.Errorf("%w: %q", sim.ErrUnknownKind, name)
	}
}

// KindFilter selects which agents a radius query returns.
type KindFilter int

const (
	MobileOnly KindFilter = iota + 1
	StaticOnly
	Both
)

// kinds returns the agent kinds a filter selects, mobile first.
func (f KindFilter) kinds() ([]Kind, error) {
	switch f {
	case MobileOnly:
		return []Kind{Mobile}, nil
	case StaticOnly:
		return []Kind{Static}, nil
	case Both:
		return []Kind{Mobile, Static}, nil
	default:
		return nil, fmt.Errorf("%w: filter %d", sim.ErrUnknownKind, int(f))
	}
}

// MoveFunc computes a mobile agent's new position from its current position
// and a requested displacement.
type MoveFunc func(pos, delta Vec2) Vec2

// AddMove is the default MoveFunc: plain vector addition.
func AddMove(pos, delta Vec2) Vec2 {
	return pos.Add(delta)
}

// Neighbor is one agent returned by a query.
type Neighbor[K comparable] struct {
	ID       K    `json:"id"`
	Kind     Kind `json:"kind"`
	Position Vec2 `json:"position"`
}

// agent is the record an index keeps per registered id.
type agent struct {
	kind Kind
	pos  Vec2
	move MoveFunc
}

func newAgent(kind Kind, pos Vec2, move MoveFunc) *agent {
	if move == nil {
		move = AddMove
	}
	return &agent{kind: kind, pos: pos, move: move}
}

// target returns where delta would take the agent. Static agents stay put.
func (a *agent) target(delta Vec2) Vec2 {
	if a.kind != Mobile {
		return a.pos
	}
	return a.move(a.pos, delta)
}
