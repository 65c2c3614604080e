// Package observe streams environment frames to WebSocket observers.
package observe

import (
	"sort"

	"github.com/envsim/envsim/sim"
	"github.com/envsim/envsim/sim/surface"
)

// AgentPosition is one agent as observers see it.
type AgentPosition struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Frame is one observer update.
type Frame struct {
	Snapshot sim.Snapshot       `json:"snapshot"`
	Agents   []AgentPosition    `json:"agents,omitempty"`
	Tiles    []surface.TileInfo `json:"tiles,omitempty"`
}

// Source builds the next frame to publish.
type Source func() Frame

// NewFrame converts index neighbours into a frame, ordered by id.
func NewFrame(snap sim.Snapshot, agents []surface.Neighbor[string]) Frame {
	f := Frame{Snapshot: snap, Agents: make([]AgentPosition, 0, len(agents))}
	for _, a := range agents {
		f.Agents = append(f.Agents, AgentPosition{ID: a.ID, Kind: a.Kind.String(), X: a.Position.X, Y: a.Position.Y})
	}
	sort.Slice(f.Agents, func(i, j int) bool { return f.Agents[i].ID < f.Agents[j].ID })
	return f
}
