package surface

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/envsim/envsim/sim"
)

// MaxTileExtent bounds TiledConfig.MaxExtent so grid coordinates and the
// query bounding box stay well inside int range.
const MaxTileExtent = 1 << 30

// TiledConfig groups the tile-partitioning parameters.
type TiledConfig struct {
	TileSize  float64 // side length of every tile (must be > 0)
	Origin    Vec2    // upper-left corner of the root tile
	MaxExtent int     // max tiles from the root along either axis (must be > 0)
}

// NewTiledConfig builds a config with the root tile at the origin.
func NewTiledConfig(tileSize float64, maxExtent int) TiledConfig {
	return TiledConfig{TileSize: tileSize, MaxExtent: maxExtent}
}

// Validate checks size and extent. Failures wrap sim.ErrInvalidConfiguration.
func (c TiledConfig) Validate() error {
	if math.IsNaN(c.TileSize) || math.IsInf(c.TileSize, 0) || c.TileSize <= 0 {
		return fmt.Errorf("%w: tile size must be a positive finite number, got %f", sim.ErrInvalidConfiguration, c.TileSize)
	}
	if !c.Origin.IsFinite() {
		return fmt.Errorf("%w: origin must be finite, got %v", sim.ErrInvalidConfiguration, c.Origin)
	}
	if c.MaxExtent <= 0 || c.MaxExtent > MaxTileExtent {
		return fmt.Errorf("%w: max extent must be in [1, %d], got %d", sim.ErrInvalidConfiguration, MaxTileExtent, c.MaxExtent)
	}
	return nil
}

type gridCoord struct {
	Col, Row int
}

func (c gridCoord) step(d Direction) gridCoord {
	switch d {
	case Up:
		return gridCoord{c.Col, c.Row - 1}
	case Down:
		return gridCoord{c.Col, c.Row + 1}
	case Left:
		return gridCoord{c.Col - 1, c.Row}
	case Right:
		return gridCoord{c.Col + 1, c.Row}
	default:
		panic(fmt.Errorf("%w: cannot step %v", sim.ErrUnknownDirection, d))
	}
}

// tile owns the agents whose positions fall inside its area. A nil border
// entry means no neighbour has been needed in that direction yet.
type tile[K comparable] struct {
	area   SquareArea
	coord  gridCoord
	border [4]*tile[K]
	agents map[K]*agent
}

// TileInfo describes one tile for inspection and observers.
type TileInfo struct {
	Col    int        `json:"col"`
	Row    int        `json:"row"`
	Area   SquareArea `json:"area"`
	Agents int        `json:"agents"`
}

// TiledSurface partitions the plane into square tiles created on demand.
// Each agent belongs to exactly one tile; queries only scan tiles that
// intersect the query disc.
type TiledSurface[K comparable] struct {
	cfg TiledConfig

	mu           sync.Mutex
	root         *tile[K]
	grid         map[gridCoord]*tile[K]
	owner        map[K]*tile[K]
	visited      uint64
	tilesScanned uint64
}

// NewTiledSurface creates an index holding only the root tile.
func NewTiledSurface[K comparable](cfg TiledConfig) (*TiledSurface[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating tiled surface: %w", err)
	}
	s := &TiledSurface[K]{
		cfg:   cfg,
		grid:  make(map[gridCoord]*tile[K]),
		owner: make(map[K]*tile[K]),
	}
	s.root = s.addTile(gridCoord{})
	return s, nil
}

// corner returns the upper-left corner of the tile at c. Adjacent tiles share
// the same expression for their common edge, so containment has no gaps.
func (s *TiledSurface[K]) corner(c gridCoord) Vec2 {
	return V(
		s.cfg.Origin.X+float64(c.Col)*s.cfg.TileSize,
		s.cfg.Origin.Y+float64(c.Row)*s.cfg.TileSize,
	)
}

func (s *TiledSurface[K]) addTile(c gridCoord) *tile[K] {
	t := &tile[K]{
		area:   SquareArea{Min: s.corner(c), Max: s.corner(gridCoord{c.Col + 1, c.Row + 1})},
		coord:  c,
		agents: make(map[K]*agent),
	}
	s.grid[c] = t
	for _, d := range directions {
		if n, ok := s.grid[c.step(d)]; ok {
			t.border[d.border()] = n
			n.border[d.Opposite().border()] = t
		}
	}
	return t
}

// neighbor returns the tile next to t in direction d, creating it if needed.
func (s *TiledSurface[K]) neighbor(t *tile[K], d Direction) (*tile[K], error) {
	if n := t.border[d.border()]; n != nil {
		return n, nil
	}
	c := t.coord.step(d)
	if abs(c.Col) > s.cfg.MaxExtent || abs(c.Row) > s.cfg.MaxExtent {
		return nil, fmt.Errorf("%w: tile (%d, %d) is beyond %d tiles from the root",
			sim.ErrResourceExhausted, c.Col, c.Row, s.cfg.MaxExtent)
	}
	logrus.Debugf("Creating tile (%d, %d) %s of (%d, %d)", c.Col, c.Row, d, t.coord.Col, t.coord.Row)
	return s.addTile(c), nil
}

// locate walks one tile at a time from start until it reaches the tile whose
// area contains p, creating missing tiles on the way.
func (s *TiledSurface[K]) locate(start *tile[K], p Vec2) (*tile[K], error) {
	t := start
	for {
		d := t.area.Classify(p)
		if d == Inside {
			return t, nil
		}
		next, err := s.neighbor(t, d)
		if err != nil {
			return nil, err
		}
		t = next
	}
}

// rehome moves a's membership to the tile containing pos and updates its
// position. On error nothing changes.
func (s *TiledSurface[K]) rehome(id K, a *agent, from *tile[K], pos Vec2) error {
	if !pos.IsFinite() {
		return fmt.Errorf("agent %v: %w: %v", id, sim.ErrInvalidPosition, pos)
	}
	if from.area.Contains(pos) {
		a.pos = pos
		return nil
	}
	to, err := s.locate(from, pos)
	if err != nil {
		return fmt.Errorf("agent %v: %w", id, err)
	}
	delete(from.agents, id)
	to.agents[id] = a
	s.owner[id] = to
	a.pos = pos
	return nil
}

func (s *TiledSurface[K]) Register(id K, kind Kind, pos Vec2, move MoveFunc) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("registering agent %v: %w: %v", id, sim.ErrUnknownKind, kind)
	}
	if !pos.IsFinite() {
		return false, fmt.Errorf("registering agent %v: %w: %v", id, sim.ErrInvalidPosition, pos)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owner[id]; ok {
		return false, fmt.Errorf("registering agent %v: %w", id, sim.ErrDuplicateID)
	}
	t, err := s.locate(s.root, pos)
	if err != nil {
		return false, fmt.Errorf("registering agent %v: %w", id, err)
	}
	t.agents[id] = newAgent(kind, pos, move)
	s.owner[id] = t
	return true, nil
}

func (s *TiledSurface[K]) Remove(id K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.owner[id]
	if !ok {
		return false
	}
	delete(t.agents, id)
	delete(s.owner, id)
	return true
}

func (s *TiledSurface[K]) lookup(id K) (*tile[K], *agent, error) {
	t, ok := s.owner[id]
	if !ok {
		return nil, nil, fmt.Errorf("agent %v: %w", id, sim.ErrNotFound)
	}
	return t, t.agents[id], nil
}

func (s *TiledSurface[K]) GetPosition(id K) (Vec2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, a, err := s.lookup(id)
	if err != nil {
		return Vec2{}, err
	}
	return a.pos, nil
}

func (s *TiledSurface[K]) SetPosition(id K, pos Vec2) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, a, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.rehome(id, a, t, pos)
}

func (s *TiledSurface[K]) Move(id K, delta Vec2) (Vec2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, a, err := s.lookup(id)
	if err != nil {
		return Vec2{}, err
	}
	if a.kind == Static {
		logrus.Infof("Tried to move static agent %v by %v", id, delta)
		return a.pos, nil
	}
	if err := s.rehome(id, a, t, a.target(delta)); err != nil {
		return a.pos, err
	}
	return a.pos, nil
}

func (s *TiledSurface[K]) FindWithinRadius(center Vec2, radius float64, filter KindFilter) ([]Neighbor[K], error) {
	kinds, err := filter.kinds()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(radius > 0) || !center.IsFinite() {
		return nil, nil
	}
	byKind := make(map[Kind][]Neighbor[K], len(kinds))
	for _, t := range s.candidates(center, radius) {
		s.tilesScanned++
		for id, a := range t.agents {
			s.visited++
			if center.Dist(a.pos) < radius {
				byKind[a.kind] = append(byKind[a.kind], Neighbor[K]{ID: id, Kind: a.kind, Position: a.pos})
			}
		}
	}
	var found []Neighbor[K]
	for _, kind := range kinds {
		found = append(found, byKind[kind]...)
	}
	return found, nil
}

// candidates returns the existing tiles whose area intersects the disc.
// Grid cells covering the disc's bounding box are probed directly unless
// there are fewer tiles in total than cells in the box.
func (s *TiledSurface[K]) candidates(center Vec2, radius float64) []*tile[K] {
	intersects := func(t *tile[K]) bool {
		return t.area.DistanceTo(center) < radius
	}

	lo := s.coordOf(center.Sub(V(radius, radius)))
	hi := s.coordOf(center.Add(V(radius, radius)))
	// one cell of slack absorbs rounding at tile edges
	lo.Col, lo.Row = lo.Col-1, lo.Row-1
	hi.Col, hi.Row = hi.Col+1, hi.Row+1

	var out []*tile[K]
	cells := float64(hi.Col-lo.Col+1) * float64(hi.Row-lo.Row+1)
	if cells > float64(len(s.grid)) {
		for _, t := range s.grid {
			if intersects(t) {
				out = append(out, t)
			}
		}
		return out
	}
	for row := lo.Row; row <= hi.Row; row++ {
		for col := lo.Col; col <= hi.Col; col++ {
			if t, ok := s.grid[gridCoord{col, row}]; ok && intersects(t) {
				out = append(out, t)
			}
		}
	}
	return out
}

// coordOf maps p to a grid coordinate, clamped just past the extent since no
// tile exists beyond it.
func (s *TiledSurface[K]) coordOf(p Vec2) gridCoord {
	limit := float64(s.cfg.MaxExtent + 1)
	clamp := func(v float64) int {
		return int(math.Max(-limit, math.Min(limit, math.Floor(v))))
	}
	return gridCoord{
		Col: clamp((p.X - s.cfg.Origin.X) / s.cfg.TileSize),
		Row: clamp((p.Y - s.cfg.Origin.Y) / s.cfg.TileSize),
	}
}

func (s *TiledSurface[K]) Agents() []Neighbor[K] {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Neighbor[K], 0, len(s.owner))
	for id, t := range s.owner {
		a := t.agents[id]
		all = append(all, Neighbor[K]{ID: id, Kind: a.kind, Position: a.pos})
	}
	return all
}

func (s *TiledSurface[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owner)
}

func (s *TiledSurface[K]) Visited() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited
}

// TilesScanned counts tiles whose membership queries examined.
func (s *TiledSurface[K]) TilesScanned() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tilesScanned
}

// TileCount returns the number of tiles created so far, root included.
func (s *TiledSurface[K]) TileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grid)
}

// Tiles describes every tile.
func (s *TiledSurface[K]) Tiles() []TileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]TileInfo, 0, len(s.grid))
	for c, t := range s.grid {
		infos = append(infos, TileInfo{Col: c.Col, Row: c.Row, Area: t.area, Agents: len(t.agents)})
	}
	return infos
}

// Config returns the tiling parameters.
func (s *TiledSurface[K]) Config() TiledConfig {
	return s.cfg
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
