package diagram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Component is a node of the diagram.
type Component struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Type        ComponentType `json:"type" yaml:"type"`
	Position    Point         `json:"position" yaml:"position"`
	Sensitivity Sensitivity   `json:"sensitivity" yaml:"sensitivity"`
	Description string        `json:"description" yaml:"description"`
}

// Connection is a directed, protocol-tagged data flow between two components.
type Connection struct {
	ID                  string `json:"id" yaml:"id"`
	SourceID            string `json:"sourceId" yaml:"sourceId"`
	DestinationID       string `json:"destinationId" yaml:"destinationId"`
	SourcePosition      Anchor `json:"sourcePosition" yaml:"sourcePosition"`
	DestinationPosition Anchor `json:"destinationPosition" yaml:"destinationPosition"`
	Protocol            string `json:"protocol" yaml:"protocol"`
	DataType            string `json:"data_type" yaml:"data_type"`
}

// Graph is the component arena. Connections reference components by key and
// every mutation keeps both endpoints live.
type Graph struct {
	canvas      Canvas
	components  map[string]*Component
	order       []string
	connections []Connection
	now         func() time.Time
	lastConnSeq int
}

// NewGraph returns an empty graph bounded by canvas.
func NewGraph(canvas Canvas) *Graph {
	return &Graph{
		canvas:     canvas,
		components: make(map[string]*Component),
		now:        time.Now,
	}
}

// SetClock replaces the id clock. Tests use it to force id collisions.
func (g *Graph) SetClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Canvas returns the bounds used for clamping and layout.
func (g *Graph) Canvas() Canvas {
	return g.canvas
}

// AddComponent creates a component at (x, y) and appends it to the arena.
// Names are not unique. Ids are derived from the wall clock in milliseconds and a
// same-millisecond collision gets a numeric suffix.
func (g *Graph) AddComponent(t ComponentType, name string, x, y float64) (Component, error) {
	if _, ok := LookupComponentKind(t); !ok {
		return Component{}, fmt.Errorf("%w: %s", sharedErrors.ErrUnknownComponentType, t)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = t.Label()
	}

	c := &Component{
		ID:          g.nextComponentID(),
		Name:        name,
		Type:        t,
		Position:    g.canvas.Clamp(Point{X: x, Y: y}),
		Sensitivity: SensitivityMedium,
	}
	g.components[c.ID] = c
	g.order = append(g.order, c.ID)
	return *c, nil
}

func (g *Graph) nextComponentID() string {
	base := "comp_" + strconv.FormatInt(g.now().UnixMilli(), 10)
	id := base
	for n := 2; ; n++ {
		if _, taken := g.components[id]; !taken {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

// insertComponent adds a component with a caller-provided id (used on import).
func (g *Graph) insertComponent(c Component) error {
	if c.ID == "" {
		return fmt.Errorf("%w: component id", sharedErrors.ErrMissingRequired)
	}
	if _, exists := g.components[c.ID]; exists {
		return fmt.Errorf("%w: %s", sharedErrors.ErrDuplicateComponent, c.ID)
	}
	if c.Sensitivity == "" {
		c.Sensitivity = SensitivityMedium
	}
	c.Position = g.canvas.Clamp(c.Position)
	g.components[c.ID] = &c
	g.order = append(g.order, c.ID)
	return nil
}

// Component returns a copy of the component with the given id.
func (g *Graph) Component(id string) (Component, bool) {
	c, ok := g.components[id]
	if !ok {
		return Component{}, false
	}
	return *c, true
}

// Components returns copies of all components in insertion order.
func (g *Graph) Components() []Component {
	out := make([]Component, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.components[id])
	}
	return out
}

// Connections returns copies of all connections in insertion order.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, len(g.connections))
	copy(out, g.connections)
	return out
}

// Connection returns the connection with the given id.
func (g *Graph) Connection(id string) (Connection, bool) {
	for _, c := range g.connections {
		if c.ID == id {
			return c, true
		}
	}
	return Connection{}, false
}

// Len returns the number of components.
func (g *Graph) Len() int {
	return len(g.order)
}

// MoveComponent repositions a component, clamped to the canvas.
func (g *Graph) MoveComponent(id string, x, y float64) (Point, error) {
	c, ok := g.components[id]
	if !ok {
		return Point{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, id)
	}
	c.Position = g.canvas.Clamp(Point{X: x, Y: y})
	return c.Position, nil
}

// UpdateComponent edits the user-facing attributes of a component. Empty name
// keeps the current one.
func (g *Graph) UpdateComponent(id, name string, sensitivity Sensitivity, description string) error {
	c, ok := g.components[id]
	if !ok {
		return fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, id)
	}
	if n := strings.TrimSpace(name); n != "" {
		c.Name = n
	}
	if sensitivity != "" {
		c.Sensitivity = sensitivity
	}
	c.Description = description
	return nil
}

// Connect adds a data flow between two distinct live components.
func (g *Graph) Connect(sourceID string, sourceAnchor Anchor, destID string, destAnchor Anchor, protocol string) (Connection, error) {
	if sourceID == destID {
		return Connection{}, sharedErrors.ErrSelfConnection
	}
	if _, ok := g.components[sourceID]; !ok {
		return Connection{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, sourceID)
	}
	if _, ok := g.components[destID]; !ok {
		return Connection{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, destID)
	}
	if !sourceAnchor.Valid() || !destAnchor.Valid() {
		return Connection{}, sharedErrors.ErrUnknownAnchor
	}
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		return Connection{}, sharedErrors.ErrEmptyProtocol
	}

	conn := Connection{
		ID:                  g.nextConnectionID(),
		SourceID:            sourceID,
		DestinationID:       destID,
		SourcePosition:      sourceAnchor,
		DestinationPosition: destAnchor,
		Protocol:            protocol,
		DataType:            DataTypeFor(protocol),
	}
	g.connections = append(g.connections, conn)
	return conn, nil
}

func (g *Graph) nextConnectionID() string {
	for {
		g.lastConnSeq++
		id := "conn_" + strconv.FormatInt(g.now().UnixMilli(), 10) + "_" + strconv.Itoa(g.lastConnSeq)
		if _, exists := g.Connection(id); !exists {
			return id
		}
	}
}

// insertConnection adds an imported connection after checking both endpoints.
func (g *Graph) insertConnection(c Connection) error {
	if c.SourceID == c.DestinationID {
		return fmt.Errorf("%w: %s", sharedErrors.ErrSelfConnection, c.ID)
	}
	if _, ok := g.components[c.SourceID]; !ok {
		return fmt.Errorf("%w: %s -> %s", sharedErrors.ErrDanglingConnection, c.ID, c.SourceID)
	}
	if _, ok := g.components[c.DestinationID]; !ok {
		return fmt.Errorf("%w: %s -> %s", sharedErrors.ErrDanglingConnection, c.ID, c.DestinationID)
	}
	if c.ID == "" {
		c.ID = g.nextConnectionID()
	}
	if !c.SourcePosition.Valid() {
		c.SourcePosition = AnchorRight
	}
	if !c.DestinationPosition.Valid() {
		c.DestinationPosition = AnchorLeft
	}
	if c.DataType == "" {
		c.DataType = DataTypeFor(c.Protocol)
	}
	g.connections = append(g.connections, c)
	return nil
}

// RemoveConnection deletes a single data flow.
func (g *Graph) RemoveConnection(id string) error {
	for i, c := range g.connections {
		if c.ID == id {
			g.connections = append(g.connections[:i], g.connections[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", sharedErrors.ErrConnectionNotFound, id)
}

// RemoveComponent deletes a component and, first, every connection touching it.
// It returns the ids of the cascaded connections.
func (g *Graph) RemoveComponent(id string) ([]string, error) {
	if _, ok := g.components[id]; !ok {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, id)
	}

	var removed []string
	kept := g.connections[:0]
	for _, c := range g.connections {
		if c.SourceID == id || c.DestinationID == id {
			removed = append(removed, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	g.connections = kept

	delete(g.components, id)
	for i, cid := range g.order {
		if cid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// Incident returns the connections touching a component.
func (g *Graph) Incident(id string) []Connection {
	var out []Connection
	for _, c := range g.connections {
		if c.SourceID == id || c.DestinationID == id {
			out = append(out, c)
		}
	}
	return out
}

// Curve computes the rendered path of a connection from the current positions.
func (g *Graph) Curve(conn Connection) (Curve, error) {
	src, ok := g.components[conn.SourceID]
	if !ok {
		return Curve{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, conn.SourceID)
	}
	dst, ok := g.components[conn.DestinationID]
	if !ok {
		return Curve{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, conn.DestinationID)
	}
	return BezierBetween(AnchorPoint(src.Position, conn.SourcePosition), AnchorPoint(dst.Position, conn.DestinationPosition)), nil
}

// AutoLayout places components evenly around a circle centred on the canvas,
// starting at twelve o'clock and going clockwise. The result depends only on the
// component count and the canvas size.
func (g *Graph) AutoLayout() {
	n := len(g.order)
	if n == 0 {
		return
	}

	center := g.canvas.Center()
	radius := math.Min(g.canvas.Width, g.canvas.Height)/2 - math.Max(NodeWidth, NodeHeight)
	if radius < NodeWidth/2 {
		radius = NodeWidth / 2
	}

	for i, id := range g.order {
		angle := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		p := Point{
			X: center.X + radius*math.Cos(angle) - NodeWidth/2,
			Y: center.Y + radius*math.Sin(angle) - NodeHeight/2,
		}
		g.components[id].Position = g.canvas.Clamp(roundPoint(p))
	}
}

func roundPoint(p Point) Point {
	return Point{X: math.Round(p.X*10) / 10, Y: math.Round(p.Y*10) / 10}
}
