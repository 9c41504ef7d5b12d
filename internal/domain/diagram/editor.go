package diagram

import (
	"errors"
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// State is the connection-interaction state of the editor.
type State int

const (
	StateIdle State = iota
	StateConnecting
)

func (s State) String() string {
	if s == StateConnecting {
		return "connecting"
	}
	return "idle"
}

// Action is a user intent delivered to Editor.Dispatch.
type Action interface {
	isAction()
}

// AddComponent drops a palette item on the canvas.
type AddComponent struct {
	Type ComponentType
	Name string
	X, Y float64
}

// PointerDown starts dragging a component; X/Y is the pointer location.
type PointerDown struct {
	ComponentID string
	X, Y        float64
}

// PointerMove moves the pointer: drags the grabbed component or updates the
// preview line while connecting.
type PointerMove struct {
	X, Y float64
}

// PointerUp releases the pointer and commits a drag.
type PointerUp struct{}

// ClickAnchor clicks one of the four connection points of a component.
type ClickAnchor struct {
	ComponentID string
	Anchor      Anchor
}

// ClickCanvas clicks empty canvas.
type ClickCanvas struct{}

// ChooseProtocol answers the protocol prompt of a pending connection. When
// Protocol is CustomProtocol, Custom holds the user's free-form value.
type ChooseProtocol struct {
	Protocol string
	Custom   string
}

// CancelProtocol dismisses the protocol prompt without creating a connection.
type CancelProtocol struct{}

// Select makes a component the current selection.
type Select struct {
	ComponentID string
}

// DeleteSelected removes the selected component after confirmation.
type DeleteSelected struct{}

// DeleteConnection removes a data flow after confirmation.
type DeleteConnection struct {
	ConnectionID string
}

// EditComponent changes a component's name, sensitivity and description.
type EditComponent struct {
	ComponentID string
	Name        string
	Sensitivity Sensitivity
	Description string
}

// RunAutoLayout arranges all components on a circle.
type RunAutoLayout struct{}

// SetMetadata changes the system settings. Zero fields are left alone; a
// non-nil empty tag list clears the tags.
type SetMetadata struct {
	Name          string
	Type          SystemType
	AnalysisScope Scope
	Methodologies []string
	Frameworks    []string
}

func (AddComponent) isAction()     {}
func (PointerDown) isAction()      {}
func (PointerMove) isAction()      {}
func (PointerUp) isAction()        {}
func (ClickAnchor) isAction()      {}
func (ClickCanvas) isAction()      {}
func (ChooseProtocol) isAction()   {}
func (CancelProtocol) isAction()   {}
func (Select) isAction()           {}
func (DeleteSelected) isAction()   {}
func (DeleteConnection) isAction() {}
func (EditComponent) isAction()    {}
func (RunAutoLayout) isAction()    {}
func (SetMetadata) isAction()      {}

// NoticeLevel grades a transient user notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient notification (the toast of the browser editor).
type Notice struct {
	Level   NoticeLevel
	Message string
}

// ProtocolPrompt asks the user to pick a protocol for a pending connection.
type ProtocolPrompt struct {
	SourceID      string
	DestinationID string
	Options       []string
}

// Outcome reports what a dispatched action did.
type Outcome struct {
	State   State
	Changed bool
	Notices []Notice
	// Redraw lists connections whose path must be recomputed.
	Redraw []string
	Prompt *ProtocolPrompt
	// Created holds the id of a component or connection created by the action.
	Created string
}

// Confirmer approves destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves every prompt.
var AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

type endpoint struct {
	componentID string
	anchor      Anchor
}

type dragState struct {
	componentID string
	offset      Point
	position    Point
}

// Editor translates pointer and keyboard intents into graph mutations. It is
// the only writer of its Model while in use.
type Editor struct {
	model    *Model
	confirm  Confirmer
	state    State
	source   *endpoint
	pending  *[2]endpoint
	preview  *Curve
	drag     *dragState
	selected string
}

// NewEditor wraps a model. A nil confirmer declines every destructive action.
func NewEditor(model *Model, confirm Confirmer) *Editor {
	if confirm == nil {
		confirm = ConfirmFunc(func(string) bool { return false })
	}
	return &Editor{model: model, confirm: confirm}
}

// Model returns the edited model.
func (e *Editor) Model() *Model { return e.model }

// State returns the current interaction state.
func (e *Editor) State() State { return e.state }

// Selected returns the selected component id, if any.
func (e *Editor) Selected() string { return e.selected }

// Preview returns the live connection preview while connecting.
func (e *Editor) Preview() (Curve, bool) {
	if e.preview == nil {
		return Curve{}, false
	}
	return *e.preview, true
}

// PendingPrompt returns the open protocol prompt, if any.
func (e *Editor) PendingPrompt() *ProtocolPrompt {
	if e.pending == nil {
		return nil
	}
	return &ProtocolPrompt{
		SourceID:      e.pending[0].componentID,
		DestinationID: e.pending[1].componentID,
		Options:       Protocols(),
	}
}

// PositionOf returns where a component is drawn, including an uncommitted drag.
func (e *Editor) PositionOf(id string) (Point, bool) {
	if e.drag != nil && e.drag.componentID == id {
		return e.drag.position, true
	}
	c, ok := e.model.Graph.Component(id)
	if !ok {
		return Point{}, false
	}
	return c.Position, true
}

// CurveOf computes a connection path from the drawn positions.
func (e *Editor) CurveOf(conn Connection) (Curve, bool) {
	src, ok := e.PositionOf(conn.SourceID)
	if !ok {
		return Curve{}, false
	}
	dst, ok := e.PositionOf(conn.DestinationID)
	if !ok {
		return Curve{}, false
	}
	return BezierBetween(AnchorPoint(src, conn.SourcePosition), AnchorPoint(dst, conn.DestinationPosition)), true
}

// Dispatch applies one action. Invalid actions never fail: they leave the graph
// untouched and report a notice.
func (e *Editor) Dispatch(a Action) Outcome {
	var out Outcome
	if e.pending != nil {
		switch a.(type) {
		case ChooseProtocol, CancelProtocol:
		default:
			out.warn("Choose a protocol for the new connection first")
			out.Prompt = e.PendingPrompt()
			out.State = e.state
			return out
		}
	}

	switch act := a.(type) {
	case AddComponent:
		e.addComponent(act, &out)
	case PointerDown:
		e.pointerDown(act, &out)
	case PointerMove:
		e.pointerMove(act, &out)
	case PointerUp:
		e.pointerUp(&out)
	case ClickAnchor:
		e.clickAnchor(act, &out)
	case ClickCanvas:
		e.clickCanvas(&out)
	case ChooseProtocol:
		e.chooseProtocol(act, &out)
	case CancelProtocol:
		e.pending = nil
		out.info("Connection cancelled")
	case Select:
		e.selectComponent(act, &out)
	case DeleteSelected:
		e.deleteSelected(&out)
	case DeleteConnection:
		e.deleteConnection(act, &out)
	case EditComponent:
		e.editComponent(act, &out)
	case RunAutoLayout:
		e.autoLayout(&out)
	case SetMetadata:
		e.setMetadata(act, &out)
	default:
		out.warn(fmt.Sprintf("Unsupported action %T", a))
	}

	out.State = e.state
	return out
}

func (e *Editor) addComponent(act AddComponent, out *Outcome) {
	c, err := e.model.Graph.AddComponent(act.Type, act.Name, act.X, act.Y)
	if err != nil {
		out.warn(err.Error())
		return
	}
	out.Changed = true
	out.Created = c.ID
	out.success(fmt.Sprintf("Added %s %q", c.Type.Label(), c.Name))
}

func (e *Editor) pointerDown(act PointerDown, out *Outcome) {
	c, ok := e.model.Graph.Component(act.ComponentID)
	if !ok {
		out.warn("Component not found")
		return
	}
	e.selected = c.ID
	e.drag = &dragState{
		componentID: c.ID,
		offset:      Point{X: act.X - c.Position.X, Y: act.Y - c.Position.Y},
		position:    c.Position,
	}
}

func (e *Editor) pointerMove(act PointerMove, out *Outcome) {
	if e.drag != nil {
		e.drag.position = e.model.Graph.Canvas().Clamp(Point{X: act.X - e.drag.offset.X, Y: act.Y - e.drag.offset.Y})
		out.Redraw = e.incidentIDs(e.drag.componentID)
		return
	}
	if e.state == StateConnecting && e.source != nil {
		pos, ok := e.PositionOf(e.source.componentID)
		if !ok {
			return
		}
		curve := BezierBetween(AnchorPoint(pos, e.source.anchor), Point{X: act.X, Y: act.Y})
		e.preview = &curve
	}
}

func (e *Editor) pointerUp(out *Outcome) {
	if e.drag == nil {
		return
	}
	d := e.drag
	e.drag = nil
	before, _ := e.model.Graph.Component(d.componentID)
	pos, err := e.model.Graph.MoveComponent(d.componentID, d.position.X, d.position.Y)
	if err != nil {
		out.warn(err.Error())
		return
	}
	if pos != before.Position {
		out.Changed = true
		out.Redraw = e.incidentIDs(d.componentID)
	}
}

func (e *Editor) clickAnchor(act ClickAnchor, out *Outcome) {
	if _, ok := e.model.Graph.Component(act.ComponentID); !ok {
		e.resetConnecting()
		out.warn("Component not found")
		return
	}
	if !act.Anchor.Valid() {
		e.resetConnecting()
		out.warn(sharedErrors.ErrUnknownAnchor.Error())
		return
	}

	if e.state == StateIdle {
		e.state = StateConnecting
		e.source = &endpoint{componentID: act.ComponentID, anchor: act.Anchor}
		out.info("Select a destination connection point")
		return
	}

	src := *e.source
	e.resetConnecting()

	if src.componentID == act.ComponentID {
		if src.anchor == act.Anchor {
			out.info("Connection cancelled")
			return
		}
		out.warn("Cannot connect a component to itself")
		return
	}

	e.pending = &[2]endpoint{src, {componentID: act.ComponentID, anchor: act.Anchor}}
	out.Prompt = e.PendingPrompt()
}

func (e *Editor) clickCanvas(out *Outcome) {
	if e.state == StateConnecting {
		e.resetConnecting()
		out.info("Connection cancelled")
		return
	}
	e.selected = ""
}

func (e *Editor) chooseProtocol(act ChooseProtocol, out *Outcome) {
	if e.pending == nil {
		out.warn("No connection is waiting for a protocol")
		return
	}
	protocol := strings.TrimSpace(act.Protocol)
	if protocol == CustomProtocol {
		protocol = strings.TrimSpace(act.Custom)
	}
	if protocol == "" {
		out.warn("Please enter a protocol")
		out.Prompt = e.PendingPrompt()
		return
	}

	p := *e.pending
	e.pending = nil
	conn, err := e.model.Graph.Connect(p[0].componentID, p[0].anchor, p[1].componentID, p[1].anchor, protocol)
	if err != nil {
		out.warn(err.Error())
		return
	}
	out.Changed = true
	out.Created = conn.ID
	out.Redraw = []string{conn.ID}
	out.success(fmt.Sprintf("Connection created (%s, %s)", conn.Protocol, conn.DataType))
}

func (e *Editor) selectComponent(act Select, out *Outcome) {
	if _, ok := e.model.Graph.Component(act.ComponentID); !ok {
		out.warn("Component not found")
		return
	}
	e.selected = act.ComponentID
}

func (e *Editor) deleteSelected(out *Outcome) {
	if e.selected == "" {
		out.warn("No component selected")
		return
	}
	c, ok := e.model.Graph.Component(e.selected)
	if !ok {
		e.selected = ""
		out.warn("Component not found")
		return
	}
	incident := len(e.model.Graph.Incident(c.ID))
	prompt := fmt.Sprintf("Delete %q?", c.Name)
	if incident > 0 {
		prompt = fmt.Sprintf("Delete %q and its %d connection(s)?", c.Name, incident)
	}
	if !e.confirm.Confirm(prompt) {
		return
	}

	removed, err := e.model.Graph.RemoveComponent(c.ID)
	if err != nil {
		out.warn(err.Error())
		return
	}
	if e.source != nil && e.source.componentID == c.ID {
		e.resetConnecting()
	}
	if e.drag != nil && e.drag.componentID == c.ID {
		e.drag = nil
	}
	e.selected = ""
	out.Changed = true
	out.Redraw = removed
	out.success(fmt.Sprintf("Deleted %q", c.Name))
}

func (e *Editor) deleteConnection(act DeleteConnection, out *Outcome) {
	conn, ok := e.model.Graph.Connection(act.ConnectionID)
	if !ok {
		out.warn("Connection not found")
		return
	}
	if !e.confirm.Confirm(fmt.Sprintf("Delete %s connection?", conn.Protocol)) {
		return
	}
	if err := e.model.Graph.RemoveConnection(conn.ID); err != nil {
		out.warn(err.Error())
		return
	}
	out.Changed = true
	out.Redraw = []string{conn.ID}
	out.success("Connection deleted")
}

func (e *Editor) editComponent(act EditComponent, out *Outcome) {
	err := e.model.Graph.UpdateComponent(act.ComponentID, act.Name, act.Sensitivity, act.Description)
	if errors.Is(err, sharedErrors.ErrComponentNotFound) {
		out.warn("Component not found")
		return
	}
	if err != nil {
		out.warn(err.Error())
		return
	}
	out.Changed = true
	out.success("Component updated")
}

func (e *Editor) autoLayout(out *Outcome) {
	if e.model.Graph.Len() == 0 {
		out.info("Nothing to arrange")
		return
	}
	e.drag = nil
	e.model.Graph.AutoLayout()
	for _, c := range e.model.Graph.Connections() {
		out.Redraw = append(out.Redraw, c.ID)
	}
	out.Changed = true
	out.success("Components arranged")
}

func (e *Editor) resetConnecting() {
	e.state = StateIdle
	e.source = nil
	e.preview = nil
}

func (e *Editor) incidentIDs(componentID string) []string {
	var ids []string
	for _, c := range e.model.Graph.Incident(componentID) {
		ids = append(ids, c.ID)
	}
	return ids
}

func (o *Outcome) info(msg string) {
	o.Notices = append(o.Notices, Notice{Level: NoticeInfo, Message: msg})
}
func (o *Outcome) success(msg string) {
	o.Notices = append(o.Notices, Notice{Level: NoticeSuccess, Message: msg})
}
func (o *Outcome) warn(msg string) {
	o.Notices = append(o.Notices, Notice{Level: NoticeWarning, Message: msg})
}

func (e *Editor) setMetadata(act SetMetadata, out *Outcome) {
	if act.Type != "" && !knownSystemType(act.Type) {
		out.warn(fmt.Sprintf("Unknown system type %q", act.Type))
		return
	}
	if act.AnalysisScope != "" && !knownScope(act.AnalysisScope) {
		out.warn(fmt.Sprintf("Unknown analysis scope %q", act.AnalysisScope))
		return
	}

	m := e.model
	before := m.Snapshot()
	if name := strings.TrimSpace(act.Name); name != "" {
		m.Name = name
	}
	if act.Type != "" {
		m.Type = act.Type
	}
	if act.AnalysisScope != "" {
		m.AnalysisScope = act.AnalysisScope
	}
	if act.Methodologies != nil {
		m.SetMethodologies(act.Methodologies)
	}
	if act.Frameworks != nil {
		m.SetFrameworks(act.Frameworks)
	}

	after := m.Snapshot()
	if before.Name == after.Name && before.Type == after.Type && before.AnalysisScope == after.AnalysisScope &&
		sameTags(before.Methodologies, after.Methodologies) && sameTags(before.Frameworks, after.Frameworks) {
		out.info("System settings unchanged")
		return
	}
	out.Changed = true
	out.success("System settings updated")
}

func knownSystemType(t SystemType) bool {
	for _, v := range SystemTypes {
		if v == t {
			return true
		}
	}
	return false
}

func knownScope(s Scope) bool {
	for _, v := range Scopes {
		if v == s {
			return true
		}
	}
	return false
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
