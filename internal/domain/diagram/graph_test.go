package diagram

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

var testCanvas = Canvas{Width: 1200, Height: 800}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func mustAdd(t *testing.T, g *Graph, typ ComponentType, name string, x, y float64) Component {
	t.Helper()
	c, err := g.AddComponent(typ, name, x, y)
	if err != nil {
		t.Fatalf("AddComponent(%s) failed: %v", typ, err)
	}
	return c
}

func TestAddComponentDefaults(t *testing.T) {
	g := NewGraph(testCanvas)
	g.SetClock(fixedClock(1700000000000))

	c := mustAdd(t, g, "database", "  ", 100, 120)
	if c.ID != "comp_1700000000000" {
		t.Fatalf("unexpected id %q", c.ID)
	}
	if c.Name != "Database" {
		t.Fatalf("expected empty name to fall back to label, got %q", c.Name)
	}
	if c.Sensitivity != SensitivityMedium {
		t.Fatalf("expected medium sensitivity, got %s", c.Sensitivity)
	}
	if c.Position != (Point{X: 100, Y: 120}) {
		t.Fatalf("unexpected position %+v", c.Position)
	}
}

func TestAddComponentSameMillisecond(t *testing.T) {
	g := NewGraph(testCanvas)
	g.SetClock(fixedClock(42))

	a := mustAdd(t, g, "user", "Alice", 0, 0)
	b := mustAdd(t, g, "user", "Alice", 0, 0)
	c := mustAdd(t, g, "user", "Alice", 0, 0)

	ids := []string{a.ID, b.ID, c.ID}
	want := []string{"comp_42", "comp_42_2", "comp_42_3"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestAddComponentUnknownType(t *testing.T) {
	g := NewGraph(testCanvas)
	_, err := g.AddComponent("spaceship", "x", 0, 0)
	if !errors.Is(err, sharedErrors.ErrUnknownComponentType) {
		t.Fatalf("expected ErrUnknownComponentType, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("graph should stay empty")
	}
}

func TestAddComponentClampsToCanvas(t *testing.T) {
	g := NewGraph(testCanvas)
	c := mustAdd(t, g, "server", "", -50, 5000)
	if c.Position != (Point{X: 0, Y: testCanvas.Height - NodeHeight}) {
		t.Fatalf("unexpected clamped position %+v", c.Position)
	}
}

func TestSelfConnectionRejected(t *testing.T) {
	g := NewGraph(testCanvas)
	a := mustAdd(t, g, "web_server", "web", 10, 10)
	mustAdd(t, g, "database", "db", 400, 10)
	before := g.Connections()

	for _, src := range Anchors {
		for _, dst := range Anchors {
			_, err := g.Connect(a.ID, src, a.ID, dst, "HTTPS")
			if !errors.Is(err, sharedErrors.ErrSelfConnection) {
				t.Fatalf("expected ErrSelfConnection for %s->%s, got %v", src, dst, err)
			}
		}
	}
	if diff := cmp.Diff(before, g.Connections()); diff != "" {
		t.Fatalf("data flows changed (-before +after):\n%s", diff)
	}
}

func TestConnectDerivesDataType(t *testing.T) {
	g := NewGraph(testCanvas)
	a := mustAdd(t, g, "web_server", "web", 10, 10)
	b := mustAdd(t, g, "database", "db", 400, 10)

	conn, err := g.Connect(a.ID, AnchorRight, b.ID, AnchorLeft, "sql")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if conn.DataType != "Database Queries" {
		t.Fatalf("expected Database Queries, got %q", conn.DataType)
	}

	custom, err := g.Connect(b.ID, AnchorBottom, a.ID, AnchorBottom, "ACME-Sync")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if custom.DataType != "Custom Data" {
		t.Fatalf("expected Custom Data, got %q", custom.DataType)
	}
	if conn.ID == custom.ID {
		t.Fatalf("connection ids must differ")
	}
}

func TestConnectValidatesEndpoints(t *testing.T) {
	g := NewGraph(testCanvas)
	a := mustAdd(t, g, "web_server", "web", 10, 10)

	if _, err := g.Connect(a.ID, AnchorRight, "comp_missing", AnchorLeft, "HTTP"); !errors.Is(err, sharedErrors.ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
	b := mustAdd(t, g, "cache", "cache", 300, 10)
	if _, err := g.Connect(a.ID, "middle", b.ID, AnchorLeft, "HTTP"); !errors.Is(err, sharedErrors.ErrUnknownAnchor) {
		t.Fatalf("expected ErrUnknownAnchor, got %v", err)
	}
	if _, err := g.Connect(a.ID, AnchorRight, b.ID, AnchorLeft, "  "); !errors.Is(err, sharedErrors.ErrEmptyProtocol) {
		t.Fatalf("expected ErrEmptyProtocol, got %v", err)
	}
}

func TestRemoveComponentCascades(t *testing.T) {
	g := NewGraph(testCanvas)
	g.SetClock(fixedClock(1))
	user := mustAdd(t, g, "user", "user", 0, 0)
	web := mustAdd(t, g, "web_server", "web", 200, 0)
	db := mustAdd(t, g, "database", "db", 400, 0)
	idp := mustAdd(t, g, "identity_provider", "idp", 200, 300)

	c1, _ := g.Connect(user.ID, AnchorRight, web.ID, AnchorLeft, "HTTPS")
	c2, _ := g.Connect(web.ID, AnchorRight, db.ID, AnchorLeft, "SQL")
	c3, _ := g.Connect(user.ID, AnchorBottom, idp.ID, AnchorLeft, "OAuth")
	c4, _ := g.Connect(idp.ID, AnchorTop, web.ID, AnchorBottom, "SAML")

	removed, err := g.RemoveComponent(web.ID)
	if err != nil {
		t.Fatalf("RemoveComponent failed: %v", err)
	}
	if diff := cmp.Diff([]string{c1.ID, c2.ID, c4.ID}, removed); diff != "" {
		t.Fatalf("removed connections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Connection{c3}, g.Connections()); diff != "" {
		t.Fatalf("remaining connections mismatch (-want +got):\n%s", diff)
	}
	for _, conn := range g.Connections() {
		if conn.SourceID == web.ID || conn.DestinationID == web.ID {
			t.Fatalf("connection %s still references deleted component", conn.ID)
		}
	}
	want := []Component{user, db, idp}
	if diff := cmp.Diff(want, g.Components()); diff != "" {
		t.Fatalf("remaining components mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveMissing(t *testing.T) {
	g := NewGraph(testCanvas)
	if _, err := g.RemoveComponent("nope"); !errors.Is(err, sharedErrors.ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
	if err := g.RemoveConnection("nope"); !errors.Is(err, sharedErrors.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestAutoLayoutDeterministic(t *testing.T) {
	g := NewGraph(testCanvas)
	for i := 0; i < 7; i++ {
		mustAdd(t, g, "microservice", "", float64(i*13), float64(i*29))
	}

	g.AutoLayout()
	first := g.Components()
	g.AutoLayout()
	second := g.Components()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("auto layout is not deterministic (-first +second):\n%s", diff)
	}

	center := testCanvas.Center()
	radius := math.Min(testCanvas.Width, testCanvas.Height)/2 - NodeWidth
	for i, c := range first {
		cx := c.Position.X + NodeWidth/2
		cy := c.Position.Y + NodeHeight/2
		dist := math.Hypot(cx-center.X, cy-center.Y)
		if math.Abs(dist-radius) > 0.5 {
			t.Fatalf("component %d is %.2f from centre, want %.2f", i, dist, radius)
		}
	}
	// first component sits at twelve o'clock
	if math.Abs(first[0].Position.X+NodeWidth/2-center.X) > 0.1 {
		t.Fatalf("expected first component centred horizontally, got %+v", first[0].Position)
	}
}

func TestAutoLayoutEmpty(t *testing.T) {
	g := NewGraph(testCanvas)
	g.AutoLayout()
	if g.Len() != 0 {
		t.Fatal("layout must not create components")
	}
}

func TestBezierHorizontalDominant(t *testing.T) {
	c := BezierBetween(Point{X: 0, Y: 0}, Point{X: 100, Y: 20})
	want := Curve{
		Start:    Point{X: 0, Y: 0},
		Control1: Point{X: 30, Y: 0},
		Control2: Point{X: 70, Y: 20},
		End:      Point{X: 100, Y: 20},
		Label:    Point{X: 50, Y: 10},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("curve mismatch (-want +got):\n%s", diff)
	}
	if got := c.SVGPath(); got != "M 0.0 0.0 C 30.0 0.0, 70.0 20.0, 100.0 20.0" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestBezierVerticalDominant(t *testing.T) {
	c := BezierBetween(Point{X: 50, Y: 200}, Point{X: 40, Y: 0})
	if c.Control1 != (Point{X: 50, Y: 140}) || c.Control2 != (Point{X: 40, Y: 60}) {
		t.Fatalf("unexpected control points %+v %+v", c.Control1, c.Control2)
	}
	if c.Label != (Point{X: 45, Y: 100}) {
		t.Fatalf("unexpected label %+v", c.Label)
	}
}

func TestAnchorPoint(t *testing.T) {
	pos := Point{X: 10, Y: 20}
	tests := map[Anchor]Point{
		AnchorTop:    {X: 10 + NodeWidth/2, Y: 20},
		AnchorRight:  {X: 10 + NodeWidth, Y: 20 + NodeHeight/2},
		AnchorBottom: {X: 10 + NodeWidth/2, Y: 20 + NodeHeight},
		AnchorLeft:   {X: 10, Y: 20 + NodeHeight/2},
	}
	for anchor, want := range tests {
		if got := AnchorPoint(pos, anchor); got != want {
			t.Fatalf("AnchorPoint(%s) = %+v, want %+v", anchor, got, want)
		}
	}
}

func TestFromSystemDataRejectsDangling(t *testing.T) {
	data := SystemData{
		Name: "shop",
		Components: []Component{
			{ID: "a", Name: "web", Type: "web_server"},
		},
		DataFlows: []Connection{
			{ID: "c1", SourceID: "a", DestinationID: "ghost", Protocol: "HTTP"},
		},
	}
	if _, err := FromSystemData(data, testCanvas); !errors.Is(err, sharedErrors.ErrDanglingConnection) {
		t.Fatalf("expected ErrDanglingConnection, got %v", err)
	}

	data.DataFlows[0].DestinationID = "a"
	if _, err := FromSystemData(data, testCanvas); !errors.Is(err, sharedErrors.ErrSelfConnection) {
		t.Fatalf("expected ErrSelfConnection, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := NewModel("payments", testCanvas)
	m.SetMethodologies([]string{"STRIDE", "dread", "stride"})
	m.SetFrameworks([]string{"iso27001"})
	a := mustAdd(t, m.Graph, "api_gateway", "gw", 10, 10)
	b := mustAdd(t, m.Graph, "payment_gateway", "psp", 400, 10)
	if _, err := m.Graph.Connect(a.ID, AnchorRight, b.ID, AnchorLeft, "HTTPS"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	snap := m.Snapshot()
	if diff := cmp.Diff([]string{"dread", "stride"}, snap.Methodologies); diff != "" {
		t.Fatalf("methodologies mismatch:\n%s", diff)
	}

	restored, err := FromSystemData(snap, testCanvas)
	if err != nil {
		t.Fatalf("FromSystemData failed: %v", err)
	}
	if diff := cmp.Diff(snap, restored.Snapshot()); diff != "" {
		t.Fatalf("snapshot round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDataTypeForIsCaseInsensitive(t *testing.T) {
	if got := DataTypeFor("https"); got != "Encrypted Web Traffic" {
		t.Fatalf("DataTypeFor(https) = %q", got)
	}
	if got := DataTypeFor(""); got != "Custom Data" {
		t.Fatalf("DataTypeFor(empty) = %q", got)
	}
	protocols := Protocols()
	if protocols[len(protocols)-1] != CustomProtocol {
		t.Fatalf("custom entry must be last, got %v", protocols[len(protocols)-1])
	}
}
