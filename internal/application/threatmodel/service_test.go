package threatmodel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	jsonrepo "github.com/khanhnv2901/seca-suite/internal/infrastructure/persistence/json"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

var testCanvas = diagram.Canvas{Width: 1200, Height: 800}

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := jsonrepo.NewDiagramRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiagramRepository failed: %v", err)
	}
	logger := zaptest.NewLogger(t)
	analyzer := tools.NewService(nil, nil, nil, nil, logger, tools.Options{Offline: true})
	return NewService(repo, analyzer, testCanvas, logger)
}

// buildShop creates a diagram with a user talking plain TCP to a database.
func buildShop(t *testing.T, svc *Service) (string, string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Create(ctx, "shop", "Shop"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	outs, err := svc.Apply(ctx, "shop",
		diagram.AddComponent{Type: "user", Name: "Shopper", X: 100, Y: 100},
		diagram.AddComponent{Type: "database", Name: "Orders", X: 500, Y: 100},
	)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	user, db := outs[0].Created, outs[1].Created
	if user == "" || db == "" {
		t.Fatalf("components not created: %+v", outs)
	}
	outs, err = svc.Apply(ctx, "shop",
		diagram.EditComponent{ComponentID: db, Name: "Orders", Sensitivity: diagram.SensitivityHigh},
		diagram.ClickAnchor{ComponentID: user, Anchor: diagram.AnchorRight},
		diagram.ClickAnchor{ComponentID: db, Anchor: diagram.AnchorLeft},
		diagram.ChooseProtocol{Protocol: "TCP"},
	)
	if err != nil {
		t.Fatalf("Apply connect failed: %v", err)
	}
	if outs[3].Created == "" {
		t.Fatalf("connection not created: %+v", outs[3])
	}
	return user, db
}

func TestCreateApplyAndReload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	buildShop(t, svc)

	if _, err := svc.Create(ctx, "shop", "again"); !errors.Is(err, sharedErrors.ErrDiagramExists) {
		t.Fatalf("duplicate Create = %v, want ErrDiagramExists", err)
	}

	doc, err := svc.Get(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data.Name != "Shop" || len(doc.Data.Components) != 2 || len(doc.Data.DataFlows) != 1 {
		t.Fatalf("unexpected stored diagram: %+v", doc.Data)
	}
	if doc.Data.DataFlows[0].DataType == "" {
		t.Fatal("data type should be derived from the protocol")
	}
	if doc.Canvas != testCanvas {
		t.Fatalf("canvas = %+v", doc.Canvas)
	}
}

func TestSessionDirtyTracking(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	buildShop(t, svc)

	sess, err := svc.Open(ctx, "shop", nil)
	if err != nil {
		t.Fatal(err)
	}
	sess.Dispatch(diagram.ClickCanvas{})
	if sess.Dirty() {
		t.Fatal("clicking the canvas should not dirty the session")
	}
	sess.Dispatch(diagram.RunAutoLayout{})
	if !sess.Dirty() {
		t.Fatal("auto layout should dirty the session")
	}
	if err := svc.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if sess.Dirty() {
		t.Fatal("save should clear the dirty flag")
	}

	// Without a confirmer destructive actions are declined.
	first := sess.Snapshot().Components[0].ID
	sess.Dispatch(diagram.Select{ComponentID: first})
	sess.Dispatch(diagram.DeleteSelected{})
	if len(sess.Snapshot().Components) != 2 {
		t.Fatal("delete should have been declined")
	}
}

func TestExportFormats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	buildShop(t, svc)

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, `"data_flows"`},
		{FormatYAML, "canvas:"},
		{FormatMermaid, "flowchart LR"},
		{FormatSVG, "<svg"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := svc.Export(ctx, "shop", tt.format, &buf); err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("%s export missing %q:\n%s", tt.format, tt.want, buf.String())
			}
		})
	}

	if err := svc.Export(ctx, "shop", "pdf", &bytes.Buffer{}); !errors.Is(err, sharedErrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestImportRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	buildShop(t, svc)

	original, err := svc.Get(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		if err := svc.Export(ctx, "shop", format, &buf); err != nil {
			t.Fatal(err)
		}
		id := "copy-" + string(format)
		doc, err := svc.Import(ctx, id, format, &buf)
		if err != nil {
			t.Fatalf("Import %s failed: %v", format, err)
		}
		if diff := cmp.Diff(original.Data, doc.Data); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", format, diff)
		}
	}

	bad := `{"name": "x", "components": [{"id": "a", "type": "user"}], "data_flows": [{"id": "f", "sourceId": "a", "destinationId": "ghost", "protocol": "TCP"}]}`
	if _, err := svc.Import(ctx, "bad", FormatJSON, strings.NewReader(bad)); !errors.Is(err, sharedErrors.ErrDanglingConnection) {
		t.Fatalf("expected ErrDanglingConnection, got %v", err)
	}
}

func TestValidateReviewAnalyze(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "empty", "Empty"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Validate(ctx, "empty"); !errors.Is(err, sharedErrors.ErrNoComponents) {
		t.Fatalf("Validate(empty) = %v", err)
	}

	buildShop(t, svc)
	if err := svc.Validate(ctx, "shop"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	findings, err := svc.Review(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) == 0 {
		t.Fatal("plain TCP to a database should produce findings")
	}

	rep, err := svc.Analyze(ctx, "shop")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !rep.Local() || rep.Target != "Shop" {
		t.Fatalf("unexpected report: %+v", rep)
	}

	if _, err := svc.Analyze(ctx, "missing"); !errors.Is(err, sharedErrors.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, ".yml": FormatYAML, "MMD": FormatMermaid, "svg": FormatSVG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Fatal("expected error for png")
	}
}
