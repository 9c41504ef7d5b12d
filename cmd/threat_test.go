package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

func TestThreatCommandFlow(t *testing.T) {
	dir := t.TempDir()

	out := mustRunCLI(t, dir, "threat", "new", "shop", "--name", "Web Shop")
	if !strings.Contains(out, "created diagram shop (Web Shop)") {
		t.Fatalf("unexpected new output: %q", out)
	}
	if _, stderr, err := runCLI(t, dir, "", "threat", "new", "shop"); err == nil {
		t.Fatalf("creating a duplicate diagram should fail, stderr: %s", stderr)
	}

	webID := strings.TrimSpace(mustRunCLI(t, dir, "threat", "add", "shop", "--type", "web_server", "--name", "web", "--x", "100", "--y", "100"))
	dbID := strings.TrimSpace(mustRunCLI(t, dir, "threat", "add", "shop", "--type", "database", "--name", "orders", "--x", "500", "--y", "100"))
	if webID == "" || dbID == "" || webID == dbID {
		t.Fatalf("expected two distinct component ids, got %q and %q", webID, dbID)
	}

	flowID := strings.TrimSpace(mustRunCLI(t, dir, "threat", "connect", "shop", "WEB", "orders", "--protocol", "sql"))
	if flowID == "" {
		t.Fatal("connect did not print the new connection id")
	}

	var data diagram.SystemData
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "threat", "show", "shop")), &data); err != nil {
		t.Fatalf("show --format json: %v", err)
	}
	if len(data.Components) != 2 || len(data.DataFlows) != 1 {
		t.Fatalf("unexpected diagram: %+v", data)
	}
	want := diagram.Connection{
		ID:                  flowID,
		SourceID:            webID,
		DestinationID:       dbID,
		SourcePosition:      diagram.AnchorRight,
		DestinationPosition: diagram.AnchorLeft,
		Protocol:            "SQL",
		DataType:            "Database Queries",
	}
	if diff := cmp.Diff(want, data.DataFlows[0]); diff != "" {
		t.Fatalf("data flow mismatch (-want +got):\n%s", diff)
	}

	mustRunCLI(t, dir, "threat", "update", "shop", "orders", "--sensitivity", "high")
	mustRunCLI(t, dir, "threat", "configure", "shop", "--type", "web_application", "--methodologies", "stride")

	var findings []threatmodel.Finding
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "threat", "review", "shop")), &findings); err != nil {
		t.Fatalf("review --format json: %v", err)
	}
	if len(findings) == 0 {
		t.Fatal("an unencrypted SQL flow should produce a finding")
	}

	mermaid := mustRunCLI(t, dir, "threat", "export", "shop", "--as", "mermaid")
	if !strings.Contains(mermaid, "SQL") {
		t.Fatalf("mermaid export missing the flow:\n%s", mermaid)
	}

	exportPath := filepath.Join(dir, "shop.yaml")
	mustRunCLI(t, dir, "--output", exportPath, "threat", "export", "shop")
	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("export file not written: %v", err)
	}
	out = mustRunCLI(t, dir, "threat", "import", "shop-copy", exportPath)
	if !strings.Contains(out, "2 components, 1 data flows") {
		t.Fatalf("unexpected import output: %q", out)
	}

	list := mustRunCLI(t, dir, "threat", "list")
	if !strings.Contains(list, "shop-copy") || !strings.Contains(list, "Web Shop") {
		t.Fatalf("list missing diagrams:\n%s", list)
	}

	mustRunCLI(t, dir, "threat", "disconnect", "shop", flowID, "--yes")
	mustRunCLI(t, dir, "threat", "delete", "shop", "web", "--yes")
	if err := json.Unmarshal([]byte(mustRunCLI(t, dir, "--format", "json", "threat", "show", "shop")), &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Components) != 1 || len(data.DataFlows) != 0 {
		t.Fatalf("expected one component and no flows, got %+v", data)
	}

	mustRunCLI(t, dir, "threat", "remove", "shop-copy", "--yes")
	if _, _, err := runCLI(t, dir, "", "threat", "show", "shop-copy"); err == nil {
		t.Fatal("removed diagram should not be found")
	}
}

func TestThreatConnectRejectsUnknownComponent(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "threat", "new", "lab")
	mustRunCLI(t, dir, "threat", "add", "lab", "--type", "user", "--name", "alice")

	_, _, err := runCLI(t, dir, "", "threat", "connect", "lab", "alice", "ghost", "--protocol", "HTTPS")
	if !errors.Is(err, sharedErrors.ErrComponentNotFound) {
		t.Fatalf("error = %v, want ErrComponentNotFound", err)
	}
}

func TestThreatAddRequiresType(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "threat", "new", "lab")

	_, _, err := runCLI(t, dir, "", "threat", "add", "lab")
	var inputErr *InputError
	if !errors.As(err, &inputErr) || inputErr.Flag != "type" {
		t.Fatalf("error = %v, want an InputError for --type", err)
	}

	out := mustRunCLI(t, dir, "threat", "add", "--list-types")
	if !strings.Contains(out, "web_server") || !strings.Contains(out, "Secrets Vault") {
		t.Fatalf("list-types output incomplete:\n%s", out)
	}
}

func TestThreatRemoveNeedsConfirmation(t *testing.T) {
	if isTerminal(os.Stdin) {
		t.Skip("stdin is a terminal")
	}
	dir := t.TempDir()
	mustRunCLI(t, dir, "threat", "new", "lab")

	_, _, err := runCLI(t, dir, "", "threat", "remove", "lab")
	var inputErr *InputError
	if !errors.As(err, &inputErr) || inputErr.Flag != "yes" {
		t.Fatalf("error = %v, want an InputError for --yes", err)
	}
}

func TestThreatConfigureRejectsUnknownValues(t *testing.T) {
	dir := t.TempDir()
	mustRunCLI(t, dir, "threat", "new", "lab")

	tests := []struct {
		name string
		args []string
		flag string
	}{
		{"system type", []string{"--type", "mainframe"}, "type"},
		{"scope", []string{"--scope", "everything"}, "scope"},
		{"methodology", []string{"--methodologies", "stride,guesswork"}, "methodologies"},
		{"framework", []string{"--frameworks", "made_up"}, "frameworks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"threat", "configure", "lab"}, tt.args...)
			_, _, err := runCLI(t, dir, "", args...)
			var inputErr *InputError
			if !errors.As(err, &inputErr) || inputErr.Flag != tt.flag {
				t.Fatalf("error = %v, want an InputError for --%s", err, tt.flag)
			}
		})
	}
}

func TestResolveComponent(t *testing.T) {
	data := diagram.SystemData{Components: []diagram.Component{
		{ID: "comp_1", Name: "Web"},
		{ID: "comp_2", Name: "Orders"},
		{ID: "comp_3", Name: "orders"},
	}}

	got, err := resolveComponent(data, "comp_2")
	if err != nil || got.ID != "comp_2" {
		t.Fatalf("lookup by id: %+v, %v", got, err)
	}
	got, err = resolveComponent(data, "web")
	if err != nil || got.ID != "comp_1" {
		t.Fatalf("lookup by name: %+v, %v", got, err)
	}

	_, err = resolveComponent(data, "ORDERS")
	var inputErr *InputError
	if !errors.As(err, &inputErr) || !strings.Contains(inputErr.Reason, "comp_2, comp_3") {
		t.Fatalf("ambiguous name should list the candidates, got %v", err)
	}

	if _, err := resolveComponent(data, "cache"); !errors.Is(err, sharedErrors.ErrComponentNotFound) {
		t.Fatalf("error = %v, want ErrComponentNotFound", err)
	}
}

func TestProtocolChoice(t *testing.T) {
	tests := []struct {
		in   string
		want diagram.ChooseProtocol
	}{
		{"HTTPS", diagram.ChooseProtocol{Protocol: "HTTPS"}},
		{" grpc ", diagram.ChooseProtocol{Protocol: "gRPC"}},
		{"rest api", diagram.ChooseProtocol{Protocol: "REST API"}},
		{"Custom RPC", diagram.ChooseProtocol{Protocol: diagram.CustomProtocol, Custom: "Custom RPC"}},
		{"custom", diagram.ChooseProtocol{Protocol: diagram.CustomProtocol, Custom: "custom"}},
	}
	for _, tt := range tests {
		if got := protocolChoice(tt.in); got != tt.want {
			t.Errorf("protocolChoice(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
