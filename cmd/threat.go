package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	threatmodelapp "github.com/khanhnv2901/seca-suite/internal/application/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/application/tools"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	"github.com/khanhnv2901/seca-suite/internal/domain/threatmodel"
	"github.com/khanhnv2901/seca-suite/internal/render"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

const maxDiagramBytes = 5 << 20

// threatCmd is the parent command for threat-model diagrams
var threatCmd = &cobra.Command{
	Use:   "threat",
	Short: "Threat-modeling diagrams",
	Long: `Create and edit system diagrams, export them and send them for threat analysis.

Components can be referenced by id or by their unique name.`,
}

var threatNewCmd = &cobra.Command{
	Use:   "new <diagram-id>",
	Short: "Create an empty diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		sess, err := svc.Create(commandContext(cmd), id, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s created diagram %s (%s)\n", colorSuccess("✓"), sess.ID(), sess.Snapshot().Name)
		return nil
	},
}

var threatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved diagrams",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		docs, err := svc.List(commandContext(cmd))
		if err != nil {
			return err
		}
		if getAppContext(cmd).Config.Format == render.FormatJSON {
			return render.JSON(cmd.OutOrStdout(), diagramSummaries(docs))
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No diagrams yet. Create one with `seca-suite threat new <id>`.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tComponents\tFlows\tUpdated")
		fmt.Fprintln(w, "--\t----\t----------\t-----\t-------")
		for _, s := range diagramSummaries(docs) {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.Name, s.Components, s.Flows, s.Updated)
		}
		return w.Flush()
	},
}

var threatShowCmd = &cobra.Command{
	Use:   "show <diagram-id>",
	Short: "Show the components and data flows of a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		if getAppContext(cmd).Config.Format == render.FormatJSON {
			return render.JSON(cmd.OutOrStdout(), doc.Data)
		}
		printDiagram(cmd.OutOrStdout(), doc)
		return nil
	},
}

var threatAddCmd = &cobra.Command{
	Use:   "add <diagram-id>",
	Short: "Add a component",
	Example: `  seca-suite threat add shop --type database --name orders --x 400 --y 120
  seca-suite threat add shop --list-types`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listTypes, _ := cmd.Flags().GetBool("list-types"); listTypes {
			printComponentKinds(cmd.OutOrStdout())
			return nil
		}
		if len(args) != 1 {
			return &InputError{Reason: "a diagram id is required"}
		}
		ctype, _ := cmd.Flags().GetString("type")
		if ctype == "" {
			return &InputError{Flag: "type", Reason: "required (see --list-types)"}
		}
		name, _ := cmd.Flags().GetString("name")
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("x") && !cmd.Flags().Changed("y") {
			c := svc.Canvas().Center()
			x, y = c.X-diagram.NodeWidth/2, c.Y-diagram.NodeHeight/2
		}
		return applyActions(cmd, svc, args[0], diagram.AddComponent{
			Type: diagram.ComponentType(strings.ToLower(ctype)),
			Name: name,
			X:    x,
			Y:    y,
		})
	},
}

var threatConnectCmd = &cobra.Command{
	Use:   "connect <diagram-id> <from> <to>",
	Short: "Connect two components with a protocol-tagged data flow",
	Example: `  seca-suite threat connect shop web orders --protocol SQL
  seca-suite threat connect shop web orders --from-anchor bottom --to-anchor top --protocol "Custom RPC"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol, _ := cmd.Flags().GetString("protocol")
		if strings.TrimSpace(protocol) == "" {
			return &InputError{Flag: "protocol", Reason: "required"}
		}
		fromAnchor, err := anchorFlag(cmd, "from-anchor")
		if err != nil {
			return err
		}
		toAnchor, err := anchorFlag(cmd, "to-anchor")
		if err != nil {
			return err
		}

		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		from, err := resolveComponent(doc.Data, args[1])
		if err != nil {
			return err
		}
		to, err := resolveComponent(doc.Data, args[2])
		if err != nil {
			return err
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		return applyActions(cmd, svc, doc.ID,
			diagram.ClickAnchor{ComponentID: from.ID, Anchor: fromAnchor},
			diagram.ClickAnchor{ComponentID: to.ID, Anchor: toAnchor},
			protocolChoice(protocol),
		)
	},
}

var threatMoveCmd = &cobra.Command{
	Use:   "move <diagram-id> <component>",
	Short: "Move a component to a new position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("x") && !cmd.Flags().Changed("y") {
			return &InputError{Reason: "specify --x, --y or both"}
		}
		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		c, err := resolveComponent(doc.Data, args[1])
		if err != nil {
			return err
		}
		x, y := c.Position.X, c.Position.Y
		if cmd.Flags().Changed("x") {
			x, _ = cmd.Flags().GetFloat64("x")
		}
		if cmd.Flags().Changed("y") {
			y, _ = cmd.Flags().GetFloat64("y")
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		// A drag grabbed at the top-left corner lands the corner on the pointer.
		return applyActions(cmd, svc, doc.ID,
			diagram.PointerDown{ComponentID: c.ID, X: c.Position.X, Y: c.Position.Y},
			diagram.PointerMove{X: x, Y: y},
			diagram.PointerUp{},
		)
	},
}

var threatUpdateCmd = &cobra.Command{
	Use:   "update <diagram-id> <component>",
	Short: "Change the name, sensitivity or description of a component",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		c, err := resolveComponent(doc.Data, args[1])
		if err != nil {
			return err
		}
		act := diagram.EditComponent{ComponentID: c.ID, Name: c.Name, Sensitivity: c.Sensitivity, Description: c.Description}
		if cmd.Flags().Changed("name") {
			act.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("sensitivity") {
			s, _ := cmd.Flags().GetString("sensitivity")
			act.Sensitivity = diagram.ParseSensitivity(s)
		}
		if cmd.Flags().Changed("description") {
			act.Description, _ = cmd.Flags().GetString("description")
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		return applyActions(cmd, svc, doc.ID, act)
	},
}

var threatDeleteCmd = &cobra.Command{
	Use:   "delete <diagram-id> <component>",
	Short: "Delete a component and its data flows",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		c, err := resolveComponent(doc.Data, args[1])
		if err != nil {
			return err
		}
		incident := 0
		for _, f := range doc.Data.DataFlows {
			if f.SourceID == c.ID || f.DestinationID == c.ID {
				incident++
			}
		}
		prompt := fmt.Sprintf("Delete %q", c.Name)
		if incident > 0 {
			prompt = fmt.Sprintf("Delete %q and its %d connection(s)", c.Name, incident)
		}
		if err := confirmAction(cmd, prompt); err != nil {
			return err
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		return applyActions(cmd, svc, doc.ID, diagram.Select{ComponentID: c.ID}, diagram.DeleteSelected{})
	},
}

var threatDisconnectCmd = &cobra.Command{
	Use:   "disconnect <diagram-id> <connection-id>",
	Short: "Delete a data flow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDiagram(cmd, args[0])
		if err != nil {
			return err
		}
		var flow *diagram.Connection
		for i := range doc.Data.DataFlows {
			if doc.Data.DataFlows[i].ID == args[1] {
				flow = &doc.Data.DataFlows[i]
				break
			}
		}
		if flow == nil {
			return fmt.Errorf("%w: %s", sharedErrors.ErrConnectionNotFound, args[1])
		}
		if err := confirmAction(cmd, fmt.Sprintf("Delete %s connection %s", flow.Protocol, flow.ID)); err != nil {
			return err
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		return applyActions(cmd, svc, doc.ID, diagram.DeleteConnection{ConnectionID: flow.ID})
	},
}

var threatLayoutCmd = &cobra.Command{
	Use:   "layout <diagram-id>",
	Short: "Arrange all components on a circle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateDiagramID(args[0]); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		return applyActions(cmd, svc, args[0], diagram.RunAutoLayout{})
	},
}

var threatConfigureCmd = &cobra.Command{
	Use:   "configure <diagram-id>",
	Short: "Set the system name, type, scope, methodologies and frameworks",
	Example: `  seca-suite threat configure shop --type api_service --scope data_flow
  seca-suite threat configure shop --methodologies stride,pasta --frameworks pci_dss,gdpr`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		meta, err := metadataFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := applyActions(cmd, svc, id, meta); err != nil {
			return err
		}
		doc, err := svc.Get(commandContext(cmd), id)
		if err != nil {
			return diagramError(id, err)
		}
		data := doc.Data
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s, scope %s\n", colorSuccess("✓"), data.Name, data.Type, data.AnalysisScope)
		return nil
	},
}

var threatExportCmd = &cobra.Command{
	Use:   "export <diagram-id>",
	Short: "Export a diagram as JSON, YAML, Mermaid or SVG",
	Long: `Writes to stdout or --output. Without --as the format is taken from the
output file extension, defaulting to JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		cfg := getAppContext(cmd).Config
		as, _ := cmd.Flags().GetString("as")
		if as == "" {
			as = string(threatmodelapp.FormatJSON)
			if ext := filepath.Ext(cfg.Output); ext != "" {
				as = ext
			}
		}
		format, err := threatmodelapp.ParseFormat(as)
		if err != nil {
			return &InputError{Flag: "as", Reason: err.Error()}
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		w, closeFn, err := openOutput(cmd.OutOrStdout(), cfg.Output, cfg.Force)
		if err != nil {
			return err
		}
		if err := svc.Export(commandContext(cmd), id, format, w); err != nil {
			_ = closeFn()
			return diagramError(id, err)
		}
		return closeFn()
	},
}

var threatImportCmd = &cobra.Command{
	Use:   "import <diagram-id> <file>",
	Short: "Import a diagram from JSON or YAML, replacing any diagram with the same id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, path := args[0], args[1]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		as, _ := cmd.Flags().GetString("as")
		if as == "" {
			as = filepath.Ext(path)
		}
		format, err := threatmodelapp.ParseFormat(as)
		if err != nil {
			return &InputError{Flag: "as", Reason: err.Error()}
		}
		data, err := readInputFile("file", path, maxDiagramBytes)
		if err != nil {
			return err
		}

		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		ctx := commandContext(cmd)
		if exists, _ := svc.Get(ctx, id); exists != nil {
			if err := confirmAction(cmd, fmt.Sprintf("Replace diagram %s", id)); err != nil {
				return err
			}
		}
		doc, err := svc.Import(ctx, id, format, strings.NewReader(string(data)))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s imported %s: %d components, %d data flows\n",
			colorSuccess("✓"), doc.ID, len(doc.Data.Components), len(doc.Data.DataFlows))
		return nil
	},
}

var threatRemoveCmd = &cobra.Command{
	Use:   "remove <diagram-id>",
	Short: "Delete a saved diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		if err := confirmAction(cmd, fmt.Sprintf("Delete diagram %s", id)); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		if err := svc.Delete(commandContext(cmd), id); err != nil {
			return diagramError(id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted diagram %s\n", colorSuccess("✓"), id)
		return nil
	},
}

var threatValidateCmd = &cobra.Command{
	Use:   "validate <diagram-id>",
	Short: "Check that a diagram is ready for analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		if err := svc.Validate(commandContext(cmd), id); err != nil {
			return diagramError(id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s diagram %s is ready for analysis\n", colorSuccess("✓"), id)
		return nil
	},
}

var threatReviewCmd = &cobra.Command{
	Use:   "review <diagram-id>",
	Short: "Run the offline structural review of a diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		findings, err := svc.Review(commandContext(cmd), id)
		if err != nil {
			return diagramError(id, err)
		}
		if findings == nil {
			findings = []threatmodel.Finding{}
		}
		return writeValue(cmd, assessment.ToolThreatModel, findings)
	},
}

var threatAnalyzeCmd = &cobra.Command{
	Use:   "analyze <diagram-id>",
	Short: "Send a diagram for threat analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if err := validateDiagramID(id); err != nil {
			return err
		}
		svc, err := threatService(cmd)
		if err != nil {
			return err
		}
		rep, err := runWithSpinner(cmd, assessment.ToolThreatModel, func() (*tools.Report, error) {
			return svc.Analyze(commandContext(cmd), id)
		})
		if err != nil {
			return diagramError(id, err)
		}
		return writeReport(cmd, rep)
	},
}

func threatService(cmd *cobra.Command) (*threatmodelapp.Service, error) {
	services, err := getAppContext(cmd).Services()
	if err != nil {
		return nil, err
	}
	return services.Diagrams, nil
}

func loadDiagram(cmd *cobra.Command, id string) (*diagram.Document, error) {
	if err := validateDiagramID(id); err != nil {
		return nil, err
	}
	svc, err := threatService(cmd)
	if err != nil {
		return nil, err
	}
	doc, err := svc.Get(commandContext(cmd), id)
	if err != nil {
		return nil, diagramError(id, err)
	}
	return doc, nil
}

// applyActions dispatches the actions against a stored diagram and prints the
// notices. A run that changed nothing but raised a warning is a failure.
func applyActions(cmd *cobra.Command, svc *threatmodelapp.Service, id string, actions ...diagram.Action) error {
	outcomes, err := svc.Apply(commandContext(cmd), id, actions...)
	if err != nil {
		return diagramError(id, err)
	}
	changed := false
	var warning string
	for _, out := range outcomes {
		changed = changed || out.Changed
		for _, n := range out.Notices {
			if n.Level == diagram.NoticeWarning || n.Level == diagram.NoticeError {
				warning = n.Message
			}
			printNotice(cmd.ErrOrStderr(), n)
		}
		if out.Created != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out.Created)
		}
	}
	if !changed && warning != "" {
		return errors.New(warning)
	}
	return nil
}

func printNotice(w io.Writer, n diagram.Notice) {
	switch n.Level {
	case diagram.NoticeSuccess:
		fmt.Fprintf(w, "%s %s\n", colorSuccess("✓"), n.Message)
	case diagram.NoticeWarning, diagram.NoticeError:
		fmt.Fprintf(w, "%s %s\n", colorWarn("⚠"), n.Message)
	default:
		fmt.Fprintf(w, "%s %s\n", colorInfo("ℹ"), n.Message)
	}
}

// resolveComponent finds a component by id, then by case-insensitive name.
func resolveComponent(data diagram.SystemData, ref string) (diagram.Component, error) {
	for _, c := range data.Components {
		if c.ID == ref {
			return c, nil
		}
	}
	var matches []diagram.Component
	for _, c := range data.Components {
		if strings.EqualFold(c.Name, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return diagram.Component{}, fmt.Errorf("%w: %s", sharedErrors.ErrComponentNotFound, ref)
	}
	ids := make([]string, len(matches))
	for i, c := range matches {
		ids[i] = c.ID
	}
	return diagram.Component{}, &InputError{Reason: fmt.Sprintf("%q matches several components (%s); use an id", ref, strings.Join(ids, ", "))}
}

func anchorFlag(cmd *cobra.Command, name string) (diagram.Anchor, error) {
	v, _ := cmd.Flags().GetString(name)
	a := diagram.Anchor(strings.ToLower(strings.TrimSpace(v)))
	if !a.Valid() {
		return "", &InputError{Flag: name, Reason: "must be top, right, bottom or left"}
	}
	return a, nil
}

// protocolChoice picks the catalog entry when the protocol is known and the
// custom entry otherwise.
func protocolChoice(protocol string) diagram.ChooseProtocol {
	protocol = strings.TrimSpace(protocol)
	for _, p := range diagram.Protocols() {
		if p != diagram.CustomProtocol && strings.EqualFold(p, protocol) {
			return diagram.ChooseProtocol{Protocol: p}
		}
	}
	return diagram.ChooseProtocol{Protocol: diagram.CustomProtocol, Custom: protocol}
}

func metadataFromFlags(cmd *cobra.Command) (diagram.SetMetadata, error) {
	var meta diagram.SetMetadata
	flags := cmd.Flags()
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		if strings.TrimSpace(name) == "" {
			return meta, &InputError{Flag: "name", Reason: "cannot be empty"}
		}
		meta.Name = name
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		meta.Type = diagram.SystemType(strings.ToLower(v))
		if !containsType(diagram.SystemTypes, meta.Type) {
			return meta, &InputError{Flag: "type", Reason: fmt.Sprintf("unknown system type %q", v)}
		}
	}
	if flags.Changed("scope") {
		v, _ := flags.GetString("scope")
		meta.AnalysisScope = diagram.Scope(strings.ToLower(v))
		if !containsType(diagram.Scopes, meta.AnalysisScope) {
			return meta, &InputError{Flag: "scope", Reason: fmt.Sprintf("unknown analysis scope %q", v)}
		}
	}
	if flags.Changed("methodologies") {
		tags, _ := flags.GetStringSlice("methodologies")
		for _, tag := range tags {
			if threatmodel.GetMethodology(tag) == nil {
				return meta, &InputError{Flag: "methodologies", Reason: fmt.Sprintf("unknown methodology %q", tag)}
			}
		}
		meta.Methodologies = canonicalTags(tags)
	}
	if flags.Changed("frameworks") {
		tags, _ := flags.GetStringSlice("frameworks")
		for _, tag := range tags {
			if threatmodel.GetFramework(tag) == nil {
				return meta, &InputError{Flag: "frameworks", Reason: fmt.Sprintf("unknown framework %q", tag)}
			}
		}
		meta.Frameworks = canonicalTags(tags)
	}
	return meta, nil
}

func containsType[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func canonicalTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, threatmodel.Canonical(t))
	}
	return out
}

// confirmAction asks before a destructive change. --yes skips the prompt;
// without a terminal the flag is required.
func confirmAction(cmd *cobra.Command, label string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}
	if !isTerminal(os.Stdin) {
		return &InputError{Flag: "yes", Reason: "required to confirm without a terminal"}
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		return errors.New("aborted")
	}
	return nil
}

type diagramSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Components int    `json:"components"`
	Flows      int    `json:"data_flows"`
	Updated    string `json:"updated_at"`
}

func diagramSummaries(docs []*diagram.Document) []diagramSummary {
	out := make([]diagramSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, diagramSummary{
			ID:         d.ID,
			Name:       d.Data.Name,
			Components: len(d.Data.Components),
			Flows:      len(d.Data.DataFlows),
			Updated:    d.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return out
}

func printDiagram(w io.Writer, doc *diagram.Document) {
	data := doc.Data
	fmt.Fprintf(w, "%s  %s\n", colorInfo(data.Name), colorMuted(doc.ID))
	fmt.Fprintf(w, "Type: %s   Scope: %s   Canvas: %.0fx%.0f\n", data.Type, data.AnalysisScope, doc.Canvas.Width, doc.Canvas.Height)
	if len(data.Methodologies) > 0 {
		fmt.Fprintf(w, "Methodologies: %s\n", strings.Join(data.Methodologies, ", "))
	}
	if len(data.Frameworks) > 0 {
		fmt.Fprintf(w, "Frameworks: %s\n", strings.Join(data.Frameworks, ", "))
	}

	names := make(map[string]string, len(data.Components))
	fmt.Fprintf(w, "\nComponents (%d)\n", len(data.Components))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tType\tSensitivity\tPosition")
	for _, c := range data.Components {
		names[c.ID] = c.Name
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f,%.0f\n", c.ID, c.Name, c.Type.Label(), c.Sensitivity, c.Position.X, c.Position.Y)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nData flows (%d)\n", len(data.DataFlows))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFrom\tTo\tProtocol\tData")
	for _, f := range data.DataFlows {
		protocol := f.Protocol
		if !diagram.IsEncrypted(f.Protocol) {
			protocol = colorWarn(protocol)
		}
		fmt.Fprintf(tw, "%s\t%s.%s\t%s.%s\t%s\t%s\n", f.ID, names[f.SourceID], f.SourcePosition, names[f.DestinationID], f.DestinationPosition, protocol, f.DataType)
	}
	_ = tw.Flush()
}

func printComponentKinds(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Type\tLabel\tGroup")
	for _, k := range diagram.ComponentKinds() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Type, k.Label, k.Group)
	}
	_ = tw.Flush()
}

func init() {
	threatNewCmd.Flags().String("name", "", "system name (defaults to the id)")

	threatAddCmd.Flags().String("type", "", "component type")
	threatAddCmd.Flags().String("name", "", "component name (defaults to the type label)")
	threatAddCmd.Flags().Float64("x", 0, "left edge in pixels")
	threatAddCmd.Flags().Float64("y", 0, "top edge in pixels")
	threatAddCmd.Flags().Bool("list-types", false, "list the component types and exit")

	threatConnectCmd.Flags().String("protocol", "", "protocol carried by the data flow")
	threatConnectCmd.Flags().String("from-anchor", string(diagram.AnchorRight), "connection point on the source")
	threatConnectCmd.Flags().String("to-anchor", string(diagram.AnchorLeft), "connection point on the destination")

	threatMoveCmd.Flags().Float64("x", 0, "new left edge in pixels")
	threatMoveCmd.Flags().Float64("y", 0, "new top edge in pixels")

	threatUpdateCmd.Flags().String("name", "", "component name")
	threatUpdateCmd.Flags().String("sensitivity", "", "data sensitivity: low, medium or high")
	threatUpdateCmd.Flags().String("description", "", "free-form description")

	threatConfigureCmd.Flags().String("name", "", "system name")
	threatConfigureCmd.Flags().String("type", "", "system type")
	threatConfigureCmd.Flags().String("scope", "", "analysis scope")
	threatConfigureCmd.Flags().StringSlice("methodologies", nil, "threat-modeling methodologies (stride, pasta, linddun, ...)")
	threatConfigureCmd.Flags().StringSlice("frameworks", nil, "compliance frameworks (pci_dss, gdpr, ...)")

	threatExportCmd.Flags().String("as", "", "json, yaml, mermaid or svg")
	threatImportCmd.Flags().String("as", "", "json or yaml (default from the file extension)")

	for _, c := range []*cobra.Command{threatDeleteCmd, threatDisconnectCmd, threatImportCmd, threatRemoveCmd} {
		c.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	}

	threatCmd.AddCommand(
		threatNewCmd, threatListCmd, threatShowCmd, threatAddCmd, threatConnectCmd,
		threatMoveCmd, threatUpdateCmd, threatDeleteCmd, threatDisconnectCmd, threatLayoutCmd,
		threatConfigureCmd, threatExportCmd, threatImportCmd, threatRemoveCmd,
		threatValidateCmd, threatReviewCmd, threatAnalyzeCmd,
	)
	rootCmd.AddCommand(threatCmd)
}
