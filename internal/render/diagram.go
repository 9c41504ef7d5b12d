package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
)

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}" font-family="sans-serif">
<defs><marker id="arrow" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="#52606d"/></marker></defs>
<rect width="100%" height="100%" fill="#fafbfc"/>
{{range .Flows}}<g class="flow" id="{{.ID}}"><path d="{{.Path}}" fill="none" stroke="{{.Stroke}}" stroke-width="2"{{if not .Encrypted}} stroke-dasharray="6 4"{{end}} marker-end="url(#arrow)"/>
<text x="{{.LabelX}}" y="{{.LabelY}}" font-size="11" text-anchor="middle" fill="#323f4b">{{.Protocol}}</text></g>
{{end}}{{range .Nodes}}<g class="component" id="{{.ID}}"><rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" rx="8" fill="#ffffff" stroke="{{.Stroke}}" stroke-width="2"/>
<text x="{{.CX}}" y="{{.GlyphY}}" font-size="11" text-anchor="middle" fill="#7b8794">{{.Glyph}}</text>
<text x="{{.CX}}" y="{{.NameY}}" font-size="13" text-anchor="middle" fill="#1f2933">{{.Name}}</text></g>
{{end}}</svg>
`

var svgTmpl = template.Must(template.New("diagram.svg").Parse(svgTemplate))

type svgNode struct {
	ID, Name, Glyph, Stroke string
	X, Y, W, H              string
	CX, GlyphY, NameY       string
}

type svgFlow struct {
	ID, Path, Protocol, Stroke string
	LabelX, LabelY             string
	Encrypted                  bool
}

var sensitivityStroke = map[diagram.Sensitivity]string{
	diagram.SensitivityLow:    "#3f9142",
	diagram.SensitivityMedium: "#de911d",
	diagram.SensitivityHigh:   "#d64545",
}

// SVG draws the diagram as it appears on the canvas. Unencrypted flows are dashed.
func SVG(w io.Writer, data diagram.SystemData, canvas diagram.Canvas) error {
	byID := make(map[string]diagram.Component, len(data.Components))
	nodes := make([]svgNode, 0, len(data.Components))
	for _, c := range data.Components {
		byID[c.ID] = c
		glyph := strings.ToUpper(string(c.Type))
		if k, ok := diagram.LookupComponentKind(c.Type); ok {
			glyph = k.Glyph
		}
		stroke, ok := sensitivityStroke[c.Sensitivity]
		if !ok {
			stroke = "#9aa5b1"
		}
		nodes = append(nodes, svgNode{
			ID: c.ID, Name: c.Name, Glyph: glyph, Stroke: stroke,
			X: px(c.Position.X), Y: px(c.Position.Y), W: px(diagram.NodeWidth), H: px(diagram.NodeHeight),
			CX:     px(c.Position.X + diagram.NodeWidth/2),
			GlyphY: px(c.Position.Y + 24),
			NameY:  px(c.Position.Y + 48),
		})
	}

	flows := make([]svgFlow, 0, len(data.DataFlows))
	for _, f := range data.DataFlows {
		src, okSrc := byID[f.SourceID]
		dst, okDst := byID[f.DestinationID]
		if !okSrc || !okDst {
			continue
		}
		curve := diagram.BezierBetween(
			diagram.AnchorPoint(src.Position, f.SourcePosition),
			diagram.AnchorPoint(dst.Position, f.DestinationPosition),
		)
		enc := diagram.IsEncrypted(f.Protocol)
		stroke := "#52606d"
		if !enc {
			stroke = "#d64545"
		}
		flows = append(flows, svgFlow{
			ID: f.ID, Path: curve.SVGPath(), Protocol: f.Protocol, Stroke: stroke, Encrypted: enc,
			LabelX: px(curve.Label.X), LabelY: px(curve.Label.Y - 6),
		})
	}

	return svgTmpl.Execute(w, struct {
		Width, Height string
		Nodes         []svgNode
		Flows         []svgFlow
	}{px(canvas.Width), px(canvas.Height), nodes, flows})
}

func px(v float64) string {
	return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", v), "0"), ".")
}

var mermaidUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Mermaid renders the diagram as a left-to-right flowchart.
func Mermaid(data diagram.SystemData) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	ids := make(map[string]string, len(data.Components))
	for _, c := range data.Components {
		id := "n_" + mermaidUnsafe.ReplaceAllString(c.ID, "_")
		ids[c.ID] = id
		fmt.Fprintf(&b, "    %s[\"%s<br/><small>%s</small>\"]\n", id, mermaidText(c.Name), mermaidText(c.Type.Label()))
	}
	for _, f := range data.DataFlows {
		src, okSrc := ids[f.SourceID]
		dst, okDst := ids[f.DestinationID]
		if !okSrc || !okDst {
			continue
		}
		arrow := "-->"
		if !diagram.IsEncrypted(f.Protocol) {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "    %s %s|%s| %s\n", src, arrow, mermaidText(f.Protocol), dst)
	}
	for _, c := range data.Components {
		if c.Sensitivity == diagram.SensitivityHigh {
			fmt.Fprintf(&b, "    style %s stroke:#d64545,stroke-width:2px\n", ids[c.ID])
		}
	}
	return b.String()
}

func mermaidText(s string) string {
	r := strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", " ")
	return r.Replace(s)
}

// yamlDocument is the on-disk YAML shape of an exported diagram.
type yamlDocument struct {
	Canvas diagram.Canvas     `yaml:"canvas"`
	System diagram.SystemData `yaml:"system"`
}

// YAML encodes a diagram for export.
func YAML(data diagram.SystemData, canvas diagram.Canvas) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{Canvas: canvas, System: data}); err != nil {
		return nil, fmt.Errorf("encoding diagram: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseYAML decodes a diagram exported by YAML. A zero canvas is returned
// when the file has none.
func ParseYAML(b []byte) (diagram.SystemData, diagram.Canvas, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return diagram.SystemData{}, diagram.Canvas{}, fmt.Errorf("decoding diagram: %w", err)
	}
	return doc.System, doc.Canvas, nil
}
