// Package render turns analysis results into terminal text, JSON, HTML and
// diagram exports.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unsupported format %q (use text, json or html)", s)
}

// Write renders v in the requested format.
func Write(w io.Writer, format Format, tool assessment.Tool, v any) error {
	switch format {
	case FormatJSON:
		return JSON(w, v)
	case FormatHTML:
		page, err := NewPage(tool, v)
		if err != nil {
			return err
		}
		return HTML(w, page)
	default:
		return Text(w, v)
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
