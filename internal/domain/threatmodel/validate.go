package threatmodel

import (
	"fmt"
	"slices"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/domain/diagram"
	sharedErrors "github.com/khanhnv2901/seca-suite/internal/shared/errors"
)

// Validate checks that a system is ready to be sent for analysis.
func Validate(data diagram.SystemData) error {
	if strings.TrimSpace(data.Name) == "" {
		return sharedErrors.ErrEmptySystemName
	}
	if len(data.Components) == 0 {
		return sharedErrors.ErrNoComponents
	}
	if data.Type != "" && !slices.Contains(diagram.SystemTypes, data.Type) {
		return fmt.Errorf("%w: %s", sharedErrors.ErrUnknownSystemType, data.Type)
	}
	if data.AnalysisScope != "" && !slices.Contains(diagram.Scopes, data.AnalysisScope) {
		return fmt.Errorf("%w: unknown analysis scope %s", sharedErrors.ErrInvalidInput, data.AnalysisScope)
	}
	for _, c := range data.Components {
		if _, ok := diagram.LookupComponentKind(c.Type); !ok {
			return fmt.Errorf("%w: %s", sharedErrors.ErrUnknownComponentType, c.Type)
		}
	}
	for _, tag := range data.Methodologies {
		if GetMethodology(tag) == nil {
			return fmt.Errorf("%w: %s", sharedErrors.ErrUnknownMethodology, tag)
		}
	}
	for _, tag := range data.Frameworks {
		if GetFramework(tag) == nil {
			return fmt.Errorf("%w: %s", sharedErrors.ErrUnknownFramework, tag)
		}
	}
	return nil
}

// Normalize returns a copy with canonical methodology and framework ids and
// the default type and scope filled in.
func Normalize(data diagram.SystemData) diagram.SystemData {
	out := data
	if out.Type == "" {
		out.Type = diagram.SystemWebApplication
	}
	if out.AnalysisScope == "" {
		out.AnalysisScope = diagram.ScopeComprehensive
	}
	out.Methodologies = canonicalAll(data.Methodologies)
	out.Frameworks = canonicalAll(data.Frameworks)
	if len(out.Methodologies) == 0 {
		out.Methodologies = []string{"stride"}
	}
	return out
}

func canonicalAll(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		id := Canonical(t)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
