package diagram

import (
	"fmt"
	"sort"
	"strings"
)

// SystemType is the archetype of the modeled system.
type SystemType string

const (
	SystemWebApplication      SystemType = "web_application"
	SystemMobileApplication   SystemType = "mobile_application"
	SystemAPIService          SystemType = "api_service"
	SystemCloudInfrastructure SystemType = "cloud_infrastructure"
	SystemIoT                 SystemType = "iot_system"
	SystemNetwork             SystemType = "network_infrastructure"
	SystemDesktop             SystemType = "desktop_application"
	SystemMicroservices       SystemType = "microservices"
	SystemDatabase            SystemType = "database_system"
	SystemEnterprise          SystemType = "enterprise_system"
)

// SystemTypes lists the supported archetypes.
var SystemTypes = []SystemType{
	SystemWebApplication, SystemMobileApplication, SystemAPIService, SystemCloudInfrastructure,
	SystemIoT, SystemNetwork, SystemDesktop, SystemMicroservices, SystemDatabase, SystemEnterprise,
}

// Scope controls how deep the backend analysis goes.
type Scope string

const (
	ScopeComprehensive  Scope = "comprehensive"
	ScopeArchitecture   Scope = "architecture"
	ScopeDataFlow       Scope = "data_flow"
	ScopeAuthentication Scope = "authentication"
	ScopeCompliance     Scope = "compliance"
	ScopeQuick          Scope = "quick"
)

// Scopes lists the supported analysis scopes.
var Scopes = []Scope{ScopeComprehensive, ScopeArchitecture, ScopeDataFlow, ScopeAuthentication, ScopeCompliance, ScopeQuick}

// SystemData is the whole editable model and the payload posted for analysis.
type SystemData struct {
	Name          string       `json:"name" yaml:"name"`
	Type          SystemType   `json:"type" yaml:"type"`
	AnalysisScope Scope        `json:"analysis_scope" yaml:"analysis_scope"`
	Components    []Component  `json:"components" yaml:"components"`
	DataFlows     []Connection `json:"data_flows" yaml:"data_flows"`
	Methodologies []string     `json:"methodologies" yaml:"methodologies"`
	Frameworks    []string     `json:"frameworks" yaml:"frameworks"`
}

// Model couples the graph with the system metadata.
type Model struct {
	Name          string
	Type          SystemType
	AnalysisScope Scope
	Graph         *Graph
	methodologies map[string]struct{}
	frameworks    map[string]struct{}
}

// NewModel returns an empty model, the state at page load.
func NewModel(name string, canvas Canvas) *Model {
	return &Model{
		Name:          name,
		Type:          SystemWebApplication,
		AnalysisScope: ScopeComprehensive,
		Graph:         NewGraph(canvas),
		methodologies: make(map[string]struct{}),
		frameworks:    make(map[string]struct{}),
	}
}

// SetMethodologies replaces the methodology tag set.
func (m *Model) SetMethodologies(tags []string) {
	m.methodologies = toSet(tags)
}

// SetFrameworks replaces the framework tag set.
func (m *Model) SetFrameworks(tags []string) {
	m.frameworks = toSet(tags)
}

// ToggleMethodology adds or removes a tag and reports whether it is now selected.
func (m *Model) ToggleMethodology(tag string) bool {
	return toggle(m.methodologies, tag)
}

// ToggleFramework adds or removes a tag and reports whether it is now selected.
func (m *Model) ToggleFramework(tag string) bool {
	return toggle(m.frameworks, tag)
}

// Methodologies returns the selected methodology tags, sorted.
func (m *Model) Methodologies() []string {
	return fromSet(m.methodologies)
}

// Frameworks returns the selected framework tags, sorted.
func (m *Model) Frameworks() []string {
	return fromSet(m.frameworks)
}

// Snapshot serializes the model into SystemData.
func (m *Model) Snapshot() SystemData {
	return SystemData{
		Name:          m.Name,
		Type:          m.Type,
		AnalysisScope: m.AnalysisScope,
		Components:    m.Graph.Components(),
		DataFlows:     m.Graph.Connections(),
		Methodologies: m.Methodologies(),
		Frameworks:    m.Frameworks(),
	}
}

// FromSystemData rebuilds a model, rejecting duplicate ids, self-loops and
// connections that point at missing components.
func FromSystemData(data SystemData, canvas Canvas) (*Model, error) {
	m := NewModel(data.Name, canvas)
	if data.Type != "" {
		m.Type = data.Type
	}
	if data.AnalysisScope != "" {
		m.AnalysisScope = data.AnalysisScope
	}
	for _, c := range data.Components {
		if err := m.Graph.insertComponent(c); err != nil {
			return nil, fmt.Errorf("import component: %w", err)
		}
	}
	for _, c := range data.DataFlows {
		if err := m.Graph.insertConnection(c); err != nil {
			return nil, fmt.Errorf("import data flow: %w", err)
		}
	}
	m.SetMethodologies(data.Methodologies)
	m.SetFrameworks(data.Frameworks)
	return m, nil
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

func toggle(set map[string]struct{}, tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	if _, ok := set[tag]; ok {
		delete(set, tag)
		return false
	}
	set[tag] = struct{}{}
	return true
}

func fromSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
