package diagram

import (
	"sort"
	"strings"
)

// ComponentType is one of the predefined diagram component categories.
type ComponentType string

// ComponentKind describes a component category in the palette.
type ComponentKind struct {
	Type    ComponentType
	Label   string
	Group   string // palette group: actors, compute, data, network, security, cloud, external
	Glyph   string // short glyph used by terminal and SVG renderers
	Trusted bool   // whether the component usually sits inside the trust boundary
}

var componentKinds = []ComponentKind{
	{Type: "user", Label: "User", Group: "actors", Glyph: "USR"},
	{Type: "admin", Label: "Administrator", Group: "actors", Glyph: "ADM", Trusted: true},
	{Type: "attacker", Label: "Threat Actor", Group: "actors", Glyph: "ATK"},
	{Type: "browser", Label: "Web Browser", Group: "actors", Glyph: "WEB"},
	{Type: "mobile_app", Label: "Mobile App", Group: "actors", Glyph: "MOB"},
	{Type: "workstation", Label: "Workstation", Group: "actors", Glyph: "WKS", Trusted: true},
	{Type: "web_server", Label: "Web Server", Group: "compute", Glyph: "WWW", Trusted: true},
	{Type: "app_server", Label: "Application Server", Group: "compute", Glyph: "APP", Trusted: true},
	{Type: "api_service", Label: "API Service", Group: "compute", Glyph: "API", Trusted: true},
	{Type: "microservice", Label: "Microservice", Group: "compute", Glyph: "SVC", Trusted: true},
	{Type: "container", Label: "Container", Group: "compute", Glyph: "CTR", Trusted: true},
	{Type: "kubernetes", Label: "Kubernetes Cluster", Group: "compute", Glyph: "K8S", Trusted: true},
	{Type: "serverless", Label: "Serverless Function", Group: "compute", Glyph: "FN", Trusted: true},
	{Type: "ml_model", Label: "ML Model", Group: "compute", Glyph: "ML", Trusted: true},
	{Type: "legacy_system", Label: "Legacy System", Group: "compute", Glyph: "LEG", Trusted: true},
	{Type: "database", Label: "Database", Group: "data", Glyph: "DB", Trusted: true},
	{Type: "cache", Label: "Cache", Group: "data", Glyph: "CCH", Trusted: true},
	{Type: "message_queue", Label: "Message Queue", Group: "data", Glyph: "MQ", Trusted: true},
	{Type: "file_server", Label: "File Server", Group: "data", Glyph: "FS", Trusted: true},
	{Type: "storage_bucket", Label: "Storage Bucket", Group: "data", Glyph: "BKT", Trusted: true},
	{Type: "data_warehouse", Label: "Data Warehouse", Group: "data", Glyph: "DWH", Trusted: true},
	{Type: "backup", Label: "Backup System", Group: "data", Glyph: "BAK", Trusted: true},
	{Type: "load_balancer", Label: "Load Balancer", Group: "network", Glyph: "LB", Trusted: true},
	{Type: "router", Label: "Router", Group: "network", Glyph: "RTR", Trusted: true},
	{Type: "switch", Label: "Switch", Group: "network", Glyph: "SW", Trusted: true},
	{Type: "dns", Label: "DNS Server", Group: "network", Glyph: "DNS", Trusted: true},
	{Type: "cdn", Label: "CDN", Group: "network", Glyph: "CDN"},
	{Type: "vpn", Label: "VPN Gateway", Group: "network", Glyph: "VPN", Trusted: true},
	{Type: "api_gateway", Label: "API Gateway", Group: "network", Glyph: "GW", Trusted: true},
	{Type: "firewall", Label: "Firewall", Group: "security", Glyph: "FW", Trusted: true},
	{Type: "waf", Label: "Web Application Firewall", Group: "security", Glyph: "WAF", Trusted: true},
	{Type: "ids_ips", Label: "IDS/IPS", Group: "security", Glyph: "IDS", Trusted: true},
	{Type: "identity_provider", Label: "Identity Provider", Group: "security", Glyph: "IDP", Trusted: true},
	{Type: "secrets_vault", Label: "Secrets Vault", Group: "security", Glyph: "KEY", Trusted: true},
	{Type: "siem", Label: "SIEM", Group: "security", Glyph: "SIEM", Trusted: true},
	{Type: "logging", Label: "Logging Service", Group: "security", Glyph: "LOG", Trusted: true},
	{Type: "monitoring", Label: "Monitoring", Group: "security", Glyph: "MON", Trusted: true},
	{Type: "cloud_service", Label: "Cloud Service", Group: "cloud", Glyph: "CLD"},
	{Type: "iot_device", Label: "IoT Device", Group: "cloud", Glyph: "IOT"},
	{Type: "email_service", Label: "Email Service", Group: "external", Glyph: "MAIL"},
	{Type: "payment_gateway", Label: "Payment Gateway", Group: "external", Glyph: "PAY"},
	{Type: "external_api", Label: "External API", Group: "external", Glyph: "EXT"},
	{Type: "third_party", Label: "Third-Party Service", Group: "external", Glyph: "3P"},
}

var componentKindIndex = func() map[ComponentType]ComponentKind {
	idx := make(map[ComponentType]ComponentKind, len(componentKinds))
	for _, k := range componentKinds {
		idx[k.Type] = k
	}
	return idx
}()

// ComponentKinds returns the palette in display order.
func ComponentKinds() []ComponentKind {
	out := make([]ComponentKind, len(componentKinds))
	copy(out, componentKinds)
	return out
}

// LookupComponentKind returns the palette entry for t.
func LookupComponentKind(t ComponentType) (ComponentKind, bool) {
	k, ok := componentKindIndex[t]
	return k, ok
}

// Label returns the display label of a component type, falling back to the raw value.
func (t ComponentType) Label() string {
	if k, ok := componentKindIndex[t]; ok {
		return k.Label
	}
	return string(t)
}

// Anchor is one of the four connection points on a component.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorRight  Anchor = "right"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
)

// Anchors lists the connection points in clockwise order.
var Anchors = []Anchor{AnchorTop, AnchorRight, AnchorBottom, AnchorLeft}

// Valid reports whether a is a known anchor side.
func (a Anchor) Valid() bool {
	switch a {
	case AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
		return true
	}
	return false
}

// Sensitivity classifies the data a component holds.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ParseSensitivity maps free text onto a sensitivity level, defaulting to medium.
func ParseSensitivity(s string) Sensitivity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SensitivityLow
	case "high", "critical":
		return SensitivityHigh
	default:
		return SensitivityMedium
	}
}

// CustomProtocol is the catalog entry that lets the user type a protocol.
const CustomProtocol = "Custom"

// customDataType is reported for protocols that are not in the catalog.
const customDataType = "Custom Data"

var protocolDataTypes = map[string]string{
	"HTTP":        "Web Traffic",
	"HTTPS":       "Encrypted Web Traffic",
	"TCP":         "Network Data",
	"UDP":         "Network Data",
	"SSH":         "Remote Administration",
	"FTP":         "File Transfer",
	"SFTP":        "Encrypted File Transfer",
	"SMTP":        "Email",
	"IMAP":        "Email",
	"DNS":         "Name Resolution",
	"LDAP":        "Directory Data",
	"LDAPS":       "Encrypted Directory Data",
	"SQL":         "Database Queries",
	"gRPC":        "RPC Calls",
	"WebSocket":   "Real-time Data",
	"MQTT":        "IoT Telemetry",
	"AMQP":        "Message Queue",
	"Kafka":       "Event Stream",
	"REST API":    "API Calls",
	"GraphQL":     "API Calls",
	"SOAP":        "API Calls",
	"OAuth":       "Authentication Tokens",
	"SAML":        "Authentication Assertions",
	"Kerberos":    "Authentication Tickets",
	"RDP":         "Remote Desktop",
	"SMB":         "File Sharing",
	"NFS":         "File Sharing",
	"Syslog":      "Log Data",
	"SNMP":        "Network Management",
	"VPN":         "Tunneled Traffic",
	"TLS":         "Encrypted Data",
	"Bluetooth":   "Wireless Data",
	"Zigbee":      "IoT Telemetry",
	"S3 API":      "Object Storage",
	"Redis":       "Cache Data",
	"JDBC":        "Database Queries",
	"ODBC":        "Database Queries",
	"Webhook":     "Event Notifications",
	"Payment API": "Payment Data",
}

// Protocols returns the protocol catalog sorted alphabetically, followed by the
// custom entry.
func Protocols() []string {
	out := make([]string, 0, len(protocolDataTypes)+1)
	for p := range protocolDataTypes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return append(out, CustomProtocol)
}

// DataTypeFor derives the data type carried by a protocol. Lookup is case-insensitive;
// anything outside the catalog is custom data.
func DataTypeFor(protocol string) string {
	p := strings.TrimSpace(protocol)
	if dt, ok := protocolDataTypes[p]; ok {
		return dt
	}
	for name, dt := range protocolDataTypes {
		if strings.EqualFold(name, p) {
			return dt
		}
	}
	return customDataType
}

// IsEncrypted reports whether the protocol is transport-encrypted.
func IsEncrypted(protocol string) bool {
	switch strings.ToUpper(strings.TrimSpace(protocol)) {
	case "HTTPS", "SFTP", "SSH", "LDAPS", "TLS", "VPN":
		return true
	}
	return false
}
