package threatmodel

import "strings"

// Methodology is a threat analysis method the backend can apply to a diagram.
type Methodology struct {
	ID          string // tag sent to the backend (e.g. "stride")
	Name        string // display name
	Description string
	Categories  []string
}

// Framework is a compliance or control framework the findings are mapped to.
type Framework struct {
	ID          string // tag sent to the backend (e.g. "iso27001")
	Name        string
	Description string
	Region      string
	Categories  []string
}

var methodologies = []Methodology{
	{
		ID:          "stride",
		Name:        "STRIDE",
		Description: "Microsoft threat classification by attacker goal",
		Categories:  []string{"Spoofing", "Tampering", "Repudiation", "Information Disclosure", "Denial of Service", "Elevation of Privilege"},
	},
	{
		ID:          "dread",
		Name:        "DREAD",
		Description: "Risk rating by damage, reproducibility, exploitability, affected users and discoverability",
		Categories:  []string{"Damage", "Reproducibility", "Exploitability", "Affected Users", "Discoverability"},
	},
	{
		ID:          "pasta",
		Name:        "PASTA",
		Description: "Process for Attack Simulation and Threat Analysis, a seven-stage risk-centric method",
		Categories:  []string{"Objectives", "Technical Scope", "Decomposition", "Threat Analysis", "Vulnerability Analysis", "Attack Modeling", "Risk Analysis"},
	},
	{
		ID:          "mitre",
		Name:        "MITRE ATT&CK",
		Description: "Adversary tactics and techniques knowledge base",
		Categories:  []string{"Initial Access", "Execution", "Persistence", "Privilege Escalation", "Defense Evasion", "Credential Access", "Lateral Movement", "Exfiltration", "Impact"},
	},
	{
		ID:          "owasp",
		Name:        "OWASP Top 10",
		Description: "Most critical web application security risks",
		Categories:  []string{"Broken Access Control", "Cryptographic Failures", "Injection", "Insecure Design", "Security Misconfiguration", "Vulnerable Components", "Authentication Failures", "Integrity Failures", "Logging Failures", "SSRF"},
	},
	{
		ID:          "linddun",
		Name:        "LINDDUN",
		Description: "Privacy threat modeling",
		Categories:  []string{"Linkability", "Identifiability", "Non-repudiation", "Detectability", "Disclosure of Information", "Unawareness", "Non-compliance"},
	},
}

var frameworks = []Framework{
	{
		ID:          "nist",
		Name:        "NIST Cybersecurity Framework 2.0",
		Description: "Govern, identify, protect, detect, respond and recover functions",
		Region:      "United States",
		Categories:  []string{"Govern", "Identify", "Protect", "Detect", "Respond", "Recover"},
	},
	{
		ID:          "iso27001",
		Name:        "ISO/IEC 27001:2022",
		Description: "Information Security Management System standard",
		Region:      "Global",
		Categories:  []string{"Organizational", "People", "Physical", "Technological"},
	},
	{
		ID:          "cis",
		Name:        "CIS Critical Security Controls v8",
		Description: "Prioritized set of safeguards against common attacks",
		Region:      "Global",
		Categories:  []string{"Inventory", "Data Protection", "Secure Configuration", "Account Management", "Access Control", "Audit Logs"},
	},
	{
		ID:          "cwe",
		Name:        "CWE",
		Description: "Common Weakness Enumeration",
		Region:      "Global",
		Categories:  []string{"Software Weaknesses", "Hardware Weaknesses"},
	},
	{
		ID:          "asvs",
		Name:        "OWASP ASVS 4.0",
		Description: "Application Security Verification Standard",
		Region:      "Global",
		Categories:  []string{"Architecture", "Authentication", "Session Management", "Access Control", "Validation", "Cryptography", "Communications"},
	},
	{
		ID:          "pci_dss",
		Name:        "PCI DSS 4.0",
		Description: "Payment Card Industry Data Security Standard",
		Region:      "Global",
		Categories:  []string{"Network Security", "Cardholder Data", "Vulnerability Management", "Access Control", "Monitoring", "Policy"},
	},
	{
		ID:          "hipaa",
		Name:        "HIPAA Security Rule",
		Description: "Safeguards for electronic protected health information",
		Region:      "United States",
		Categories:  []string{"Administrative Safeguards", "Physical Safeguards", "Technical Safeguards"},
	},
	{
		ID:          "gdpr",
		Name:        "GDPR",
		Description: "EU General Data Protection Regulation",
		Region:      "European Union",
		Categories:  []string{"Lawfulness", "Data Subject Rights", "Security of Processing", "Breach Notification"},
	},
	{
		ID:          "soc2",
		Name:        "SOC 2",
		Description: "AICPA Trust Services Criteria",
		Region:      "United States",
		Categories:  []string{"Security", "Availability", "Processing Integrity", "Confidentiality", "Privacy"},
	},
}

// aliases maps the labels users type to catalog ids.
var aliases = map[string]string{
	"mitre att&ck":    "mitre",
	"attack":          "mitre",
	"nist csf":        "nist",
	"iso 27001":       "iso27001",
	"iso-27001":       "iso27001",
	"owasp asvs":      "asvs",
	"pci":             "pci_dss",
	"pci dss":         "pci_dss",
	"pci-dss":         "pci_dss",
	"soc 2":           "soc2",
	"cis controls":    "cis",
	"owasp top 10":    "owasp",
	"owasp top ten":   "owasp",
	"privacy linddun": "linddun",
}

// SupportedMethodologies returns the methodology catalog in display order.
func SupportedMethodologies() []Methodology {
	out := make([]Methodology, len(methodologies))
	copy(out, methodologies)
	return out
}

// SupportedFrameworks returns the framework catalog in display order.
func SupportedFrameworks() []Framework {
	out := make([]Framework, len(frameworks))
	copy(out, frameworks)
	return out
}

// GetMethodology returns a methodology by id or alias.
func GetMethodology(tag string) *Methodology {
	id := Canonical(tag)
	for _, m := range methodologies {
		if m.ID == id {
			m := m
			return &m
		}
	}
	return nil
}

// GetFramework returns a framework by id or alias.
func GetFramework(tag string) *Framework {
	id := Canonical(tag)
	for _, fw := range frameworks {
		if fw.ID == id {
			fw := fw
			return &fw
		}
	}
	return nil
}

// GetFrameworksByRegion returns the frameworks of a region plus the global ones.
func GetFrameworksByRegion(region string) []Framework {
	var out []Framework
	for _, fw := range frameworks {
		if strings.EqualFold(fw.Region, region) || fw.Region == "Global" {
			out = append(out, fw)
		}
	}
	return out
}

// Canonical lowercases a tag and resolves known aliases.
func Canonical(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if id, ok := aliases[t]; ok {
		return id
	}
	return t
}
