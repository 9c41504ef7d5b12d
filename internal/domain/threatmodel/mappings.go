package threatmodel

import "sort"

// ControlMapping maps a local security check to framework requirements.
type ControlMapping struct {
	CheckName  string
	Frameworks map[string][]string // framework id -> requirement ids
	Priority   string              // Critical, High, Medium, Low
	Threat     string              // STRIDE category the check mitigates
}

var controlMappings = map[string]ControlMapping{
	"HTTPS enabled": {
		CheckName: "HTTPS enabled",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.24"},
			"nist":     {"PR.DS-02"},
			"cis":      {"3.10"},
			"asvs":     {"V9.1.1"},
			"pci_dss":  {"4.2.1"},
			"cwe":      {"CWE-319"},
		},
		Priority: "Critical",
		Threat:   "Information Disclosure",
	},
	"HSTS enabled": {
		CheckName: "HSTS enabled",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.24"},
			"asvs":     {"V14.4.5"},
			"pci_dss":  {"4.2.1"},
			"cwe":      {"CWE-523"},
		},
		Priority: "High",
		Threat:   "Tampering",
	},
	"Content Security Policy (CSP)": {
		CheckName: "Content Security Policy (CSP)",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.28"},
			"asvs":     {"V14.4.3"},
			"pci_dss":  {"6.4.3"},
			"cwe":      {"CWE-79"},
		},
		Priority: "High",
		Threat:   "Tampering",
	},
	"Frame Security Policy (X-Frame-Options)": {
		CheckName: "Frame Security Policy (X-Frame-Options)",
		Frameworks: map[string][]string{
			"asvs": {"V14.4.7"},
			"cwe":  {"CWE-1021"},
		},
		Priority: "Medium",
		Threat:   "Spoofing",
	},
	"X-Content-Type-Options": {
		CheckName: "X-Content-Type-Options",
		Frameworks: map[string][]string{
			"asvs": {"V14.4.4"},
			"cwe":  {"CWE-430"},
		},
		Priority: "Medium",
		Threat:   "Tampering",
	},
	"Referrer Policy": {
		CheckName: "Referrer Policy",
		Frameworks: map[string][]string{
			"asvs": {"V14.4.6"},
			"gdpr": {"Art. 32"},
			"cwe":  {"CWE-200"},
		},
		Priority: "Low",
		Threat:   "Information Disclosure",
	},
	"Permissions-Policy header": {
		CheckName: "Permissions-Policy header",
		Frameworks: map[string][]string{
			"asvs": {"V14.4"},
			"gdpr": {"Art. 25"},
		},
		Priority: "Low",
		Threat:   "Elevation of Privilege",
	},
	"Cross-Origin-Opener-Policy header": {
		CheckName: "Cross-Origin-Opener-Policy header",
		Frameworks: map[string][]string{
			"asvs": {"V14.5"},
			"cwe":  {"CWE-346"},
		},
		Priority: "Low",
		Threat:   "Information Disclosure",
	},
	"Cross-Origin-Embedder-Policy header": {
		CheckName: "Cross-Origin-Embedder-Policy header",
		Frameworks: map[string][]string{
			"asvs": {"V14.5"},
		},
		Priority: "Low",
		Threat:   "Information Disclosure",
	},
	"Server information disclosure": {
		CheckName: "Server information disclosure",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.9"},
			"cis":      {"4.8"},
			"asvs":     {"V14.3.3"},
			"cwe":      {"CWE-497"},
		},
		Priority: "Low",
		Threat:   "Information Disclosure",
	},
	"Secure cookie attributes": {
		CheckName: "Secure cookie attributes",
		Frameworks: map[string][]string{
			"asvs":    {"V3.4.1", "V3.4.2", "V3.4.3"},
			"pci_dss": {"6.2.4"},
			"cwe":     {"CWE-614", "CWE-1004"},
		},
		Priority: "Medium",
		Threat:   "Spoofing",
	},
	"TLS configuration": {
		CheckName: "TLS configuration",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.24"},
			"nist":     {"PR.DS-02"},
			"asvs":     {"V9.1.2", "V9.1.3"},
			"pci_dss":  {"4.2.1"},
			"cwe":      {"CWE-326"},
		},
		Priority: "High",
		Threat:   "Information Disclosure",
	},
	"Unencrypted data flow": {
		CheckName: "Unencrypted data flow",
		Frameworks: map[string][]string{
			"iso27001": {"A.8.24"},
			"nist":     {"PR.DS-02"},
			"pci_dss":  {"4.2.1"},
			"hipaa":    {"164.312(e)(1)"},
			"cwe":      {"CWE-319"},
		},
		Priority: "High",
		Threat:   "Information Disclosure",
	},
	"Untrusted source reaches sensitive component": {
		CheckName: "Untrusted source reaches sensitive component",
		Frameworks: map[string][]string{
			"nist":     {"PR.AA-05"},
			"iso27001": {"A.8.20"},
			"soc2":     {"CC6.6"},
			"cwe":      {"CWE-284"},
		},
		Priority: "High",
		Threat:   "Elevation of Privilege",
	},
}

// GetMappingForCheck returns the control mapping of a check.
func GetMappingForCheck(checkName string) *ControlMapping {
	if m, ok := controlMappings[checkName]; ok {
		return &m
	}
	return nil
}

// GetChecksForFramework returns the sorted names of the checks mapped to a framework.
func GetChecksForFramework(frameworkTag string) []string {
	id := Canonical(frameworkTag)
	var checks []string
	for name, m := range controlMappings {
		if _, ok := m.Frameworks[id]; ok {
			checks = append(checks, name)
		}
	}
	sort.Strings(checks)
	return checks
}

// RequirementsFor returns the requirement ids of a check in the selected frameworks.
func RequirementsFor(checkName string, frameworkTags []string) map[string][]string {
	m, ok := controlMappings[checkName]
	if !ok {
		return nil
	}
	out := make(map[string][]string)
	for _, tag := range frameworkTags {
		id := Canonical(tag)
		if reqs, ok := m.Frameworks[id]; ok {
			out[id] = reqs
		}
	}
	return out
}
