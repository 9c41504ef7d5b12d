package headers

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// versionSSL30 avoids the deprecated tls.VersionSSL30 symbol.
const versionSSL30 uint16 = 0x0300

var weakCipherSuites = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:                "TLS_RSA_WITH_RC4_128_SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:           "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            "TLS_RSA_WITH_AES_128_CBC_SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            "TLS_RSA_WITH_AES_256_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256",
}

// CertificateInfo summarizes the leaf certificate of a connection.
type CertificateInfo struct {
	Subject         string   `json:"subject"`
	Issuer          string   `json:"issuer"`
	NotAfter        string   `json:"not_after"`
	DNSNames        []string `json:"dns_names,omitempty"`
	SelfSigned      bool     `json:"self_signed"`
	DaysUntilExpiry int      `json:"days_until_expiry"`
	SignatureAlg    string   `json:"signature_algorithm"`
	PublicKeyAlg    string   `json:"public_key_algorithm"`
	KeySize         int      `json:"key_size,omitempty"`
}

// TLSIssue is one failed TLS requirement.
type TLSIssue struct {
	Requirement string `json:"requirement"` // OWASP ASVS / PCI DSS reference
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Remediation string `json:"remediation"`
}

// TLSReport is the TLS posture of a response's connection.
type TLSReport struct {
	Version         string           `json:"version"`
	CipherSuite     string           `json:"cipher_suite"`
	Protocol        string           `json:"protocol,omitempty"`
	Certificate     *CertificateInfo `json:"certificate,omitempty"`
	Issues          []TLSIssue       `json:"issues"`
	Recommendations []string         `json:"recommendations"`
}

// Compliant reports whether no issue was found.
func (r *TLSReport) Compliant() bool { return len(r.Issues) == 0 }

// AnalyzeTLS checks protocol version, cipher suite and leaf certificate
// against OWASP ASVS 9 and PCI DSS 4. It returns nil for plain connections.
func AnalyzeTLS(state *tls.ConnectionState) *TLSReport {
	return analyzeTLSAt(state, time.Now())
}

func analyzeTLSAt(state *tls.ConnectionState, now time.Time) *TLSReport {
	if state == nil {
		return nil
	}
	r := &TLSReport{
		Version:         tlsVersionName(state.Version),
		CipherSuite:     cipherSuiteName(state.CipherSuite),
		Protocol:        state.NegotiatedProtocol,
		Issues:          []TLSIssue{},
		Recommendations: []string{},
	}

	switch {
	case state.Version < tls.VersionTLS12:
		r.issue("ASVS 9.1.3 / PCI DSS 4.2.1", assessment.SeverityCritical,
			fmt.Sprintf("Insecure protocol version %s", r.Version),
			"Disable SSL 3.0, TLS 1.0 and TLS 1.1; serve TLS 1.2 or 1.3 only")
	case state.Version == tls.VersionTLS12:
		r.Recommendations = append(r.Recommendations, "Enable TLS 1.3")
	}

	if _, weak := weakCipherSuites[state.CipherSuite]; weak {
		r.issue("ASVS 9.1.2 / PCI DSS 4.2.1", assessment.SeverityHigh,
			fmt.Sprintf("Weak cipher suite %s", r.CipherSuite),
			"Use AEAD cipher suites such as AES-GCM or ChaCha20-Poly1305")
	}
	if state.Version < tls.VersionTLS13 && !strings.Contains(r.CipherSuite, "DHE") {
		r.issue("ASVS 9.1.2", assessment.SeverityMedium,
			"Cipher suite lacks forward secrecy",
			"Prefer ECDHE key exchange")
	}

	if len(state.PeerCertificates) > 0 {
		r.Certificate = describeCertificate(state.PeerCertificates[0], now)
		r.checkCertificate()
	}
	return r
}

func (r *TLSReport) issue(req, severity, desc, fix string) {
	r.Issues = append(r.Issues, TLSIssue{Requirement: req, Severity: severity, Description: desc, Remediation: fix})
	r.Recommendations = append(r.Recommendations, fix)
}

func describeCertificate(cert *x509.Certificate, now time.Time) *CertificateInfo {
	info := &CertificateInfo{
		Subject:         cert.Subject.String(),
		Issuer:          cert.Issuer.String(),
		NotAfter:        cert.NotAfter.Format(time.RFC3339),
		DNSNames:        cert.DNSNames,
		SelfSigned:      cert.Subject.String() == cert.Issuer.String(),
		DaysUntilExpiry: int(cert.NotAfter.Sub(now).Hours() / 24),
		SignatureAlg:    cert.SignatureAlgorithm.String(),
		PublicKeyAlg:    cert.PublicKeyAlgorithm.String(),
	}
	if k, ok := cert.PublicKey.(interface{ Size() int }); ok {
		info.KeySize = k.Size() * 8
	}
	return info
}

func (r *TLSReport) checkCertificate() {
	c := r.Certificate
	switch {
	case c.DaysUntilExpiry < 0:
		r.issue("PCI DSS 4.2.1", assessment.SeverityCritical, "Certificate has expired", "Renew the TLS certificate")
	case c.DaysUntilExpiry <= 30:
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Certificate expires in %d days", c.DaysUntilExpiry))
	}
	if c.SelfSigned {
		r.issue("ASVS 9.2.1", assessment.SeverityMedium, "Self-signed certificate",
			"Use a certificate issued by a trusted CA")
	}
	alg := strings.ToLower(c.SignatureAlg)
	if strings.Contains(alg, "md5") || strings.Contains(alg, "sha1") {
		r.issue("PCI DSS 4.2.1", assessment.SeverityHigh, "Weak certificate signature "+c.SignatureAlg,
			"Reissue the certificate with SHA-256 or stronger")
	}
	if c.PublicKeyAlg == "RSA" && c.KeySize > 0 && c.KeySize < 2048 {
		r.issue("PCI DSS 4.2.1", assessment.SeverityCritical,
			fmt.Sprintf("RSA key of %d bits", c.KeySize), "Use RSA keys of at least 2048 bits")
	}
}

func tlsVersionName(v uint16) string {
	switch v {
	case versionSSL30:
		return "SSL 3.0"
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	}
	return fmt.Sprintf("unknown (0x%04x)", v)
}

func cipherSuiteName(id uint16) string {
	if name, ok := weakCipherSuites[id]; ok {
		return name
	}
	return tls.CipherSuiteName(id)
}
