package headers

import (
	"net/http"
	"strings"
)

// CookieFinding is a cookie set without the attributes a session cookie needs.
type CookieFinding struct {
	Name            string `json:"name"`
	MissingSecure   bool   `json:"missing_secure"`
	MissingHTTPOnly bool   `json:"missing_httponly"`
	MissingSameSite bool   `json:"missing_samesite"`
	SetCookie       string `json:"set_cookie"`
}

// Issues lists the missing attributes, e.g. "Secure, HttpOnly".
func (f CookieFinding) Issues() string {
	var missing []string
	if f.MissingSecure {
		missing = append(missing, "Secure")
	}
	if f.MissingHTTPOnly {
		missing = append(missing, "HttpOnly")
	}
	if f.MissingSameSite {
		missing = append(missing, "SameSite")
	}
	return strings.Join(missing, ", ")
}

// AnalyzeCookies inspects Set-Cookie headers for missing Secure, HttpOnly and
// SameSite attributes. Cookies with all three are not reported.
func AnalyzeCookies(resp *http.Response) []CookieFinding {
	if resp == nil {
		return nil
	}
	raw := resp.Header.Values("Set-Cookie")
	if len(raw) == 0 {
		return nil
	}

	var findings []CookieFinding
	for i, cookie := range resp.Cookies() {
		f := CookieFinding{
			Name:            cookie.Name,
			MissingSecure:   !cookie.Secure,
			MissingHTTPOnly: !cookie.HttpOnly,
			MissingSameSite: cookie.SameSite == http.SameSiteDefaultMode,
		}
		if i < len(raw) {
			f.SetCookie = raw[i]
		}
		if f.MissingSecure || f.MissingHTTPOnly || f.MissingSameSite {
			findings = append(findings, f)
		}
	}
	return findings
}
