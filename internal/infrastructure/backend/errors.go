package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-suite/internal/analysis/capture"
	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

// Kind classifies a failed request.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindHTTP       Kind = "http"
	KindParse      Kind = "parse"
	KindBusiness   Kind = "business"
	KindTimeout    Kind = "timeout"
	KindBusy       Kind = "busy"
)

// Error is returned for every failed tool request.
type Error struct {
	Kind    Kind
	Tool    assessment.Tool
	Status  int
	Message string
	Hint    string
	// Body is a prefix of the raw response for parse failures.
	Body string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s error", e.Tool, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the one-line notification text plus an optional hint line.
func (e *Error) UserMessage() string {
	var head string
	switch e.Kind {
	case KindValidation:
		head = "Invalid input"
	case KindNetwork:
		head = "Could not reach the analysis server"
	case KindHTTP:
		head = fmt.Sprintf("Server returned HTTP %d", e.Status)
	case KindParse:
		head = "The server response could not be read"
	case KindBusiness:
		head = "Analysis failed"
	case KindTimeout:
		head = "The request timed out"
	case KindBusy:
		head = "An analysis is already running"
	default:
		head = "Request failed"
	}
	msg := fmt.Sprintf("%s: %s", e.Tool.Label(), head)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

// IsKind reports whether err is a backend error of kind k.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

// Fallbackable reports whether a local analysis may stand in for the remote
// one. Validation and busy errors are never replaced.
func Fallbackable(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	switch be.Kind {
	case KindNetwork, KindHTTP, KindParse, KindTimeout:
		return true
	case KindBusiness:
		return be.Status >= http.StatusInternalServerError
	}
	return false
}

func hintForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "Check the endpoint setting; the server does not serve api.php at that path."
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "The server refused the request. Check the gateway token."
	case status == http.StatusRequestEntityTooLarge:
		return "The upload is larger than the server allows. Raise upload_max_filesize or send a smaller file."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Wait a moment and try again."
	case status >= 500:
		return "The server failed while processing the request. Check its error log and try again."
	}
	return ""
}

func hintForMessage(tool assessment.Tool, message string) string {
	m := strings.ToLower(message)
	switch {
	case tool == assessment.ToolNetwork && (strings.Contains(m, "magic") || strings.Contains(m, "pcap")):
		return capture.HintMagic
	case strings.Contains(m, "ollama") || strings.Contains(m, "model"):
		return "Make sure Ollama is running and the model is pulled (ollama pull <model>)."
	case strings.Contains(m, "api key") || strings.Contains(m, "quota"):
		return "The AI provider rejected the request. Check the server's provider settings."
	}
	return ""
}
