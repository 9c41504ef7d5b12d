// Package jsonrepair coerces near-JSON text produced by language models into
// parseable JSON.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrEmptyInput is returned when there is nothing to repair.
	ErrEmptyInput = errors.New("jsonrepair: empty input")
	// ErrRepairFailed is returned when the text is still not valid JSON after every rule ran.
	ErrRepairFailed = errors.New("jsonrepair: repair failed")
)

// Rule names one repair step.
type Rule string

const (
	RuleStripFences    Rule = "strip_fences"
	RuleNumericRanges  Rule = "numeric_ranges"
	RuleTrailingCommas Rule = "trailing_commas"
	RuleBareKeys       Rule = "bare_keys"
	RuleSingleQuotes   Rule = "single_quotes"
	RuleNonPrintable   Rule = "non_printable"
	RuleEmbeddedQuotes Rule = "embedded_quotes"
)

// rangePlaceholder replaces unquoted numeric ranges such as 0-100.
const rangePlaceholder = "50"

// Result is the outcome of a successful repair.
type Result struct {
	JSON     string
	Applied  []Rule
	Repaired bool
}

type step struct {
	rule  Rule
	apply func(string) string
}

// Rules run in this order. Order matters: fences must go before anything
// looks at brackets, and quotes are normalized before embedded quotes are escaped.
var steps = []step{
	{RuleStripFences, stripFences},
	{RuleNumericRanges, func(s string) string { return outsideStrings(s, replaceRanges) }},
	{RuleTrailingCommas, func(s string) string { return outsideStrings(s, stripTrailingCommas) }},
	{RuleBareKeys, func(s string) string { return outsideStrings(s, quoteBareKeys) }},
	{RuleSingleQuotes, convertSingleQuotes},
	{RuleNonPrintable, stripNonPrintable},
	{RuleEmbeddedQuotes, escapeEmbeddedQuotes},
}

// Repair returns text unchanged when it already parses. Otherwise it applies
// the repair rules in order and stops at the first rule after which the text
// parses, so well-formed parts are not rewritten needlessly.
func Repair(text string) (Result, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Result{}, ErrEmptyInput
	}
	if json.Valid([]byte(s)) {
		return Result{JSON: s}, nil
	}

	res := Result{Repaired: true}
	for _, st := range steps {
		next := st.apply(s)
		if next != s {
			res.Applied = append(res.Applied, st.rule)
			s = next
		}
		if json.Valid([]byte(s)) {
			res.JSON = s
			return res, nil
		}
	}

	var v any
	err := json.Unmarshal([]byte(s), &v)
	if err == nil {
		err = errors.New("invalid JSON")
	}
	return Result{Applied: res.Applied}, fmt.Errorf("%w: %w", ErrRepairFailed, err)
}

// Decode repairs text and unmarshals it into T.
func Decode[T any](text string) (T, Result, error) {
	var out T
	res, err := Repair(text)
	if err != nil {
		return out, res, err
	}
	if err := json.Unmarshal([]byte(res.JSON), &out); err != nil {
		return out, res, fmt.Errorf("%w: %w", ErrRepairFailed, err)
	}
	return out, res, nil
}

var (
	fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

	rangeRegex         = regexp.MustCompile(`([:\[,]\s*)-?\d+(?:\.\d+)?\s*-\s*\d+(?:\.\d+)?(\s*[,}\]]|\s*$)`)
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRegex       = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][\w$-]*)(\s*:)`)

	stringLineRegex = regexp.MustCompile(`^(\s*(?:"[^"]*"\s*:\s*)?")(.*)("\s*,?\s*)$`)
	structuralQuote = regexp.MustCompile(`"\s*[:,]\s*"`)
)

// stripFences removes markdown code fences and any prose around the outermost
// JSON object or array.
func stripFences(s string) string {
	if m := fenceRegex.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return s[start : end+1]
}

func replaceRanges(s string) string {
	// adjacent ranges share a delimiter, so repeat until nothing matches
	for {
		next := rangeRegex.ReplaceAllString(s, "${1}"+rangePlaceholder+"${2}")
		if next == s {
			return s
		}
		s = next
	}
}

func stripTrailingCommas(s string) string {
	return trailingCommaRegex.ReplaceAllString(s, "$1")
}

func quoteBareKeys(s string) string {
	return bareKeyRegex.ReplaceAllString(s, `$1"$2"$3`)
}

// convertSingleQuotes rewrites single-quoted keys and values as double-quoted
// strings. It tracks both quote kinds, so a '"' inside a single-quoted literal
// is escaped and an apostrophe inside a double-quoted literal is left alone.
// A single quote only opens a literal where a key or value may start.
func convertSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	var (
		inDouble, inSingle, escaped bool
		last                        rune = '{'
	)
	for _, r := range s {
		switch {
		case inDouble:
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inDouble = false
				last = r
			}
		case inSingle:
			switch {
			case escaped:
				escaped = false
				if r != '\'' {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			case r == '\\':
				escaped = true
			case r == '\'':
				inSingle = false
				last = '"'
				b.WriteByte('"')
			case r == '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}
		case r == '"':
			inDouble = true
			b.WriteRune(r)
		case r == '\'' && strings.ContainsRune("{[,:", last):
			inSingle = true
			b.WriteByte('"')
		default:
			b.WriteRune(r)
			if !unicode.IsSpace(r) {
				last = r
			}
		}
	}
	if inSingle {
		b.WriteByte('"')
	}
	return b.String()
}

// stripNonPrintable drops control characters everywhere and, outside string
// literals, any other invisible rune (BOM, zero-width, no-break space). String
// content such as U+00A0 or a zero-width joiner is kept.
func stripNonPrintable(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return outsideStrings(s, func(chunk string) string {
		return strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == '\t' || unicode.IsPrint(r) {
				return r
			}
			return -1
		}, chunk)
	})
}

// escapeEmbeddedQuotes works line by line on lines that hold a single string
// value (optionally preceded by a key) and escapes bare quotes inside it.
func escapeEmbeddedQuotes(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		m := stringLineRegex.FindStringSubmatch(line)
		if m == nil || structuralQuote.MatchString(m[2]) {
			continue
		}
		if fixed := escapeUnescapedQuotes(m[2]); fixed != m[2] {
			lines[i] = m[1] + fixed + m[3]
		}
	}
	return strings.Join(lines, "\n")
}

func escapeUnescapedQuotes(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// outsideStrings applies fn to every stretch of s that is not inside a
// double-quoted string literal.
func outsideStrings(s string, fn func(string) string) string {
	var out strings.Builder
	var chunk strings.Builder
	inString := false
	escaped := false

	flush := func() {
		out.WriteString(fn(chunk.String()))
		chunk.Reset()
	}

	for _, r := range s {
		if inString {
			out.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		if r == '"' {
			flush()
			out.WriteRune(r)
			inString = true
			continue
		}
		chunk.WriteRune(r)
	}
	flush()
	return out.String()
}
