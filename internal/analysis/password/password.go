// Package password scores password strength locally. It backs the password
// tool when the suite endpoint is unreachable or returns unusable data.
package password

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
)

const (
	maxLengthScore  = 40
	perClassScore   = 10
	longBonusLength = 12
	vlongBonusLen   = 16
	lengthBonus     = 10
	repeatPenalty   = 10
	singleClassPen  = 15
	commonScoreCap  = 10
	guessesPerSec   = 1e9
	secondsPerYear  = 365 * 24 * 3600
)

// Charset sizes per character class used for the brute-force estimate.
const (
	lowerCharset   = 26
	upperCharset   = 26
	digitCharset   = 10
	specialCharset = 32
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "passw0rd": {}, "123456": {}, "12345678": {},
	"123456789": {}, "1234567890": {}, "qwerty": {}, "qwerty123": {}, "1q2w3e4r": {},
	"111111": {}, "123123": {}, "abc123": {}, "letmein": {}, "welcome": {},
	"admin": {}, "iloveyou": {}, "monkey": {}, "dragon": {}, "football": {},
	"baseball": {}, "sunshine": {}, "master": {}, "trustno1": {}, "shadow": {},
	"princess": {}, "superman": {}, "qazwsx": {}, "login": {}, "starwars": {},
}

// Classes reports which character classes s contains.
func Classes(s string) assessment.CharacterClasses {
	var c assessment.CharacterClasses
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			c.Lowercase = true
		case unicode.IsUpper(r):
			c.Uppercase = true
		case unicode.IsDigit(r):
			c.Digits = true
		default:
			c.Special = true
		}
	}
	return c
}

// IsCommon reports whether s is in the built-in common password list.
func IsCommon(s string) bool {
	_, ok := commonPasswords[strings.ToLower(s)]
	return ok
}

// HasRepeatedRun reports whether s has three or more identical characters in a row.
func HasRepeatedRun(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= 3 {
			return true
		}
	}
	return false
}

// Score computes the 0-100 strength score.
func Score(s string) int {
	length := len([]rune(s))
	if length == 0 {
		return 0
	}
	classes := Classes(s).Count()

	score := min(length*4, maxLengthScore)
	score += classes * perClassScore
	if length >= longBonusLength {
		score += lengthBonus
	}
	if length >= vlongBonusLen {
		score += lengthBonus
	}
	if HasRepeatedRun(s) {
		score -= repeatPenalty
	}
	if classes == 1 {
		score -= singleClassPen
	}
	if IsCommon(s) {
		score = min(score, commonScoreCap)
	}
	return max(0, min(score, 100))
}

// CharsetSize is the brute-force alphabet size implied by the classes in s.
func CharsetSize(s string) int {
	c := Classes(s)
	size := 0
	if c.Lowercase {
		size += lowerCharset
	}
	if c.Uppercase {
		size += upperCharset
	}
	if c.Digits {
		size += digitCharset
	}
	if c.Special {
		size += specialCharset
	}
	return size
}

// Entropy returns length*log2(charset) bits.
func Entropy(s string) float64 {
	size := CharsetSize(s)
	if size == 0 {
		return 0
	}
	return float64(len([]rune(s))) * math.Log2(float64(size))
}

// CrackSeconds estimates charset^length / 1e9 seconds. Large values overflow to +Inf.
func CrackSeconds(s string) float64 {
	size := CharsetSize(s)
	if size == 0 {
		return 0
	}
	return math.Pow(float64(size), float64(len([]rune(s)))) / guessesPerSec
}

// FormatCrackTime buckets a duration in seconds into a human-readable string.
func FormatCrackTime(seconds float64) string {
	switch {
	case seconds < 1:
		return "Instantly"
	case seconds < 60:
		return plural(seconds, "second")
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < secondsPerYear:
		return plural(seconds/86400, "day")
	case seconds < 100*secondsPerYear:
		return plural(seconds/secondsPerYear, "year")
	default:
		return "Centuries"
	}
}

func plural(v float64, unit string) string {
	n := int(math.Floor(v))
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Analyze builds the full local result for a password.
func Analyze(s string) assessment.PasswordResult {
	classes := Classes(s)
	score := Score(s)
	length := len([]rune(s))

	res := assessment.PasswordResult{
		Score:       assessment.Number(score),
		Strength:    assessment.Text(assessment.StrengthLabel(float64(score))),
		CrackTime:   assessment.Text(FormatCrackTime(CrackSeconds(s))),
		Entropy:     assessment.Number(math.Round(Entropy(s)*10) / 10),
		Length:      assessment.Number(length),
		Classes:     classes,
		Common:      assessment.Flag(IsCommon(s)),
		Feedback:    assessment.TextList{},
		Suggestions: assessment.TextList{},
	}

	if length < 8 {
		res.Feedback = append(res.Feedback, "Password is shorter than 8 characters")
	} else if length >= vlongBonusLen {
		res.Feedback = append(res.Feedback, "Good length")
	}
	if res.Common {
		res.Feedback = append(res.Feedback, "Password appears in lists of commonly used passwords")
	}
	if HasRepeatedRun(s) {
		res.Feedback = append(res.Feedback, "Contains repeated characters")
	}
	if classes.Count() == 1 {
		res.Feedback = append(res.Feedback, "Uses only one type of character")
	}

	if length < longBonusLength {
		res.Suggestions = append(res.Suggestions, "Use at least 12 characters")
	}
	if !classes.Uppercase {
		res.Suggestions = append(res.Suggestions, "Add uppercase letters")
	}
	if !classes.Lowercase {
		res.Suggestions = append(res.Suggestions, "Add lowercase letters")
	}
	if !classes.Digits {
		res.Suggestions = append(res.Suggestions, "Add numbers")
	}
	if !classes.Special {
		res.Suggestions = append(res.Suggestions, "Add special characters such as !@#$%")
	}
	if bool(res.Common) || HasRepeatedRun(s) {
		res.Suggestions = append(res.Suggestions, "Avoid common words and repeated patterns")
	}
	if len(res.Suggestions) == 0 {
		res.Suggestions = append(res.Suggestions, "Consider a password manager to keep unique passwords per site")
	}
	return res
}
