// internal/assistant/sanitizer.go
package assistant

import (
	"regexp"
	"strings"
	"unicode"

	apperrors "analytics-assistant/internal/common/errors"
)

// DefaultMaxQueryLength caps a query in runes.
const DefaultMaxQueryLength = 2000

// injectionPatterns are removed from the query before anything else sees it.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\[/admin\]\[begin_admin_session\].*?\[/admin\]\[end_admin_session\]`),
	regexp.MustCompile(`(?is)\[begin_admin_session\].*?\[end_admin_session\]`),
	regexp.MustCompile(`(?is)\[/admin\].*?\[/admin\]`),
	regexp.MustCompile(`(?i)\[/?(admin|root|sudo)[^\]]*\]|\[(begin|end)_admin_session\]`),
	regexp.MustCompile(`(?is)\[(SYSTEM|SYSTEM_PROMPT|INST|ASSISTANT|USER|OVERRIDE|INJECT|EXECUTE)\].*?\[/(SYSTEM|SYSTEM_PROMPT|INST|ASSISTANT|USER|OVERRIDE|INJECT|EXECUTE)\]`),
	regexp.MustCompile(`(?is)<\|system\|>.*?<\|/system\|>|<\|im_start\|>system.*?<\|im_end\|>`),
	regexp.MustCompile(`(?i)<\|(assistant|user)\|>`),
	regexp.MustCompile(`(?is)<(system|prompt|instruction)>.*?</(system|prompt|instruction)>`),
	regexp.MustCompile(`(?i)\b(ignore|forget|disregard|override|bypass)\b.*?\b(previous|above|prior|all|your)\b.*?\b(instructions|commands|directives|rules|guidelines|prompts)\b`),
}

// extractionIndicators mark a query whose whole point is the hidden prompt.
var extractionIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(show|tell|reveal|display|print|output|repeat)\b.*\b(system prompt|system message|hidden instructions|your instructions)\b`),
	regexp.MustCompile(`(?i)\bwhat\b.*\b(prompt|instructions)\b.*\b(are you using|are you following|were you given)\b`),
}

var whitespaceRun = regexp.MustCompile(`\s{2,}`)

// Sanitized is the cleaned query and what was stripped from it.
type Sanitized struct {
	Query    string
	Modified bool
	Removed  int
}

// Sanitizer strips prompt injection and control characters from queries.
type Sanitizer struct {
	MaxLength int
}

// NewSanitizer uses DefaultMaxQueryLength when maxLength is not positive.
func NewSanitizer(maxLength int) *Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &Sanitizer{MaxLength: maxLength}
}

// Sanitize strips injection markup and control characters and bounds the
// length. An empty result is an invalid request.
func (s *Sanitizer) Sanitize(raw string) (Sanitized, error) {
	for _, p := range extractionIndicators {
		if p.MatchString(raw) {
			return Sanitized{}, apperrors.NewInvalidRequestError("query asks for internal instructions")
		}
	}

	out := Sanitized{Query: raw}
	for _, p := range injectionPatterns {
		if matches := p.FindAllStringIndex(out.Query, -1); len(matches) > 0 {
			out.Removed += len(matches)
			out.Query = p.ReplaceAllString(out.Query, " ")
		}
	}

	out.Query = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, out.Query)
	out.Query = strings.TrimSpace(whitespaceRun.ReplaceAllString(out.Query, " "))

	if runes := []rune(out.Query); len(runes) > s.MaxLength {
		out.Query = strings.TrimSpace(string(runes[:s.MaxLength]))
	}

	out.Modified = out.Query != raw
	if out.Query == "" {
		return Sanitized{}, apperrors.NewInvalidRequestError("query is empty after sanitization")
	}
	return out, nil
}
