package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	thinkTagRe   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*(.*?)\\s*```")
	openFenceRe  = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*(.*)$")
)

// CollapseWhitespace replaces runs of whitespace with a single space and trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeName lower-cases a label and collapses whitespace so that
// "Machine  Learning" and "machine learning" compare equal.
func NormalizeName(name string) string {
	return CollapseWhitespace(strings.ToLower(name))
}

// RemoveThinkTags strips <think>...</think> reasoning blocks some models emit.
func RemoveThinkTags(s string) string {
	return thinkTagRe.ReplaceAllString(s, "")
}

// StripCodeFences returns the body of the first markdown code fence in s, such
// as ```json ... ```, wherever it appears. A reply cut off before its closing
// fence loses only the opening one. Text without fences is returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := openFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// TruncateRunes shortens s to at most max runes. max <= 0 disables truncation.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
