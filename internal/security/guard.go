// Package security screens inbound user text for injection attempts
// before it reaches the model.
package security

import (
	"regexp"
	"strings"
)

// ThreatKind labels the category of a detected pattern.
type ThreatKind string

const (
	ThreatPromptInjection  ThreatKind = "prompt_injection"
	ThreatCommandInjection ThreatKind = "command_injection"
	ThreatSQLInjection     ThreatKind = "sql_injection"
	ThreatPathTraversal    ThreatKind = "path_traversal"
)

// Threat is one detected pattern in a piece of input.
type Threat struct {
	Kind    ThreatKind
	Pattern string
}

var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(your|the)\s+(instructions|system\s+prompt)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(in\s+)?(developer|dan|jailbreak)\s*mode`),
	regexp.MustCompile(`(?i)reveal\s+(your|the)\s+system\s+prompt`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+have|there\s+are)\s+no\s+(rules|restrictions)`),
}

var commandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf\s+[/~]`),
	regexp.MustCompile(`[;&|]\s*(curl|wget)\s+\S+\s*\|\s*(sh|bash)`),
	regexp.MustCompile("\\$\\([^)]*\\)|`[^`]*`"),
	regexp.MustCompile(`(?i)>\s*/etc/(passwd|shadow|sudoers)`),
}

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)('\s*or\s+'?1'?\s*=\s*'?1)`),
	regexp.MustCompile(`(?i);\s*drop\s+table\s+\w+`),
	regexp.MustCompile(`(?i)union\s+select\s+`),
}

var traversalPattern = regexp.MustCompile(`\.\./(\.\./)+`)

// Guard inspects user input for known injection patterns. Detection is
// advisory: findings are recorded and surfaced, the input still flows
// to the model.
type Guard struct{}

// NewGuard creates an input guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Inspect returns all threats detected in the text.
func (g *Guard) Inspect(text string) []Threat {
	var threats []Threat
	scan := func(kind ThreatKind, patterns []*regexp.Regexp) {
		for _, p := range patterns {
			if m := p.FindString(text); m != "" {
				threats = append(threats, Threat{Kind: kind, Pattern: m})
			}
		}
	}
	scan(ThreatPromptInjection, promptPatterns)
	scan(ThreatCommandInjection, commandPatterns)
	scan(ThreatSQLInjection, sqlPatterns)
	if m := traversalPattern.FindString(text); m != "" {
		threats = append(threats, Threat{Kind: ThreatPathTraversal, Pattern: m})
	}
	return threats
}

// Clean strips control characters that break downstream serialization.
// Newlines and tabs are preserved.
func (g *Guard) Clean(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)
}
