// Package classify assigns display styles to tool output and extracts
// structured views (port tables, findings, subdomains) from raw text.
//
// Everything here is a pure function of its input. Callers re-run it on every
// render.
package classify

import (
	"regexp"
	"strings"
)

// Style is the display class of one output line.
type Style int

const (
	Neutral Style = iota
	Critical
	Success
	Error
	Warning
	Muted
	Info
	Preamble
)

var styleNames = map[Style]string{
	Neutral:  "neutral",
	Critical: "critical",
	Success:  "success",
	Error:    "error",
	Warning:  "warning",
	Muted:    "muted",
	Info:     "info",
	Preamble: "preamble",
}

func (s Style) String() string {
	if n, ok := styleNames[s]; ok {
		return n
	}
	return "neutral"
}

// Rule maps a line predicate to a style.
type Rule struct {
	Name  string
	Match func(line string) bool
	Style Style
}

// blank is what empty lines render as so rows keep their height.
const blank = " "

var (
	reCritical    = regexp.MustCompile(`(?i)VULNERABLE|CRITICAL`)
	reSuccess     = regexp.MustCompile(`(?i)\[\+\]|open |SUCCESS|FOUND|valid|Pwn3d!`)
	reError       = regexp.MustCompile(`(?i)\[-\]|ERROR|FAIL|denied|refused|timeout`)
	reWarning     = regexp.MustCompile(`(?i)\[\*\]|\[!\]|WARN(ING)?`)
	rePortOpen    = regexp.MustCompile(`(?i)\d+/(tcp|udp)\s+open`)
	rePortClosed  = regexp.MustCompile(`(?i)\d+/(tcp|udp)\s+(closed|filtered)`)
	preambleHeads = []string{"Nmap scan report", "Starting Nmap", "Host is up"}
)

// DefaultRules is the ordered policy; the first matching rule wins. Callers
// needing another table pass their own to New.
var DefaultRules = []Rule{
	{Name: "critical", Match: reCritical.MatchString, Style: Critical},
	{Name: "success", Match: reSuccess.MatchString, Style: Success},
	{Name: "error", Match: reError.MatchString, Style: Error},
	{Name: "warning", Match: reWarning.MatchString, Style: Warning},
	{Name: "port-open", Match: rePortOpen.MatchString, Style: Success},
	{Name: "port-closed", Match: rePortClosed.MatchString, Style: Muted},
	{Name: "script-output", Match: func(l string) bool { return strings.HasPrefix(l, "|") }, Style: Info},
	{Name: "preamble", Match: hasPreamble, Style: Preamble},
}

func hasPreamble(line string) bool {
	for _, p := range preambleHeads {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Classifier applies an ordered rule table.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over the given rules. A nil slice uses DefaultRules.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the style of the first matching rule, or Neutral.
func (c *Classifier) Classify(line string) Style {
	for _, r := range c.rules {
		if r.Match(line) {
			return r.Style
		}
	}
	return Neutral
}

// Line is one numbered, styled row of output.
type Line struct {
	Number int
	Text   string
	Style  Style
}

// Lines splits text into numbered styled rows.
func (c *Classifier) Lines(text string) []Line {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]Line, len(raw))
	for i, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		style := c.Classify(l)
		if strings.TrimSpace(l) == "" {
			l = blank
		}
		out[i] = Line{Number: i + 1, Text: l, Style: style}
	}
	return out
}

var std = New(nil)

// Classify styles a line with the default rules.
func Classify(line string) Style { return std.Classify(line) }

// Lines splits and styles text with the default rules.
func Lines(text string) []Line { return std.Lines(text) }
