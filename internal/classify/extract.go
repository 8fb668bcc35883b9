package classify

import (
	"regexp"
	"strings"
)

// Caps on how many entries each section shows.
const (
	MaxFindings   = 50
	MaxSubdomains = 100
	MaxExploits   = 30
)

var (
	rePortRow   = regexp.MustCompile(`^(\d+/\w+)\s+(\w+)\s+(\S+)\s*(.*)`)
	reFinding   = regexp.MustCompile(`\[\+\]|\[!\]|VULNERABLE|Pwn3d|SUCCESS|FOUND`)
	reHostname  = regexp.MustCompile(`^\s*[\w.-]+\.\w{2,}\s*$`)
	reFoundMark = regexp.MustCompile(`found:`)
)

// PortRow is one parsed row of a port table.
type PortRow struct {
	Port    string `json:"port"`
	State   string `json:"state"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Style returns the color class of the port state.
func (p PortRow) Style() Style {
	switch p.State {
	case "open":
		return Success
	case "filtered":
		return Warning
	default:
		return Muted
	}
}

// Finding is a highlighted line of interest.
type Finding struct {
	Text  string
	Style Style
}

// Summary bundles all structured views of one output.
type Summary struct {
	Ports       []PortRow
	Findings    []Finding
	Subdomains  []string
	HashMatches []string
	ExploitHits []string
}

// Empty reports whether no section has content.
func (s Summary) Empty() bool {
	return len(s.Ports) == 0 && len(s.Findings) == 0 && len(s.Subdomains) == 0 &&
		len(s.HashMatches) == 0 && len(s.ExploitHits) == 0
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Ports parses every port-table row.
func Ports(text string) []PortRow {
	var rows []PortRow
	for _, l := range splitLines(text) {
		m := rePortRow.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		rows = append(rows, PortRow{
			Port:    m[1],
			State:   m[2],
			Service: m[3],
			Version: strings.TrimSpace(m[4]),
		})
	}
	return rows
}

// Findings collects notable lines, keeping the first MaxFindings.
func Findings(text string) []Finding {
	var out []Finding
	for _, l := range splitLines(text) {
		if !reFinding.MatchString(l) {
			continue
		}
		out = append(out, Finding{Text: strings.TrimSpace(l), Style: findingStyle(l)})
		if len(out) == MaxFindings {
			break
		}
	}
	return out
}

func findingStyle(line string) Style {
	switch {
	case reCritical.MatchString(line):
		return Critical
	case reSuccess.MatchString(line):
		return Success
	default:
		return Warning
	}
}

// Subdomains collects hostname-looking lines, keeping the first MaxSubdomains.
func Subdomains(text string) []string {
	var out []string
	for _, l := range splitLines(text) {
		if !reHostname.MatchString(l) && !reFoundMark.MatchString(l) {
			continue
		}
		out = append(out, strings.TrimSpace(l))
		if len(out) == MaxSubdomains {
			break
		}
	}
	return out
}

// HashMatches returns hash-identification candidates.
func HashMatches(text string) []string {
	var out []string
	for _, l := range splitLines(text) {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, "[+]") {
			out = append(out, strings.TrimSpace(strings.TrimPrefix(t, "[+]")))
		}
	}
	return out
}

// ExploitHits returns exploit-database rows, keeping the first MaxExploits.
func ExploitHits(text string) []string {
	var out []string
	for _, l := range splitLines(text) {
		if !strings.Contains(l, "exploits/") {
			continue
		}
		out = append(out, strings.TrimSpace(l))
		if len(out) == MaxExploits {
			break
		}
	}
	return out
}

// Summarize runs every extractor over text.
func Summarize(text string) Summary {
	return Summary{
		Ports:       Ports(text),
		Findings:    Findings(text),
		Subdomains:  Subdomains(text),
		HashMatches: HashMatches(text),
		ExploitHits: ExploitHits(text),
	}
}
