package classify

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffKind marks a line of a run comparison.
type DiffKind int

const (
	Same DiffKind = iota
	Added
	Removed
)

// DiffLine is one line of a line-level comparison.
type DiffLine struct {
	Kind DiffKind
	Text string
}

// Diff compares two outputs line by line, e.g. two runs of the same scan.
func Diff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		kind := Same
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = Added
		case diffmatchpatch.DiffDelete:
			kind = Removed
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			out = append(out, DiffLine{Kind: kind, Text: strings.TrimSuffix(l, "\n")})
		}
	}
	return out
}

// Changed reports whether a comparison has any added or removed lines.
func Changed(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Kind != Same {
			return true
		}
	}
	return false
}
