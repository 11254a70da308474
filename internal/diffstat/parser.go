// Package diffstat counts added and removed lines in unified diff text.
package diffstat

import "strings"

// Stat holds the line counts of one diff.
type Stat struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Parse scans unified diff text line by line and counts added and removed
// lines. The "---" and "+++" file headers are skipped once per file section;
// a section starts at a "diff " line. Inside a hunk every "-" or "+" line is
// content. Empty or malformed input yields a zero Stat.
func Parse(text string) Stat {
	var st Stat
	if text == "" {
		return st
	}

	var oldHeader, newHeader, inHunk bool
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff "):
			oldHeader, newHeader, inHunk = false, false, false
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case strings.HasPrefix(line, "---") && !oldHeader && !inHunk:
			oldHeader = true
		case strings.HasPrefix(line, "+++") && !newHeader && !inHunk:
			newHeader = true
		case line[0] == '+':
			st.Added++
		case line[0] == '-':
			st.Removed++
		}
	}

	return st
}
