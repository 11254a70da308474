package diffstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		diff     string
		expected Stat
	}{
		{
			name:     "empty text",
			diff:     "",
			expected: Stat{},
		},
		{
			name:     "headers are excluded",
			diff:     "+++ b/file\n+line1\n+line2\n--- a/file\n-old1\n",
			expected: Stat{Added: 2, Removed: 1},
		},
		{
			name: "git diff with hunk",
			diff: "diff --git a/main.go b/main.go\n" +
				"index 3b18e51..a5c1966 100644\n" +
				"--- a/main.go\n" +
				"+++ b/main.go\n" +
				"@@ -1,4 +1,5 @@\n" +
				" package main\n" +
				"-import \"fmt\"\n" +
				"+import (\n" +
				"+\t\"fmt\"\n" +
				"+)\n" +
				" func main() {}\n",
			expected: Stat{Added: 3, Removed: 1},
		},
		{
			name: "removed line that looks like a header inside a hunk",
			diff: "--- a/schema.sql\n" +
				"+++ b/schema.sql\n" +
				"@@ -1,2 +1,1 @@\n" +
				"--- legacy comment\n" +
				"+++ counter\n" +
				" CREATE TABLE t (id int);\n",
			expected: Stat{Added: 1, Removed: 1},
		},
		{
			name: "multiple file sections",
			diff: "diff --git a/a b/a\n--- a/a\n+++ b/a\n@@ -1 +1 @@\n-x\n+y\n" +
				"diff --git a/b b/b\n--- /dev/null\n+++ b/b\n@@ -0,0 +1,2 @@\n+1\n+2\n",
			expected: Stat{Added: 3, Removed: 1},
		},
		{
			name:     "crlf line endings and no trailing newline",
			diff:     "--- a/f\r\n+++ b/f\r\n@@ -1 +1 @@\r\n-a\r\n+b",
			expected: Stat{Added: 1, Removed: 1},
		},
		{
			name:     "binary notice only",
			diff:     "diff --git a/img.png b/img.png\nBinary files a/img.png and b/img.png differ\n",
			expected: Stat{},
		},
		{
			name:     "malformed text",
			diff:     "not a diff at all\n\\ No newline at end of file\n",
			expected: Stat{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Parse(tc.diff))
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	diff := "--- a/x\n+++ b/x\n@@ -1,2 +1,2 @@\n-a\n-b\n+c\n"

	first := Parse(diff)
	second := Parse(diff)

	assert.Equal(t, first, second)
	assert.Equal(t, Stat{Added: 1, Removed: 2}, first)
}
