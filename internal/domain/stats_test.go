package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusLine(t *testing.T) {
	testCases := []struct {
		name     string
		snapshot AggregateSnapshot
		expected string
	}{
		{
			name:     "empty snapshot",
			snapshot: EmptySnapshot(),
			expected: "Files Changed: 0 (+0 / -0)",
		},
		{
			name:     "populated snapshot",
			snapshot: AggregateSnapshot{TotalFilesChanged: 3, TotalAdded: 12, TotalRemoved: 4},
			expected: "Files Changed: 3 (+12 / -4)",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusLine(tc.snapshot))
		})
	}
}

func TestLogEntry_Summary(t *testing.T) {
	entry := LogEntry{Message: "fix parser", AuthorName: "Alice", Insertions: 7, Deletions: 2, FilesTouched: 3}

	assert.Equal(t, CommitSummary{Message: "fix parser", Added: 7, Removed: 2, FilesTouched: 3}, entry.Summary())
}
