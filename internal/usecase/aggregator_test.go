package usecase

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

func TestChangeAggregator_RecordFileChange(t *testing.T) {
	testCases := []struct {
		name     string
		records  []domain.FileChange
		expected []domain.FileChange
	}{
		{
			name: "same path accumulates",
			records: []domain.FileChange{
				{FileName: "src/a.ts", Added: 3, Removed: 1},
				{FileName: "src/a.ts", Added: 2, Removed: 0},
			},
			expected: []domain.FileChange{{FileName: "src/a.ts", Added: 5, Removed: 1}},
		},
		{
			name: "distinct paths keep insertion order",
			records: []domain.FileChange{
				{FileName: "b.go", Added: 1},
				{FileName: "a.go", Removed: 4},
				{FileName: "b.go", Added: 2, Removed: 2},
			},
			expected: []domain.FileChange{
				{FileName: "b.go", Added: 3, Removed: 2},
				{FileName: "a.go", Added: 0, Removed: 4},
			},
		},
		{
			name:     "negative counts are clamped",
			records:  []domain.FileChange{{FileName: "x", Added: -3, Removed: 2}},
			expected: []domain.FileChange{{FileName: "x", Added: 0, Removed: 2}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewChangeAggregator(0)
			for _, r := range tc.records {
				a.RecordFileChange(r.FileName, r.Added, r.Removed)
			}

			assert.Equal(t, tc.expected, a.Snapshot().Files)
		})
	}
}

func TestChangeAggregator_AccumulationInvariant(t *testing.T) {
	a := NewChangeAggregator(0)
	var wantAdded, wantRemoved int
	for i := 0; i < 100; i++ {
		a.RecordFileChange("hot.go", i, i%7)
		wantAdded += i
		wantRemoved += i % 7
	}

	s := a.Snapshot()

	require.Len(t, s.Files, 1)
	assert.Equal(t, wantAdded, s.Files[0].Added)
	assert.Equal(t, wantRemoved, s.Files[0].Removed)
	assert.Equal(t, wantAdded, s.TotalAdded)
	assert.Equal(t, wantRemoved, s.TotalRemoved)
}

func TestChangeAggregator_RecordAuthorChange(t *testing.T) {
	a := NewChangeAggregator(0)
	a.RecordAuthorChange("Alice", 4, 2)
	a.RecordAuthorChange("", 1, 0)
	a.RecordAuthorChange("Alice", 1, 1)
	a.RecordAuthorChange("  ", 0, 3)

	assert.Equal(t, []domain.AuthorChange{
		{AuthorName: "Alice", Added: 5, Removed: 3},
		{AuthorName: domain.UnknownAuthor, Added: 1, Removed: 3},
	}, a.Snapshot().Authors)
}

func TestChangeAggregator_RecordCommit(t *testing.T) {
	a := NewChangeAggregator(3)
	for i := 0; i < 10; i++ {
		a.RecordCommit(domain.CommitSummary{Message: fmt.Sprintf("commit %d", i)})
		assert.LessOrEqual(t, len(a.Snapshot().Commits), 3)
	}

	assert.Equal(t, []domain.CommitSummary{
		{Message: "commit 0"},
		{Message: "commit 1"},
		{Message: "commit 2"},
	}, a.Snapshot().Commits)
}

func TestChangeAggregator_DefaultCommitLimit(t *testing.T) {
	a := NewChangeAggregator(-1)
	for i := 0; i < DefaultCommitLimit+5; i++ {
		a.RecordCommit(domain.CommitSummary{Message: "c"})
	}

	assert.Equal(t, DefaultCommitLimit, a.CommitLimit())
	assert.Len(t, a.Snapshot().Commits, DefaultCommitLimit)
}

func TestChangeAggregator_Reset(t *testing.T) {
	a := NewChangeAggregator(0)
	a.RecordFileChange("a", 1, 2)
	a.RecordAuthorChange("Alice", 1, 2)
	a.RecordCommit(domain.CommitSummary{Message: "m", Added: 1})
	a.RecordPendingChanges(4)
	a.RecordSkippedDiff()
	a.RecordSkippedRepository()

	a.Reset()
	s := a.Snapshot()

	assert.Empty(t, s.Files)
	assert.Empty(t, s.Authors)
	assert.Empty(t, s.Commits)
	assert.Zero(t, s.TotalFilesChanged)
	assert.Zero(t, s.TotalAdded)
	assert.Zero(t, s.TotalRemoved)
	assert.Zero(t, s.SkippedDiffs)
	assert.Zero(t, s.SkippedRepositories)
}

func TestChangeAggregator_TotalFilesChangedCountsPendingChanges(t *testing.T) {
	a := NewChangeAggregator(0)
	// The same file listed by two repositories.
	a.RecordPendingChanges(1)
	a.RecordFileChange("shared.go", 1, 0)
	a.RecordPendingChanges(1)
	a.RecordFileChange("shared.go", 2, 0)

	s := a.Snapshot()

	assert.Equal(t, 2, s.TotalFilesChanged)
	assert.Len(t, s.Files, 1)
	assert.Equal(t, 3, s.TotalAdded)
}

func TestChangeAggregator_SnapshotIsACopy(t *testing.T) {
	a := NewChangeAggregator(0)
	a.RecordFileChange("a", 1, 1)
	a.RecordAuthorChange("Alice", 1, 1)
	a.RecordCommit(domain.CommitSummary{Message: "m"})

	first := a.Snapshot()
	first.Files[0].Added = 99
	first.Authors[0].AuthorName = "Mallory"
	first.Commits[0].Message = "rewritten"
	a.RecordFileChange("a", 1, 0)

	second := a.Snapshot()
	assert.Equal(t, []domain.FileChange{{FileName: "a", Added: 2, Removed: 1}}, second.Files)
	assert.Equal(t, "Alice", second.Authors[0].AuthorName)
	assert.Equal(t, "m", second.Commits[0].Message)
}

func TestChangeAggregator_ConcurrentRecords(t *testing.T) {
	a := NewChangeAggregator(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.RecordFileChange("same.go", 2, 1)
			a.RecordAuthorChange("Alice", 2, 1)
		}()
	}
	wg.Wait()

	s := a.Snapshot()
	assert.Equal(t, []domain.FileChange{{FileName: "same.go", Added: 100, Removed: 50}}, s.Files)
	assert.Equal(t, []domain.AuthorChange{{AuthorName: "Alice", Added: 100, Removed: 50}}, s.Authors)
}
