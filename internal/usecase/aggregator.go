// Package usecase contains the business logic of the application.
package usecase

import (
	"strings"
	"sync"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

// DefaultCommitLimit is the default number of commits kept per pass.
const DefaultCommitLimit = 50

// ChangeAggregator owns the live aggregate state of one refresh pass.
// Observations are merged with accumulate-or-insert semantics; all methods
// are safe for concurrent use.
type ChangeAggregator struct {
	mu sync.Mutex

	commitLimit int

	files       map[string]*domain.FileChange
	fileOrder   []string
	authors     map[string]*domain.AuthorChange
	authorOrder []string
	commits     []domain.CommitSummary

	pendingChanges      int
	skippedDiffs        int
	skippedRepositories int
}

// NewChangeAggregator creates an empty aggregator keeping at most commitLimit
// commits. A non-positive limit selects DefaultCommitLimit.
func NewChangeAggregator(commitLimit int) *ChangeAggregator {
	if commitLimit <= 0 {
		commitLimit = DefaultCommitLimit
	}
	a := &ChangeAggregator{commitLimit: commitLimit}
	a.resetLocked()
	return a
}

// CommitLimit returns the maximum number of commits kept.
func (a *ChangeAggregator) CommitLimit() int {
	return a.commitLimit
}

// Reset clears all collections and counters.
func (a *ChangeAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *ChangeAggregator) resetLocked() {
	a.files = make(map[string]*domain.FileChange)
	a.fileOrder = nil
	a.authors = make(map[string]*domain.AuthorChange)
	a.authorOrder = nil
	a.commits = nil
	a.pendingChanges = 0
	a.skippedDiffs = 0
	a.skippedRepositories = 0
}

// RecordFileChange adds the counts to the entry for path, creating it on first sight.
func (a *ChangeAggregator) RecordFileChange(path string, added, removed int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fc, ok := a.files[path]
	if !ok {
		fc = &domain.FileChange{FileName: path}
		a.files[path] = fc
		a.fileOrder = append(a.fileOrder, path)
	}
	fc.Added += max(added, 0)
	fc.Removed += max(removed, 0)
}

// RecordAuthorChange adds the counts to the entry for author. A blank author
// is recorded under domain.UnknownAuthor.
func (a *ChangeAggregator) RecordAuthorChange(author string, added, removed int) {
	author = strings.TrimSpace(author)
	if author == "" {
		author = domain.UnknownAuthor
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ac, ok := a.authors[author]
	if !ok {
		ac = &domain.AuthorChange{AuthorName: author}
		a.authors[author] = ac
		a.authorOrder = append(a.authorOrder, author)
	}
	ac.Added += max(added, 0)
	ac.Removed += max(removed, 0)
}

// RecordCommit appends a commit in source order. Once the limit is reached,
// further commits are dropped: the source lists newest first, so anything
// beyond the limit is older than what is kept.
func (a *ChangeAggregator) RecordCommit(summary domain.CommitSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.commits) >= a.commitLimit {
		return
	}
	a.commits = append(a.commits, summary)
}

// RecordPendingChanges counts n working-tree changes towards TotalFilesChanged.
func (a *ChangeAggregator) RecordPendingChanges(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingChanges += max(n, 0)
}

// RecordSkippedDiff counts a pending change whose diff could not be retrieved.
func (a *ChangeAggregator) RecordSkippedDiff() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skippedDiffs++
}

// RecordSkippedRepository counts a repository that could not be enumerated.
func (a *ChangeAggregator) RecordSkippedRepository() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skippedRepositories++
}

// Snapshot returns a deep copy of the current state with computed totals.
func (a *ChangeAggregator) Snapshot() domain.AggregateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := domain.AggregateSnapshot{
		Files:               make([]domain.FileChange, 0, len(a.fileOrder)),
		Authors:             make([]domain.AuthorChange, 0, len(a.authorOrder)),
		Commits:             append(make([]domain.CommitSummary, 0, len(a.commits)), a.commits...),
		TotalFilesChanged:   a.pendingChanges,
		SkippedDiffs:        a.skippedDiffs,
		SkippedRepositories: a.skippedRepositories,
	}
	for _, path := range a.fileOrder {
		fc := *a.files[path]
		s.Files = append(s.Files, fc)
		s.TotalAdded += fc.Added
		s.TotalRemoved += fc.Removed
	}
	for _, author := range a.authorOrder {
		s.Authors = append(s.Authors, *a.authors[author])
	}
	return s
}
